package lib

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sketchbridge/sketchbridge-go/lib/ai"
	canvasManager "github.com/sketchbridge/sketchbridge-go/lib/canvas"
	"github.com/sketchbridge/sketchbridge-go/lib/db"
	"github.com/sketchbridge/sketchbridge-go/lib/session"
	"github.com/sketchbridge/sketchbridge-go/lib/settings"
	"github.com/sketchbridge/sketchbridge-go/lib/ws"
	"go.uber.org/zap"
)

// InitStore carries the wired components to the route initializers.
type InitStore struct {
	C                 *fiber.App
	RetrievedSettings *settings.Settings
	Store             db.DataStore
	Handler           *ws.CanvasMessageHandler
	CanvasManager     *canvasManager.Manager
	Sessions          *session.Registry
	Analyzer          *ai.Service
	Validator         *validator.Validate
	Logger            *zap.SugaredLogger
}
