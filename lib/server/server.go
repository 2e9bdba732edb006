package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sketchbridge/sketchbridge-go/lib"
	"github.com/sketchbridge/sketchbridge-go/lib/ai"
	api2 "github.com/sketchbridge/sketchbridge-go/lib/api"
	canvasManager "github.com/sketchbridge/sketchbridge-go/lib/canvas"
	"github.com/sketchbridge/sketchbridge-go/lib/db"
	"github.com/sketchbridge/sketchbridge-go/lib/session"
	settings2 "github.com/sketchbridge/sketchbridge-go/lib/settings"
	"github.com/sketchbridge/sketchbridge-go/lib/utils"
	"github.com/sketchbridge/sketchbridge-go/lib/ws"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// SocketHandler upgrades a request and serves the connection until it closes.
func SocketHandler(store *lib.InitStore) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		ws.ServeWs(writer, request, store.RetrievedSettings, store.Logger, store.Handler)
	}
}

// NewApp wires the engine on top of dataStore and registers every route. The
// hub loop and the session sweeper are not started.
func NewApp(retrievedSettings *settings2.Settings, dataStore db.DataStore, setupLogger *zap.SugaredLogger) *lib.InitStore {
	validatorEvaluator := validator.New(validator.WithRequiredStructEnabled())

	canvases := canvasManager.NewManager(dataStore, validatorEvaluator, retrievedSettings.Canvas.MaxObjects, setupLogger)
	sessions := session.NewRegistry(dataStore, setupLogger)
	analyzer := ai.NewService(retrievedSettings.AI, setupLogger)
	globalHub := ws.NewHub()
	canvasMessageHandler := ws.NewCanvasMessageHandler(globalHub, canvases, sessions, analyzer, validatorEvaluator, retrievedSettings, setupLogger)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: retrievedSettings.CorsOrigin,
		AllowMethods: "GET,POST,OPTIONS",
	}))

	store := &lib.InitStore{
		C:                 app,
		RetrievedSettings: retrievedSettings,
		Store:             dataStore,
		Handler:           canvasMessageHandler,
		CanvasManager:     canvases,
		Sessions:          sessions,
		Analyzer:          analyzer,
		Validator:         validatorEvaluator,
		Logger:            setupLogger,
	}

	api2.InitAPI(store)

	socket := adaptor.HTTPHandlerFunc(SocketHandler(store))
	app.Get("/socket", socket)
	app.Get("/socket.io/*", socket)

	return store
}

// InitServer connects the configured database and serves until SIGINT or
// SIGTERM.
func InitServer(setupLogger *zap.SugaredLogger, retrievedSettings *settings2.Settings) error {
	setupLogger.Info("Starting SketchBridge...")
	if retrievedSettings.GitVersion != "" {
		setupLogger.Info("Your SketchBridge version is " + retrievedSettings.GitVersion)
	}

	dataStore, err := utils.GetDB(*retrievedSettings, setupLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := dataStore.Close(); err != nil {
			setupLogger.Warnf("Error closing database: %v", err)
		}
	}()

	store := NewApp(retrievedSettings, dataStore, setupLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go store.Handler.Hub().Run()

	sweeper := session.NewSweeper(store.Sessions,
		retrievedSettings.Session.Timeout(),
		retrievedSettings.Session.SweepInterval(),
		setupLogger)
	sweeper.OnExpired(store.Handler.HandleExpiredSessions)
	if err := sweeper.Start(ctx); err != nil {
		return err
	}

	listenErr := make(chan error, 1)
	go func() {
		setupLogger.Info("Starting server on " + retrievedSettings.Address())
		listenErr <- store.C.Listen(retrievedSettings.Address())
	}()

	select {
	case err := <-listenErr:
		stop()
		sweeper.Wait()
		return err
	case <-ctx.Done():
	}

	setupLogger.Info("Shutting down...")
	if err := store.C.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		setupLogger.Warnf("Error shutting down server: %v", err)
	}
	sweeper.Wait()
	store.Handler.WaitForAnalyses()
	return nil
}
