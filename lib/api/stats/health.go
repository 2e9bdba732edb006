package stats

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sketchbridge/sketchbridge-go/lib/api/constants"
	"github.com/sketchbridge/sketchbridge-go/lib/db"
	"github.com/sketchbridge/sketchbridge-go/lib/ws"
)

type DBChecker struct {
	db db.DataStore
}

func (d DBChecker) Name() string {
	return "database"
}

func (d DBChecker) Check() Check {
	err := d.db.Ping()

	if err != nil {
		return Check{
			Status: StatusFail,
			Output: err.Error(),
		}
	}

	return Check{
		Status:     StatusPass,
		Observed:   "ok",
		ObservedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// EngineChecker reports the live room and connection counts of the hub.
type EngineChecker struct {
	hub *ws.Hub
}

func (e EngineChecker) Name() string {
	return "engine"
}

func (e EngineChecker) Check() Check {
	stats := e.hub.Stats()
	if stats.Joined > stats.Connections {
		return Check{
			Status:   StatusWarn,
			Observed: stats,
			Output:   "more room members than connections",
		}
	}

	return Check{
		Status:     StatusPass,
		Observed:   stats,
		ObservedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// Handler serves the health check in the format of the RFC health check
// draft.
func Handler(
	version string,
	serviceID string,
	checkers []Checker,
) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resp := HealthResponse{
			Status:    StatusPass,
			Version:   version,
			ServiceID: serviceID,
			Checks:    map[string][]Check{},
		}

		httpStatus := fiber.StatusOK

		for _, checker := range checkers {
			check := checker.Check()
			resp.Checks[checker.Name()] = []Check{check}

			switch check.Status {
			case StatusFail:
				resp.Status = StatusFail
				httpStatus = fiber.StatusServiceUnavailable
			case StatusWarn:
				if resp.Status != StatusFail {
					resp.Status = StatusWarn
				}
			}
		}

		c.Set(fiber.HeaderContentType, constants.ContentTypeHealthJSON)
		return c.Status(httpStatus).JSON(resp)
	}
}
