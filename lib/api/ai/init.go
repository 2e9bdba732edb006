package ai

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sketchbridge/sketchbridge-go/lib"
	"github.com/sketchbridge/sketchbridge-go/lib/ai"
	apiError "github.com/sketchbridge/sketchbridge-go/lib/api/errors"
	aiModel "github.com/sketchbridge/sketchbridge-go/lib/models/ai"
)

type StatusResponse struct {
	Available bool   `json:"available"`
	Model     string `json:"model,omitempty"`
}

type ComponentsResponse struct {
	Components []aiModel.ComponentKnowledge `json:"components"`
}

type EstimateRequest struct {
	ImageBase64 string `json:"imageBase64"`
}

func Init(store *lib.InitStore) {
	group := store.C.Group("/api/ai")

	group.Get("/components", func(c *fiber.Ctx) error {
		return c.JSON(ComponentsResponse{Components: ai.KnowledgeBase()})
	})

	group.Get("/components/:componentId", func(c *fiber.Ctx) error {
		component, ok := ai.ComponentById(c.Params("componentId"))
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(apiError.NotFoundError)
		}
		return c.JSON(component)
	})

	group.Get("/status", func(c *fiber.Ctx) error {
		if store.Analyzer == nil || !store.Analyzer.Available() {
			return c.JSON(StatusResponse{Available: false})
		}
		return c.JSON(StatusResponse{Available: true, Model: store.Analyzer.Model()})
	})

	group.Post("/estimate", func(c *fiber.Ctx) error {
		var request EstimateRequest
		if err := c.BodyParser(&request); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(apiError.InvalidRequestError)
		}
		if err := ai.ValidateImage(request.ImageBase64); err != nil {
			mapped := apiError.FromError(err)
			return c.Status(mapped.Error).JSON(mapped)
		}
		return c.JSON(ai.EstimateCost(request.ImageBase64))
	})
}
