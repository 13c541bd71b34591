package httpapi

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-cache-api/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the public weather endpoints into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service) {
	grp := app.Group("/weather")

	grp.Post("/history", func(c *fiber.Ctx) error {
		var req weather.HistoryRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		log.Printf("INFO: history request for %q dates %q", req.City, req.Dates)

		resp, err := service.History(c.Context(), req)
		if err != nil {
			log.Printf("ERROR: history request failed: %v", err)
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather history")
		}
		return c.JSON(resp)
	})

	grp.Post("/forecast", func(c *fiber.Ctx) error {
		var req weather.ForecastRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		log.Printf("INFO: forecast request for %q days %d", req.City, req.Days)

		resp, err := service.Forecast(c.Context(), req)
		if err != nil {
			log.Printf("ERROR: forecast request failed: %v", err)
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather forecast")
		}
		return c.JSON(resp)
	})
}
