package api

import (
	"github.com/bluepulse/bthrm/pkg/hrm"
	"github.com/gofiber/fiber/v2"
)

// API denotes a REST API for a heart rate monitor
type API struct {
	monitor hrm.Monitor
	router  *fiber.App
}

// New instantiates a new API
func New(m hrm.Monitor, endpoint string) *API {

	api := API{
		monitor: m,
		router:  fiber.New(),
	}
	api.setupRoutes()

	// Start to listen in goroutine
	go func() {
		if err := api.router.Listen(endpoint); err != nil {
			panic(err)
		}
	}()

	return &api
}

func (api *API) setupRoutes() {
	api.router.Get("/status", api.handleStatus())
	api.router.Get("/reading", api.handleReading())
	api.router.Post("/start", api.handleStart())
	api.router.Post("/stop", api.handleStop())
	api.router.Post("/reconnect", api.handleReconnect())
}

func (api *API) handleStatus() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {

		status := api.monitor.ConnectionStatus()
		resp := fiber.Map{
			"state":             status.State.String(),
			"adapter_state":     api.monitor.AdapterState().String(),
			"adapter_available": api.monitor.AdapterAvailable(),
			"connected_time":    api.monitor.ConnectedTime().Seconds(),
		}
		if status.Error != nil {
			resp["error"] = status.Error.Error()
		}

		return c.JSON(resp)
	}
}

func (api *API) handleReading() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {

		reading, ok := api.monitor.CurrentReading()
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no reading available")
		}

		resp := fiber.Map{
			"timestamp":    reading.TimeStamp,
			"bpm":          reading.BPM,
			"smoothed_bpm": reading.Smoothed,
		}
		if reading.HasRR {
			resp["rr_ms"] = reading.RRIntervalMS
		}

		return c.JSON(resp)
	}
}

func (api *API) handleStart() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		api.monitor.Start()
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func (api *API) handleStop() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		api.monitor.Stop()
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func (api *API) handleReconnect() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		api.monitor.Reconnect()
		return c.SendStatus(fiber.StatusNoContent)
	}
}
