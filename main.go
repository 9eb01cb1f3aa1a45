package main

import (
	"go-meeting-core/core/logger"
	"go-meeting-core/core/server"

	_ "go-meeting-core/docs" // Swagger docs
)

// @title MeetCore API
// @version 1.0
// @description Scheduling core: availability profiles, workflow-driven bookings, calendar sync.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:7070
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Example: "Bearer {token}"

func main() {
	if err := server.Run(); err != nil {
		logger.Error("run server error", err)
	}
}
