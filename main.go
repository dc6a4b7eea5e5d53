package main

//go:generate swag init

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/satheeshds/trackey/cmd"
)

// @title           Trackey API
// @version         1.0.0
// @description     Customer debt ledger and per-device inventory for gadget stores.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.basic  BasicAuth

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	cmd.Execute()
}
