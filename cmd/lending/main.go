package main

import (
	stdLog "log"
	"time"

	"github.com/joho/godotenv"

	"github.com/avoronin/lending-service/app"
	"github.com/avoronin/lending-service/config"
)

func main() {
	if err := godotenv.Load(); err != nil {
		stdLog.Println("no .env file, using environment as-is")
	}
	cfg := config.NewConfig(
		config.WithWriteTimeout(time.Minute),
	)

	app.Run(cfg)
}
