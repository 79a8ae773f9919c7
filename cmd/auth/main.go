package main

import (
	"errors"
	"flag"
	"io/fs"
	"log"

	"github.com/aussiebroadwan/schoolgate/internal/auth/app"
	"github.com/joho/godotenv"
)

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file loaded before reading the environment")
	flag.Parse()

	// Real environment variables win over the file.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("failed to load %s: %v", *envFile, err)
	}

	cfg := app.LoadConfig()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
