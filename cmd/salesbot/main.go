package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/tillberg/autorestart"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/cli"
)

func main() {
	// Credentials often live in a local .env during development.
	_ = godotenv.Load()

	if os.Getenv("SALESBOT_DEV") != "" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
