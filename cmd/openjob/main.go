package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Secrets like OPENAI_API_KEY and DISCORD_WEBHOOK_URL live in .env
	// during local runs; a missing file is fine.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
