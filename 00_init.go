package main

import (
	"log"

	"github.com/joho/godotenv"
)

func init() {
	// Load .env before any other init reads the environment.
	if err := godotenv.Load(); err != nil {
		// Only log - running without a .env file is normal in deploys.
		log.Printf("No .env file found: %v", err)
	}
}
