package main

import (
	"log"
	"os"

	"github.com/Aidin1998/tradegen/cmd/tradegen/cmd"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
