package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/spigell/talentmatch/cmd"
)

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
