package main

import (
	"os"

	"github.com/joho/godotenv"
)

// main loads local env overrides and hands off to the cobra command. The
// publish flow itself lives in run.go and internal/registration.
func main() {
	_ = godotenv.Load(".env.local")

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
