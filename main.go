package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/yumyai/strainmodel/cmd"
	"github.com/yumyai/strainmodel/logger"
	"github.com/yumyai/strainmodel/pkg/pipeline"
)

func main() {
	// Try load env
	dotenvErr := godotenv.Load()

	err := cmd.Execute(context.Background())
	// The logger is configured by the command, so this is reported afterwards.
	if dotenvErr != nil {
		logger.Debug("No .env found, using local environment")
	}
	code := pipeline.ExitCode(err)
	if err != nil && code != pipeline.ExitBiomassFailure {
		fmt.Fprintf(os.Stderr, "strainmodel: error: %v\n", err)
	}
	logger.Sync()
	os.Exit(code)
}
