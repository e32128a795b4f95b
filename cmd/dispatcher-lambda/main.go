package main

import (
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/neodatsu/itercraft/internal/config"
	"github.com/neodatsu/itercraft/internal/core"
	lambdahandler "github.com/neodatsu/itercraft/internal/lambda"
	"github.com/neodatsu/itercraft/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(config.ComponentLambda); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	// Lambda has no scrape endpoint.
	dispatch := core.NewDispatchServiceFromConfig(cfg, nil)
	handler := lambdahandler.NewHandler(dispatch, logger)

	lambda.Start(handler.Handle)
}
