package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/habedi/microfeed/cmd"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// main is the entry point of the application.
// It sets up logging based on the DEBUG_MICROFEED environment variable,
// cancels the command context on the first interrupt, and exits on the second.
func main() {
	configureLogLevelFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopChan := setupInterruptListener()
	go handleInterrupt(stopChan, cancel, func(msg string) { log.Error().Msg(msg) }, os.Exit)

	cmd.Execute(ctx)
}

// configureLogLevelFromEnv enables debug logging when DEBUG_MICROFEED is set
// to anything but "", "0" or "false", and disables logging otherwise.
func configureLogLevelFromEnv() {
	switch os.Getenv("DEBUG_MICROFEED") {
	case "", "0", "false":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	default:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func setupInterruptListener() chan os.Signal {
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt)
	return stopChan
}

// handleInterrupt cancels the running command on the first signal and
// exits on the second.
func handleInterrupt(stopChan chan os.Signal, cancel context.CancelFunc, logFn func(string), exit func(int)) {
	<-stopChan
	logFn("Interrupt signal received. Stopping...")
	cancel()
	<-stopChan
	logFn("Interrupt signal received. Exiting...")
	exit(1)
}
