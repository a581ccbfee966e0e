// Package system wires process signals into command contexts.
package system

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

type ShutdownHandler func()

// RegisterGracefulShutdownHandler runs handler on the first SIGINT or SIGTERM
// and exits.
func RegisterGracefulShutdownHandler(handler ShutdownHandler) {
	sigChannel := make(chan os.Signal, 1)
	signal.Notify(sigChannel, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChannel
		log.Info().Msg("Received interrupt signal, shutting down gracefully...")
		handler()
		os.Exit(0)
	}()
}

// ShutdownContext returns a context that is cancelled on SIGINT or SIGTERM.
// Long running scans stop and report what they have so far instead of exiting.
func ShutdownContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChannel := make(chan os.Signal, 1)
	signal.Notify(sigChannel, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChannel)
		select {
		case <-sigChannel:
			log.Info().Msg("Received interrupt signal, stopping")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
