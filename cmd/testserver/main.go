// Command testserver runs the websocket service targeted by the zome-call
// scenario.
//
// Usage:
//
//	testserver [flags]
//
// Flags:
//
//	--port    Port to listen on (default: 8888)
//	--host    Host to bind to (default: localhost)
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/holochain/wind-tunnel-sub001/internal/logging"
	"github.com/holochain/wind-tunnel-sub001/testserver"
)

func main() {
	port := pflag.Int("port", 8888, "port to listen on")
	host := pflag.String("host", "localhost", "host to bind to")
	pflag.Parse()

	if err := logging.ConfigureLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(3)
	}

	server := testserver.NewServer()
	addr := fmt.Sprintf("%s:%d", *host, *port)

	fmt.Println("Wind Tunnel Test Server")
	fmt.Println("=======================")
	fmt.Printf("Listening on ws://%s\n\n", addr)
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /health              - Health check")
	fmt.Println("  GET  /admin               - Admin websocket interface")
	fmt.Println("  GET  /app?app_id={id}     - App websocket interface for an installed app")
	fmt.Println()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("Shutdown did not complete")
		}
	}()

	if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("Server failed")
		os.Exit(1)
	}
}
