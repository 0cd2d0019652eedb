package main

import (
	"flag"
	"net/http"
	"os"

	"dcbench/internal/infrastructure/signal"
	"dcbench/pkg/logger"
)

func main() {
	addr := flag.String("addr", ":8000", "listen address")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	zl := logger.New(*level)
	defer zl.Sync()
	log := zl.Sugar()

	server := signal.NewServer(log)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", server.HealthCheck)
	mux.HandleFunc("/", server.HandleWebSocket)

	log.Infow("signaling server listening", "addr", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Errorw("signaling server failed", "error", err)
		os.Exit(1)
	}
}
