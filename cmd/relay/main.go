package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"

	"github.com/NichHarris/intera-client/internal/logging"
	"github.com/NichHarris/intera-client/internal/registry"
	"github.com/NichHarris/intera-client/internal/relay"
)

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling relay is healthy."))
}

func main() {
	logging.Init()

	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	reg := registry.New()

	hub := relay.NewHub(reg)
	go hub.Run()

	api := registry.NewAPI(reg, hub)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthCheckHandler)
	mux.HandleFunc("/ws", relay.ServeWs(hub))
	api.Register(mux)

	slog.Info("starting signaling relay", "addr", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}
