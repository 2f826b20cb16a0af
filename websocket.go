package main

import (
	"net/http"

	"planta/internal/websocket"
)

type WSEvent = websocket.Event

// Global hub instance.
var wsHub = websocket.NewHub()

func handleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsHub.Serve(w, r)
}
