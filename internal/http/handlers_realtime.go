package httpx

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/wayneindustries/resourcemgmt/internal/service/changefeed"
	"github.com/wayneindustries/resourcemgmt/internal/ws"
)

const (
	transportWS  = "websocket"
	transportSSE = "sse"
)

// realtimeTopic resolves the table query parameter into a hub topic for the caller.
func (r *Router) realtimeTopic(w http.ResponseWriter, req *http.Request) (string, string, bool) {
	info, ok := r.mustAuth(w, req)
	if !ok {
		return "", "", false
	}
	table := strings.TrimSpace(req.URL.Query().Get("table"))
	if table == "" {
		writeError(w, http.StatusBadRequest, "table query parameter required")
		return "", "", false
	}
	if !changefeed.KnownTable(table) {
		r.writeServiceError(w, req, changefeed.ErrUnknownTable)
		return "", "", false
	}
	return table, changefeed.Topic(table, info.actor()), true
}

func (r *Router) handleRealtimeWS(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	table, topic, ok := r.realtimeTopic(w, req)
	if !ok {
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	ready, _ := json.Marshal(map[string]string{"event": "ready", "table": table})
	if err := client.Send(ready); err != nil {
		client.Close()
		return
	}
	hub := r.svc.Changes.Hub()
	hub.Register(topic, client)
	r.trackSubscriber(transportWS, table, 1)
	go func() {
		defer func() {
			hub.Unregister(topic, client)
			client.Close()
			r.trackSubscriber(transportWS, table, -1)
		}()
		client.ReadLoop()
	}()
}

func (r *Router) handleRealtimeSSE(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	table, topic, ok := r.realtimeTopic(w, req)
	if !ok {
		return
	}
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	client := ws.NewSSEClient(w, flusher, r.logger)
	hub := r.svc.Changes.Hub()
	hub.Register(topic, client)
	r.trackSubscriber(transportSSE, table, 1)
	defer func() {
		hub.Unregister(topic, client)
		client.Close()
		r.trackSubscriber(transportSSE, table, -1)
	}()
	if err := client.Ready(table); err != nil {
		return
	}

	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-r.draining:
			return
		case <-ticker.C:
			if client.Closed() {
				return
			}
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}
