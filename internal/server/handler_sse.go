package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/me/brigade/internal/scheduler"
	"github.com/me/brigade/pkg/model"
)

// queueSnapshot is the payload of every stream event.
type queueSnapshot struct {
	WorkspaceID string              `json:"workspace_id"`
	Queue       []model.Task        `json:"queue"`
	Stats       scheduler.LaneStats `json:"stats"`
	At          time.Time           `json:"at"`
}

// handleStream pushes the active queue via Server-Sent Events whenever it
// changes, with heartbeats in between.
// GET /api/v1/workspaces/{wid}/orders/stream
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.requireWorkspace(w, r)
	if !ok {
		return
	}

	// Set headers for SSE.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	snap := s.snapshot(ws.ID)
	if err := sendSSEEvent(w, flusher, "init", snap); err != nil {
		s.logger.Debug("sse client disconnected", "workspace_id", ws.ID, "error", err)
		return
	}
	last := fingerprint(snap)

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			snap = s.snapshot(ws.ID)
			if fp := fingerprint(snap); fp != last {
				if err := sendSSEEvent(w, flusher, "update", snap); err != nil {
					s.logger.Debug("sse client disconnected", "workspace_id", ws.ID)
					return
				}
				last = fp
			} else {
				fmt.Fprintf(w, ": heartbeat\n\n")
				flusher.Flush()
			}
		}
	}
}

func (s *Server) snapshot(workspaceID string) queueSnapshot {
	return queueSnapshot{
		WorkspaceID: workspaceID,
		Queue:       s.scheduler.ActiveQueue(workspaceID),
		Stats:       s.scheduler.Stats(workspaceID),
		At:          s.now(),
	}
}

// fingerprint identifies a queue state by order and membership.
func fingerprint(snap queueSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d/", snap.Stats.Completed)
	for _, t := range snap.Queue {
		b.WriteString(t.ID)
		b.WriteByte(',')
	}
	return b.String()
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
	if err != nil {
		return err
	}

	flusher.Flush()
	return nil
}
