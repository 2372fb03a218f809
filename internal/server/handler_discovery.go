package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

const wsPrefix = "/api/v1/workspaces/{wid}"

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "brigade API",
		Version:     "v1",
		Description: "Kitchen order scheduling: per-workspace priority queues, undoable completions and adaptive prep-time estimates",
		Endpoints: []endpointInfo{
			{"/api/v1/workspaces", []string{"GET", "POST"}, "Workspace (kitchen) management"},
			{wsPrefix, []string{"GET"}, "Single workspace"},
			{wsPrefix + "/dishes", []string{"GET", "POST", "DELETE"}, "Menu listing, dish creation and unloading the whole menu"},
			{wsPrefix + "/dishes/seed", []string{"POST"}, "Load the demo menu into an empty workspace"},
			{wsPrefix + "/dishes/{id}", []string{"GET", "PUT", "DELETE"}, "Single dish operations"},
			{wsPrefix + "/dishes/{id}/allergies", []string{"POST"}, "Check customer allergies against a dish"},
			{wsPrefix + "/orders", []string{"GET", "POST"}, "List stored orders (?state=ACTIVE|COMPLETED) or place one; the prep estimate is fixed at placement"},
			{wsPrefix + "/orders/queue", []string{"GET"}, "Active orders, most urgent first"},
			{wsPrefix + "/orders/next", []string{"GET"}, "Most urgent active order (204 when idle)"},
			{wsPrefix + "/orders/{id}", []string{"GET", "DELETE"}, "Look up or purge an order"},
			{wsPrefix + "/orders/{id}/complete", []string{"POST"}, "Mark an order cooked"},
			{wsPrefix + "/orders/undo", []string{"POST"}, "Undo the most recent completion"},
			{wsPrefix + "/orders/history", []string{"GET"}, "Completed orders, oldest first"},
			{wsPrefix + "/orders/stats", []string{"GET"}, "Queue depth summary"},
			{wsPrefix + "/orders/stream", []string{"GET"}, "Server-Sent Events stream of queue snapshots"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
