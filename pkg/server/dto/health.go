package dto

import "github.com/soundprediction/go-librarian/pkg/graph"

// HealthResponse reports service and graph status.
type HealthResponse struct {
	Status string       `json:"status"`
	Graph  *graph.Stats `json:"graph,omitempty"`
}
