package controllers

import "github.com/scribeq/scribeq/internal/domain"

// EnqueueRequest is the POST /api/queue body. Names is optional and
// parallel to Sources.
type EnqueueRequest struct {
	Sources []string `json:"sources"`
	Names   []string `json:"names,omitempty"`
}

type EnqueueResponse struct {
	Items []domain.Item `json:"items"`
}

// QueueResponse is the full queue view returned by GET /api/queue.
type QueueResponse struct {
	Items        []domain.Item `json:"items"`
	Stats        domain.Stats  `json:"stats"`
	IsProcessing bool          `json:"is_processing"`
}

// CountResponse reports how many items an operation touched.
type CountResponse struct {
	Count int `json:"count"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
