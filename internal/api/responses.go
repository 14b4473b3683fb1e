// Package api holds the response envelopes shared across handlers.
package api

type ErrorResponse struct {
	Error string `json:"error" example:"insufficient credits"`
}

type MessageResponse struct {
	Message string `json:"message" example:"booking cancelled"`
}

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}
