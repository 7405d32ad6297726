package handler

import "time"

// errorResponse mirrors the envelope rendered by the API error handler.
type errorResponse struct {
	Error string `json:"error"`
}

type principalResponse struct {
	Identifier string    `json:"identifier"`
	Role       string    `json:"role"`
	IssuedAt   time.Time `json:"issued_at"`
}

type pageResponse struct {
	Page string             `json:"page"`
	User *principalResponse `json:"user,omitempty"`
}

type evictionResponse struct {
	Identifier string `json:"identifier"`
	Evicted    int    `json:"evicted"`
}
