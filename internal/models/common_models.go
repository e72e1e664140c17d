package models

// ErrorResponse is the uniform error envelope returned by HTTP handlers.
type ErrorResponse struct {
	Message string `json:"message"`
}
