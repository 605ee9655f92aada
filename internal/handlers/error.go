package handlers

// ErrorResponse is the standard error body (message only).
type ErrorResponse struct {
	Message string `json:"message"`
}
