package models

// ErrorMessageResponse returns the error message response struct
type ErrorMessageResponse struct {
	Error string `json:"error"`
}

// HealthCheckResponse is returned by the health check endpoint
type HealthCheckResponse struct {
	Alive     bool   `json:"alive"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}
