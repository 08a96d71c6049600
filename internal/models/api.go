package models

// WebSocket message envelope
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ActivityCheckpointEvent is pushed to a user's connected clients after a
// successful checkpoint so open dashboards refresh without polling.
type ActivityCheckpointEvent struct {
	Date         string `json:"date"`
	TotalSeconds int    `json:"total_seconds"`
	Sessions     int    `json:"sessions"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
