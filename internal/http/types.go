package http

// HealthResponse is the response body for GET /health and GET /ready.
type HealthResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	InstanceID string            `json:"instance_id,omitempty"`
	Engine     string            `json:"engine,omitempty"`
	Services   map[string]string `json:"services"`
	Counts     StatusCounts      `json:"counts"`
	Admission  *AdmissionStatus  `json:"admission,omitempty"`
}

// StatusCounts contains count information for various resources.
// Collections and Entities are -1 when the engine cannot be listed.
type StatusCounts struct {
	Collections    int   `json:"collections"`
	Entities       int64 `json:"entities"`
	ActiveRequests int   `json:"active_requests"`
}

// AdmissionStatus reports the insert byte budget.
type AdmissionStatus struct {
	BudgetBytes int64 `json:"budget_bytes"`
	InUseBytes  int64 `json:"in_use_bytes"`
}
