package models

// AnalysisResult is the success payload of POST /analyze.
type AnalysisResult struct {
	Answer   string `json:"answer"`
	Fallback bool   `json:"fallback"`
}

// ErrorResponse is the error payload of POST /analyze.
// Detail is surfaced verbatim to the user by the client.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HealthResponse is returned by the health endpoints
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time,omitempty"`
}
