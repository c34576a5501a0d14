package model

import "time"

// RequestLog is one structured entry per control or read request.
type RequestLog struct {
	ID           string                 `json:"id"`
	Caller       string                 `json:"caller,omitempty"`
	Method       string                 `json:"method"`
	Path         string                 `json:"path"`
	IP           string                 `json:"ip"`
	UserAgent    string                 `json:"user_agent"`
	RequestBody  string                 `json:"request_body,omitempty"`
	ResponseBody string                 `json:"response_body,omitempty"`
	StatusCode   int                    `json:"status_code"`
	LatencyMs    int64                  `json:"latency_ms"`
	Context      map[string]interface{} `json:"context,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}
