package domain

import "time"

// RequestContext carries request metadata used to enrich logged error
// records. It is never returned to the caller.
type RequestContext struct {
	RequestID string    `json:"request_id"`
	Endpoint  string    `json:"endpoint"`
	UserAgent string    `json:"user_agent,omitempty"`
	Origin    string    `json:"origin,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RewriteRequest is the payload accepted by the rewrite endpoint.
type RewriteRequest struct {
	Prompt  string `json:"prompt"`
	Context string `json:"context,omitempty"`
}

// RewriteResult is the successful response payload.
type RewriteResult struct {
	Text   string `json:"result"`
	Cached bool   `json:"cached,omitempty"`
}
