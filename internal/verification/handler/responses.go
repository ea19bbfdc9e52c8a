package handler

import (
	"time"

	"docverify/internal/verification/models"
	"docverify/internal/verification/policy"
)

// SessionResponse is the HTTP response for POST /verification/sessions.
type SessionResponse struct {
	SessionID   string          `json:"session_id"`
	Decision    models.Decision `json:"decision"`
	EvaluatedAt time.Time       `json:"evaluated_at"`
}

// PolicyResponse is the HTTP response for the policy lookup endpoints.
type PolicyResponse struct {
	Ref    string         `json:"ref"`
	Policy *policy.Policy `json:"policy"`
}

func toPolicyResponse(p *policy.Policy) *PolicyResponse {
	return &PolicyResponse{Ref: p.Ref().String(), Policy: p}
}
