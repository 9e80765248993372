package models

import "time"

// PlanAudit is one completed planning request, recorded for operational
// visibility. Conversation content is deliberately not part of the record.
type PlanAudit struct {
	ID          int       `json:"id"`
	Route       string    `json:"route"`
	Model       string    `json:"model"`
	Rounds      int       `json:"rounds"`
	DurationMs  int64     `json:"duration_ms"`
	AnswerChars int       `json:"answer_chars"`
	CreatedAt   time.Time `json:"created_at"`
}
