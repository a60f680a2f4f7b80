package models

import "time"

// Report is a user's report about a piece of content or another user.
type Report struct {
	ID         string    `json:"id"`
	ReporterID string    `json:"reporter_id"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateReportRequest is the body of POST /api/reports.
type CreateReportRequest struct {
	TargetType string `json:"target_type" validate:"required,oneof=post comment narrative user"`
	TargetID   string `json:"target_id" validate:"required,max=64"`
	Reason     string `json:"reason" validate:"required,min=3,max=1000"`
}
