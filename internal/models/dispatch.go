package models

import "time"

type DispatchStatus string

const (
	DispatchPending   DispatchStatus = "pending"
	DispatchSending   DispatchStatus = "sending"
	DispatchSent      DispatchStatus = "sent"
	DispatchError     DispatchStatus = "error"
	DispatchCancelled DispatchStatus = "cancelled"
)

// Terminal reports whether the job can no longer change status through the
// normal send path. A cancelled job may still be reset to pending on
// campaign resume.
func (s DispatchStatus) Terminal() bool {
	return s == DispatchSent || s == DispatchError || s == DispatchCancelled
}

// DispatchJob is one scheduled outbound message bound to one contact.
// ContactName and ContactPhone are snapshots taken at creation time so later
// contact edits do not change what gets sent.
type DispatchJob struct {
	ID           string         `json:"id"`
	ContactID    string         `json:"contact_id"`
	ContactName  string         `json:"contact_name"`
	ContactPhone string         `json:"contact_phone"`
	Message      string         `json:"message"`
	Status       DispatchStatus `json:"status"`
	ScheduledAt  time.Time      `json:"scheduled_at"`
	SentAt       *time.Time     `json:"sent_at,omitempty"`
	Error        string         `json:"error,omitempty"`
	SessionID    string         `json:"session_id"`
	CampaignID   string         `json:"campaign_id,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
