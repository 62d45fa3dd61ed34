package models

import "time"

type CampaignStatus string

const (
	CampaignInProgress CampaignStatus = "in_progress"
	CampaignCompleted  CampaignStatus = "completed"
	CampaignPaused     CampaignStatus = "paused"
	CampaignCancelled  CampaignStatus = "cancelled"
)

// Campaign groups the dispatch jobs created in one batch. TotalContacts
// records the requested contact count; TotalSent and TotalErrors are
// incremented as jobs complete and may briefly lag the jobs' own statuses.
type Campaign struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	SessionID     string         `json:"session_id"`
	Message       string         `json:"message"`
	TotalContacts int            `json:"total_contacts"`
	TotalSent     int            `json:"total_sent"`
	TotalErrors   int            `json:"total_errors"`
	Status        CampaignStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// DefaultCampaignName builds the fallback name used when the operator
// leaves it blank, e.g. "Campaign 02/01/2006".
func DefaultCampaignName(t time.Time) string {
	return "Campaign " + t.Format("02/01/2006")
}
