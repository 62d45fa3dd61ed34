package storage

import (
	"context"
	"errors"
	"time"

	"github.com/lucasvieira/zapcamp/internal/models"
)

var (
	// ErrNotFound is returned by mutations that target a specific row when
	// that row does not exist. Lookups return (nil, nil) instead.
	ErrNotFound = errors.New("storage: record not found")

	// ErrConflict is returned by ClaimDispatch when the job is no longer
	// pending, i.e. another invocation got there first.
	ErrConflict = errors.New("storage: dispatch already claimed")
)

type Storage interface {
	// Contacts
	CreateContact(ctx context.Context, c *models.Contact) error
	CreateContacts(ctx context.Context, contacts []models.Contact) (int, error)
	GetContact(ctx context.Context, id string) (*models.Contact, error)
	ListContacts(ctx context.Context, status models.ContactStatus, limit, offset int) ([]models.Contact, error)
	UpdateContact(ctx context.Context, c *models.Contact) error
	UpdateContactStatus(ctx context.Context, id string, status models.ContactStatus) error
	DeleteContact(ctx context.Context, id string) error
	ContactStats(ctx context.Context) (*ContactStats, error)

	// Campaigns
	CreateCampaign(ctx context.Context, c *models.Campaign) error
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	ListCampaigns(ctx context.Context, limit, offset int) ([]models.Campaign, error)
	ListCampaignsByStatus(ctx context.Context, status models.CampaignStatus) ([]models.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, id string, status models.CampaignStatus) error
	CompleteCampaign(ctx context.Context, id string, completedAt time.Time) error
	DeleteCampaign(ctx context.Context, id string) error
	CountActiveDispatches(ctx context.Context, campaignID string) (int, error)
	CampaignStats(ctx context.Context) (*CampaignStats, error)

	// Dispatch jobs
	CreateDispatch(ctx context.Context, d *models.DispatchJob) error
	GetDispatch(ctx context.Context, id string) (*models.DispatchJob, error)
	ListPendingDispatches(ctx context.Context) ([]models.DispatchJob, error)
	ListDispatchesByCampaign(ctx context.Context, campaignID string) ([]models.DispatchJob, error)
	ListDispatchesByStatus(ctx context.Context, status models.DispatchStatus) ([]models.DispatchJob, error)
	ClaimDispatch(ctx context.Context, id string) error
	MarkDispatchSent(ctx context.Context, id string) error
	MarkDispatchError(ctx context.Context, id, errMsg string) error
	CancelDispatch(ctx context.Context, id string) error
	CancelDispatches(ctx context.Context, ids []string) (int, error)
	ResetDispatch(ctx context.Context, id string, scheduledAt time.Time) error
	DeleteDispatch(ctx context.Context, id string) error
	DispatchStats(ctx context.Context) (*DispatchStats, error)

	// Templates
	CreateTemplate(ctx context.Context, t *models.Template) error
	GetTemplate(ctx context.Context, id string) (*models.Template, error)
	ListTemplates(ctx context.Context, category string) ([]models.Template, error)
	UpdateTemplate(ctx context.Context, t *models.Template) error
	DeleteTemplate(ctx context.Context, id string) error

	// Sessions
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	GetSessionByName(ctx context.Context, name string) (*models.Session, error)
	ListSessions(ctx context.Context) ([]models.Session, error)
	UpdateSessionState(ctx context.Context, id string, status models.SessionStatus, qrcode, profileName, profilePic string) error
	DeleteSession(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

type ContactStats struct {
	Total         int64 `json:"total"`
	ToContact     int64 `json:"to_contact"`
	Contacted     int64 `json:"contacted"`
	NotInterested int64 `json:"not_interested"`
	Negotiating   int64 `json:"negotiating"`
	Converted     int64 `json:"converted"`
}

type DispatchStats struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Sending   int64 `json:"sending"`
	Sent      int64 `json:"sent"`
	Errors    int64 `json:"errors"`
	Cancelled int64 `json:"cancelled"`
}

type CampaignStats struct {
	Total         int64   `json:"total"`
	InProgress    int64   `json:"in_progress"`
	Completed     int64   `json:"completed"`
	Paused        int64   `json:"paused"`
	Cancelled     int64   `json:"cancelled"`
	TotalContacts int64   `json:"total_contacts"`
	TotalSent     int64   `json:"total_sent"`
	TotalErrors   int64   `json:"total_errors"`
	SuccessRate   float64 `json:"success_rate"`
}
