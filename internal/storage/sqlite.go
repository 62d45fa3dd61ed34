package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lucasvieira/zapcamp/internal/models"
)

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS contacts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			website TEXT NOT NULL DEFAULT '',
			rating REAL NOT NULL DEFAULT 0,
			review_count INTEGER NOT NULL DEFAULT 0,
			place_id TEXT NOT NULL DEFAULT '',
			search_term TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'to_contact',
			notes TEXT NOT NULL DEFAULT '',
			captured_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_contact_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS campaigns (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			session_id TEXT NOT NULL,
			message TEXT NOT NULL,
			total_contacts INTEGER NOT NULL DEFAULT 0,
			total_sent INTEGER NOT NULL DEFAULT 0,
			total_errors INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'in_progress',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			completed_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS dispatch_jobs (
			id TEXT PRIMARY KEY,
			contact_id TEXT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
			contact_name TEXT NOT NULL,
			contact_phone TEXT NOT NULL,
			message TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			scheduled_at DATETIME NOT NULL,
			sent_at DATETIME,
			error TEXT NOT NULL DEFAULT '',
			session_id TEXT NOT NULL,
			campaign_id TEXT REFERENCES campaigns(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS message_templates (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			content TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			variables TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS wa_sessions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'disconnected',
			qrcode TEXT NOT NULL DEFAULT '',
			profile_name TEXT NOT NULL DEFAULT '',
			profile_pic TEXT NOT NULL DEFAULT '',
			last_sync_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_status ON contacts(status)`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_place ON contacts(place_id)`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_phone ON contacts(phone)`,
		`CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns(status)`,
		`CREATE INDEX IF NOT EXISTS idx_dispatch_campaign ON dispatch_jobs(campaign_id)`,
		`CREATE INDEX IF NOT EXISTS idx_dispatch_status ON dispatch_jobs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_dispatch_due ON dispatch_jobs(scheduled_at, created_at) WHERE status = 'pending'`,
	}

	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- Contacts ---

func (s *SQLiteStorage) CreateContact(ctx context.Context, c *models.Contact) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (id, name, phone, address, category, website, rating, review_count, place_id, search_term, status, notes, captured_at, last_contact_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Phone, c.Address, c.Category, c.Website, c.Rating, c.ReviewCount,
		c.PlaceID, c.SearchTerm, c.Status, c.Notes, c.CapturedAt, nullTime(c.LastContactAt),
	)
	return err
}

// CreateContacts bulk-inserts captured listings, skipping ones already known
// by place id or phone. Returns the number actually inserted.
func (s *SQLiteStorage) CreateContacts(ctx context.Context, contacts []models.Contact) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	inserted := 0
	for _, c := range contacts {
		var exists int
		if c.PlaceID != "" {
			err = tx.QueryRowContext(ctx, `SELECT 1 FROM contacts WHERE place_id = ? LIMIT 1`, c.PlaceID).Scan(&exists)
		} else if c.Phone != "" {
			err = tx.QueryRowContext(ctx, `SELECT 1 FROM contacts WHERE phone = ? LIMIT 1`, c.Phone).Scan(&exists)
		} else {
			err = sql.ErrNoRows
		}
		if err == nil {
			continue // duplicate
		}
		if err != sql.ErrNoRows {
			return inserted, err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO contacts (id, name, phone, address, category, website, rating, review_count, place_id, search_term, status, notes, captured_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Name, c.Phone, c.Address, c.Category, c.Website, c.Rating, c.ReviewCount,
			c.PlaceID, c.SearchTerm, c.Status, c.Notes, c.CapturedAt,
		)
		if err != nil {
			return inserted, err
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return inserted, err
	}
	return inserted, nil
}

const contactCols = `id, name, phone, address, category, website, rating, review_count, place_id, search_term, status, notes, captured_at, last_contact_at`

func scanContact(row interface{ Scan(...interface{}) error }) (*models.Contact, error) {
	var c models.Contact
	var lastContact sql.NullTime
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.Category, &c.Website, &c.Rating,
		&c.ReviewCount, &c.PlaceID, &c.SearchTerm, &c.Status, &c.Notes, &c.CapturedAt, &lastContact)
	if err != nil {
		return nil, err
	}
	if lastContact.Valid {
		c.LastContactAt = &lastContact.Time
	}
	return &c, nil
}

func (s *SQLiteStorage) GetContact(ctx context.Context, id string) (*models.Contact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contactCols+` FROM contacts WHERE id = ?`, id)
	c, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (s *SQLiteStorage) ListContacts(ctx context.Context, status models.ContactStatus, limit, offset int) ([]models.Contact, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + contactCols + ` FROM contacts`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY captured_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}

func (s *SQLiteStorage) UpdateContact(ctx context.Context, c *models.Contact) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET name = ?, phone = ?, address = ?, category = ?, website = ?, notes = ?, status = ? WHERE id = ?`,
		c.Name, c.Phone, c.Address, c.Category, c.Website, c.Notes, c.Status, c.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStorage) UpdateContactStatus(ctx context.Context, id string, status models.ContactStatus) error {
	var res sql.Result
	var err error
	if status == models.ContactContacted {
		res, err = s.db.ExecContext(ctx,
			`UPDATE contacts SET status = ?, last_contact_at = ? WHERE id = ?`,
			status, time.Now().UTC(), id)
	} else {
		res, err = s.db.ExecContext(ctx, `UPDATE contacts SET status = ? WHERE id = ?`, status, id)
	}
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStorage) DeleteContact(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id)
	return err
}

func (s *SQLiteStorage) ContactStats(ctx context.Context) (*ContactStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM contacts GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &ContactStats{}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.Total += count
		switch models.ContactStatus(status) {
		case models.ContactToContact:
			stats.ToContact = count
		case models.ContactContacted:
			stats.Contacted = count
		case models.ContactNotInterested:
			stats.NotInterested = count
		case models.ContactNegotiating:
			stats.Negotiating = count
		case models.ContactConverted:
			stats.Converted = count
		}
	}
	return stats, rows.Err()
}

// --- Campaigns ---

func (s *SQLiteStorage) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO campaigns (id, name, session_id, message, total_contacts, total_sent, total_errors, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.SessionID, c.Message, c.TotalContacts, c.TotalSent, c.TotalErrors, c.Status, c.CreatedAt,
	)
	return err
}

const campaignCols = `id, name, session_id, message, total_contacts, total_sent, total_errors, status, created_at, completed_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (*models.Campaign, error) {
	var c models.Campaign
	var completed sql.NullTime
	err := row.Scan(&c.ID, &c.Name, &c.SessionID, &c.Message, &c.TotalContacts, &c.TotalSent,
		&c.TotalErrors, &c.Status, &c.CreatedAt, &completed)
	if err != nil {
		return nil, err
	}
	if completed.Valid {
		c.CompletedAt = &completed.Time
	}
	return &c, nil
}

func (s *SQLiteStorage) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+campaignCols+` FROM campaigns WHERE id = ?`, id)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (s *SQLiteStorage) ListCampaigns(ctx context.Context, limit, offset int) ([]models.Campaign, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+campaignCols+` FROM campaigns ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCampaigns(rows)
}

func (s *SQLiteStorage) ListCampaignsByStatus(ctx context.Context, status models.CampaignStatus) ([]models.Campaign, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+campaignCols+` FROM campaigns WHERE status = ? ORDER BY created_at DESC`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCampaigns(rows)
}

func collectCampaigns(rows *sql.Rows) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}

func (s *SQLiteStorage) UpdateCampaignStatus(ctx context.Context, id string, status models.CampaignStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE campaigns SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// CompleteCampaign transitions an in_progress campaign to completed and
// stamps completed_at. Calling it on a campaign in any other state is a
// no-op, which makes the completion sweep idempotent.
func (s *SQLiteStorage) CompleteCampaign(ctx context.Context, id string, completedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET status = ?, completed_at = ? WHERE id = ? AND status = ?`,
		models.CampaignCompleted, completedAt, id, models.CampaignInProgress,
	)
	return err
}

func (s *SQLiteStorage) DeleteCampaign(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = ?`, id)
	return err
}

func (s *SQLiteStorage) CountActiveDispatches(ctx context.Context, campaignID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dispatch_jobs WHERE campaign_id = ? AND status IN (?, ?)`,
		campaignID, models.DispatchPending, models.DispatchSending,
	).Scan(&count)
	return count, err
}

func (s *SQLiteStorage) CampaignStats(ctx context.Context) (*CampaignStats, error) {
	stats := &CampaignStats{}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM campaigns GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.Total += count
		switch models.CampaignStatus(status) {
		case models.CampaignInProgress:
			stats.InProgress = count
		case models.CampaignCompleted:
			stats.Completed = count
		case models.CampaignPaused:
			stats.Paused = count
		case models.CampaignCancelled:
			stats.Cancelled = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_contacts), 0), COALESCE(SUM(total_sent), 0), COALESCE(SUM(total_errors), 0) FROM campaigns`,
	).Scan(&stats.TotalContacts, &stats.TotalSent, &stats.TotalErrors)
	if err != nil {
		return nil, err
	}

	if stats.TotalContacts > 0 {
		stats.SuccessRate = float64(stats.TotalSent) / float64(stats.TotalContacts) * 100
	}
	return stats, nil
}

// --- Dispatch jobs ---

func (s *SQLiteStorage) CreateDispatch(ctx context.Context, d *models.DispatchJob) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatch_jobs (id, contact_id, contact_name, contact_phone, message, status, scheduled_at, sent_at, error, session_id, campaign_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ContactID, d.ContactName, d.ContactPhone, d.Message, d.Status, d.ScheduledAt,
		nullTime(d.SentAt), d.Error, d.SessionID, nullString(d.CampaignID), d.CreatedAt,
	)
	return err
}

const dispatchCols = `id, contact_id, contact_name, contact_phone, message, status, scheduled_at, sent_at, error, session_id, campaign_id, created_at`

func scanDispatch(row interface{ Scan(...interface{}) error }) (*models.DispatchJob, error) {
	var d models.DispatchJob
	var sentAt sql.NullTime
	var campaignID sql.NullString
	err := row.Scan(&d.ID, &d.ContactID, &d.ContactName, &d.ContactPhone, &d.Message, &d.Status,
		&d.ScheduledAt, &sentAt, &d.Error, &d.SessionID, &campaignID, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	if sentAt.Valid {
		d.SentAt = &sentAt.Time
	}
	d.CampaignID = campaignID.String
	return &d, nil
}

func (s *SQLiteStorage) GetDispatch(ctx context.Context, id string) (*models.DispatchJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+dispatchCols+` FROM dispatch_jobs WHERE id = ?`, id)
	d, err := scanDispatch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

// ListPendingDispatches returns pending jobs ordered by scheduled time,
// ties broken by insertion order so processors pick deterministically.
func (s *SQLiteStorage) ListPendingDispatches(ctx context.Context) ([]models.DispatchJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+dispatchCols+` FROM dispatch_jobs WHERE status = ? ORDER BY scheduled_at ASC, created_at ASC`,
		models.DispatchPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDispatches(rows)
}

func (s *SQLiteStorage) ListDispatchesByCampaign(ctx context.Context, campaignID string) ([]models.DispatchJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+dispatchCols+` FROM dispatch_jobs WHERE campaign_id = ? ORDER BY created_at ASC`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDispatches(rows)
}

func (s *SQLiteStorage) ListDispatchesByStatus(ctx context.Context, status models.DispatchStatus) ([]models.DispatchJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+dispatchCols+` FROM dispatch_jobs WHERE status = ? ORDER BY scheduled_at ASC, created_at ASC`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDispatches(rows)
}

func collectDispatches(rows *sql.Rows) ([]models.DispatchJob, error) {
	var jobs []models.DispatchJob
	for rows.Next() {
		d, err := scanDispatch(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *d)
	}
	return jobs, rows.Err()
}

// ClaimDispatch atomically transitions a job from pending to sending. The
// conditional update is the sole concurrency guard between overlapping
// processor invocations: whichever one flips the row wins, the rest get
// ErrConflict.
func (s *SQLiteStorage) ClaimDispatch(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dispatch_jobs SET status = ? WHERE id = ? AND status = ?`,
		models.DispatchSending, id, models.DispatchPending,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM dispatch_jobs WHERE id = ?`, id).Scan(&exists); err == sql.ErrNoRows {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

// MarkDispatchSent finalizes a job as sent and bumps the owning campaign's
// sent counter. The counter update is best effort: if the campaign row was
// deleted in the meantime the increment is dropped, the job status stays
// authoritative.
func (s *SQLiteStorage) MarkDispatchSent(ctx context.Context, id string) error {
	campaignID, err := s.dispatchCampaign(ctx, id)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE dispatch_jobs SET status = ?, sent_at = ?, error = '' WHERE id = ?`,
		models.DispatchSent, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}

	if campaignID != "" {
		_, err = s.db.ExecContext(ctx,
			`UPDATE campaigns SET total_sent = total_sent + 1 WHERE id = ?`, campaignID)
	}
	return err
}

func (s *SQLiteStorage) MarkDispatchError(ctx context.Context, id, errMsg string) error {
	campaignID, err := s.dispatchCampaign(ctx, id)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE dispatch_jobs SET status = ?, error = ? WHERE id = ?`,
		models.DispatchError, errMsg, id,
	)
	if err != nil {
		return err
	}

	if campaignID != "" {
		_, err = s.db.ExecContext(ctx,
			`UPDATE campaigns SET total_errors = total_errors + 1 WHERE id = ?`, campaignID)
	}
	return err
}

func (s *SQLiteStorage) dispatchCampaign(ctx context.Context, id string) (string, error) {
	var campaignID sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT campaign_id FROM dispatch_jobs WHERE id = ?`, id).Scan(&campaignID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return campaignID.String, nil
}

// CancelDispatch cancels a job still waiting or in flight. Jobs already in a
// terminal state are left untouched and no error is returned.
func (s *SQLiteStorage) CancelDispatch(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE dispatch_jobs SET status = ? WHERE id = ? AND status IN (?, ?)`,
		models.DispatchCancelled, id, models.DispatchPending, models.DispatchSending,
	)
	return err
}

func (s *SQLiteStorage) CancelDispatches(ctx context.Context, ids []string) (int, error) {
	cancelled := 0
	for _, id := range ids {
		res, err := s.db.ExecContext(ctx,
			`UPDATE dispatch_jobs SET status = ? WHERE id = ? AND status IN (?, ?)`,
			models.DispatchCancelled, id, models.DispatchPending, models.DispatchSending,
		)
		if err != nil {
			return cancelled, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			cancelled++
		}
	}
	return cancelled, nil
}

// ResetDispatch reactivates a cancelled job with a fresh schedule, the
// campaign resume path.
func (s *SQLiteStorage) ResetDispatch(ctx context.Context, id string, scheduledAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE dispatch_jobs SET status = ?, scheduled_at = ?, error = '' WHERE id = ? AND status = ?`,
		models.DispatchPending, scheduledAt, id, models.DispatchCancelled,
	)
	return err
}

func (s *SQLiteStorage) DeleteDispatch(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dispatch_jobs WHERE id = ?`, id)
	return err
}

func (s *SQLiteStorage) DispatchStats(ctx context.Context) (*DispatchStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM dispatch_jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &DispatchStats{}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.Total += count
		switch models.DispatchStatus(status) {
		case models.DispatchPending:
			stats.Pending = count
		case models.DispatchSending:
			stats.Sending = count
		case models.DispatchSent:
			stats.Sent = count
		case models.DispatchError:
			stats.Errors = count
		case models.DispatchCancelled:
			stats.Cancelled = count
		}
	}
	return stats, rows.Err()
}

// --- Templates ---

func (s *SQLiteStorage) CreateTemplate(ctx context.Context, t *models.Template) error {
	variables, _ := json.Marshal(t.Variables)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO message_templates (id, name, content, category, variables, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Content, t.Category, string(variables), t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func scanTemplate(row interface{ Scan(...interface{}) error }) (*models.Template, error) {
	var t models.Template
	var variables string
	err := row.Scan(&t.ID, &t.Name, &t.Content, &t.Category, &variables, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(variables), &t.Variables)
	return &t, nil
}

func (s *SQLiteStorage) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, content, category, variables, created_at, updated_at FROM message_templates WHERE id = ?`, id)
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (s *SQLiteStorage) ListTemplates(ctx context.Context, category string) ([]models.Template, error) {
	query := `SELECT id, name, content, category, variables, created_at, updated_at FROM message_templates`
	args := []interface{}{}
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

func (s *SQLiteStorage) UpdateTemplate(ctx context.Context, t *models.Template) error {
	variables, _ := json.Marshal(t.Variables)
	res, err := s.db.ExecContext(ctx,
		`UPDATE message_templates SET name = ?, content = ?, category = ?, variables = ?, updated_at = ? WHERE id = ?`,
		t.Name, t.Content, t.Category, string(variables), time.Now().UTC(), t.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStorage) DeleteTemplate(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM message_templates WHERE id = ?`, id)
	return err
}

// --- Sessions ---

func (s *SQLiteStorage) CreateSession(ctx context.Context, sess *models.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO wa_sessions (id, name, status, qrcode, profile_name, profile_pic, last_sync_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Name, sess.Status, sess.QRCode, sess.ProfileName, sess.ProfilePic,
		nullTime(sess.LastSyncAt), sess.CreatedAt,
	)
	return err
}

const sessionCols = `id, name, status, qrcode, profile_name, profile_pic, last_sync_at, created_at`

func scanSession(row interface{ Scan(...interface{}) error }) (*models.Session, error) {
	var sess models.Session
	var lastSync sql.NullTime
	err := row.Scan(&sess.ID, &sess.Name, &sess.Status, &sess.QRCode, &sess.ProfileName,
		&sess.ProfilePic, &lastSync, &sess.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lastSync.Valid {
		sess.LastSyncAt = &lastSync.Time
	}
	return &sess, nil
}

func (s *SQLiteStorage) GetSession(ctx context.Context, id string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM wa_sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sess, err
}

func (s *SQLiteStorage) GetSessionByName(ctx context.Context, name string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM wa_sessions WHERE name = ?`, name)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sess, err
}

func (s *SQLiteStorage) ListSessions(ctx context.Context) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionCols+` FROM wa_sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStorage) UpdateSessionState(ctx context.Context, id string, status models.SessionStatus, qrcode, profileName, profilePic string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE wa_sessions SET status = ?, qrcode = ?, profile_name = ?, profile_pic = ?, last_sync_at = ? WHERE id = ?`,
		status, qrcode, profileName, profilePic, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStorage) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM wa_sessions WHERE id = ?`, id)
	return err
}

// --- helpers ---

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
