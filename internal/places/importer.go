package places

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/lucasvieira/zapcamp/internal/models"
	"github.com/lucasvieira/zapcamp/internal/storage"
)

type ImportResult struct {
	Found    int `json:"found"`
	Imported int `json:"imported"`
}

// Importer runs place searches and stores the results as contacts in the
// to_contact funnel stage. Between consecutive searches it waits pageDelay
// to stay under the search provider's rate limits.
type Importer struct {
	client    *Client
	store     storage.Storage
	pageDelay time.Duration
	log       zerolog.Logger
}

func NewImporter(client *Client, store storage.Storage, pageDelay time.Duration, log zerolog.Logger) *Importer {
	return &Importer{client: client, store: store, pageDelay: pageDelay, log: log}
}

// Import captures listings for one search. Duplicates (matched by place id,
// falling back to phone) are dropped by the store.
func (i *Importer) Import(ctx context.Context, term, location string) (*ImportResult, error) {
	listings, err := i.client.Search(ctx, term, location)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	contacts := make([]models.Contact, 0, len(listings))
	for _, l := range listings {
		contacts = append(contacts, models.Contact{
			ID:          models.NewID("ct"),
			Name:        l.Title,
			Phone:       l.Phone,
			Address:     l.Address,
			Category:    l.Category,
			Website:     l.Website,
			Rating:      l.Rating,
			ReviewCount: l.RatingCount,
			PlaceID:     l.PlaceID,
			SearchTerm:  term,
			Status:      models.ContactToContact,
			CapturedAt:  now,
		})
	}

	imported, err := i.store.CreateContacts(ctx, contacts)
	if err != nil {
		return nil, err
	}

	i.log.Info().
		Str("term", term).
		Str("location", location).
		Int("found", len(listings)).
		Int("imported", imported).
		Msg("places imported")

	return &ImportResult{Found: len(listings), Imported: imported}, nil
}

// ImportMany runs several searches in sequence with the configured delay
// between them.
func (i *Importer) ImportMany(ctx context.Context, terms []string, location string) (*ImportResult, error) {
	total := &ImportResult{}
	for idx, term := range terms {
		result, err := i.Import(ctx, term, location)
		if err != nil {
			return total, err
		}
		total.Found += result.Found
		total.Imported += result.Imported

		if idx < len(terms)-1 && i.pageDelay > 0 {
			select {
			case <-ctx.Done():
				return total, ctx.Err()
			case <-time.After(i.pageDelay):
			}
		}
	}
	return total, nil
}
