package models

import "time"

type ContactStatus string

const (
	ContactToContact     ContactStatus = "to_contact"
	ContactContacted     ContactStatus = "contacted"
	ContactNotInterested ContactStatus = "not_interested"
	ContactNegotiating   ContactStatus = "negotiating"
	ContactConverted     ContactStatus = "converted"
)

func (s ContactStatus) Valid() bool {
	switch s {
	case ContactToContact, ContactContacted, ContactNotInterested, ContactNegotiating, ContactConverted:
		return true
	}
	return false
}

type Contact struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Phone         string        `json:"phone,omitempty"`
	Address       string        `json:"address,omitempty"`
	Category      string        `json:"category,omitempty"`
	Website       string        `json:"website,omitempty"`
	Rating        float64       `json:"rating,omitempty"`
	ReviewCount   int           `json:"review_count,omitempty"`
	PlaceID       string        `json:"place_id,omitempty"`
	SearchTerm    string        `json:"search_term,omitempty"`
	Status        ContactStatus `json:"status"`
	Notes         string        `json:"notes,omitempty"`
	CapturedAt    time.Time     `json:"captured_at"`
	LastContactAt *time.Time    `json:"last_contact_at,omitempty"`
}
