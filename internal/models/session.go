package models

import "time"

type SessionStatus string

const (
	SessionConnected    SessionStatus = "connected"
	SessionDisconnected SessionStatus = "disconnected"
	SessionConnecting   SessionStatus = "connecting"
	SessionQRCode       SessionStatus = "qrcode"
)

// Session is a WhatsApp connection registered with the gateway. Name is the
// gateway-side session identifier dispatch jobs reference.
type Session struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Status      SessionStatus `json:"status"`
	QRCode      string        `json:"qrcode,omitempty"`
	ProfileName string        `json:"profile_name,omitempty"`
	ProfilePic  string        `json:"profile_pic,omitempty"`
	LastSyncAt  *time.Time    `json:"last_sync_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}
