package domain

import "time"

const (
	SessionDisconnected    = "disconnected"
	SessionAwaitingPairing = "awaiting_pairing"
	SessionConnected       = "connected"
	SessionError           = "error"
)

// WaSession is the per-workshop status projection of the WhatsApp session:
// last-known connection status, the outstanding pairing image (only while
// awaiting_pairing) and the paired identity (set once connected). Every
// lifecycle transition overwrites the full row.
type WaSession struct {
	WorkshopID     int64     `gorm:"primaryKey" json:"workshop_id,string"`
	Status         string    `json:"status"`
	PairingImage   string    `gorm:"type:text" json:"pairing_image"`
	PairedIdentity string    `json:"paired_identity"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName Specify table name
func (WaSession) TableName() string {
	return "wa_session"
}
