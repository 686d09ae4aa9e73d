package model

import "time"

// LinkRecord is the persisted entry for one alias. The alias itself is the
// store key and is not repeated inside the value. Field names follow the
// public wire format, which is also the storage format.
type LinkRecord struct {
	Original    string     `json:"original"`
	ShortURL    string     `json:"new"`
	CreatedAt   time.Time  `json:"created_at"`
	Visits      int64      `json:"visits"`
	LastVisited *time.Time `json:"last_visited"`
}

// QRRecord is a LinkRecord plus the freshly rendered QR markup. The qr_code
// field is derived from the alias on every response and never read back from
// storage.
type QRRecord struct {
	LinkRecord
	QRCode string `json:"qr_code"`
}
