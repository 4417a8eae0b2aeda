package domain

import "time"

type Organization struct {
	ID        string
	Name      string
	Slug      string            // Unique, human-chosen identifier
	Logo      string            // Optional logo URL
	Metadata  map[string]string // Opaque key-value, persisted as JSON
	CreatedAt time.Time
}
