package store

import (
	"time"
)

// View is the structure currently displayed in one tab of one browser session.
type View struct {
	ID             uint     `gorm:"primaryKey"`
	SessionID      string   `gorm:"size:64;uniqueIndex:idx_views_session_tab"`
	Tab            string   `gorm:"size:16;uniqueIndex:idx_views_session_tab"`
	Format         string   `gorm:"size:8"`
	Content        string   `gorm:"type:text"`
	Accession      string   `gorm:"size:32"`
	FileName       string   `gorm:"size:256"`
	Sequence       string   `gorm:"type:text"`
	PLDDT          *float64 `gorm:"column:plddt"`
	ViewerKey      string   `gorm:"size:64"`
	SequenceLength int
	CreatedAt      time.Time
	UpdatedAt      time.Time `gorm:"index"`
}

// HasPLDDT reports whether a confidence metric could be read from the payload.
func (v *View) HasPLDDT() bool {
	return v != nil && v.PLDDT != nil
}

// Prediction caches a folded structure by the sha256 of its sequence.
type Prediction struct {
	SequenceHash string `gorm:"primaryKey;size:64"`
	Sequence     string `gorm:"type:text"`
	Content      string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
