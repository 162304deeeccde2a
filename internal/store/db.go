package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNoView is returned when a session has nothing displayed in a tab.
var ErrNoView = errors.New("no structure loaded")

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&View{}, &Prediction{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	return &Database{gorm: db}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveView inserts or replaces the view for the session and tab.
func (d *Database) SaveView(view *View) error {
	if view == nil {
		return errors.New("view is nil")
	}
	view.SessionID = strings.TrimSpace(view.SessionID)
	if view.SessionID == "" || view.Tab == "" {
		return errors.New("view requires session and tab")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}, {Name: "tab"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"format",
			"content",
			"accession",
			"file_name",
			"sequence",
			"plddt",
			"viewer_key",
			"sequence_length",
			"updated_at",
		}),
	}).Create(view).Error
}

// GetView returns the view for the session and tab, or ErrNoView.
func (d *Database) GetView(sessionID, tab string) (*View, error) {
	var view View
	err := d.gorm.Where("session_id = ? AND tab = ?", sessionID, tab).First(&view).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoView
	}
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// ListViews returns all views of a session ordered by tab.
func (d *Database) ListViews(sessionID string) ([]View, error) {
	var views []View
	if err := d.gorm.Where("session_id = ?", sessionID).Order("tab").Find(&views).Error; err != nil {
		return nil, err
	}
	return views, nil
}

// ClearView removes the view for the session and tab. Clearing an empty tab is not an error.
func (d *Database) ClearView(sessionID, tab string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Where("session_id = ? AND tab = ?", sessionID, tab).Delete(&View{}).Error
}

// PurgeViewsBefore deletes views not touched since cutoff and returns how many were removed.
func (d *Database) PurgeViewsBefore(cutoff time.Time) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := d.gorm.Where("updated_at < ?", cutoff).Delete(&View{})
	return res.RowsAffected, res.Error
}

// SequenceHash is the cache key for a sequence.
func SequenceHash(sequence string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(sequence)))
	return hex.EncodeToString(sum[:])
}

// SavePrediction stores a folded structure for later reuse.
func (d *Database) SavePrediction(sequence, content string) error {
	sequence = strings.TrimSpace(sequence)
	if sequence == "" {
		return errors.New("sequence is empty")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sequence_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "updated_at"}),
	}).Create(&Prediction{
		SequenceHash: SequenceHash(sequence),
		Sequence:     sequence,
		Content:      content,
	}).Error
}

// GetPrediction returns a previously stored structure for sequence.
func (d *Database) GetPrediction(sequence string) (string, bool, error) {
	var p Prediction
	err := d.gorm.Where("sequence_hash = ?", SequenceHash(sequence)).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return p.Content, true, nil
}

// CountPredictions returns the number of cached predictions.
func (d *Database) CountPredictions() (int64, error) {
	var count int64
	if err := d.gorm.Model(&Prediction{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
