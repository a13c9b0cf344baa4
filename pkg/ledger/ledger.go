// Package ledger keeps an append-only history of completed commits.
//
// The engine never reads the ledger to make decisions — job state is rebuilt
// from the source folder on every reload — but the history makes repeated
// commits traceable alongside the deterministic artifact naming.
package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CommitRecord is one completed commit.
type CommitRecord struct {
	ID           string `gorm:"primaryKey;size:36"`
	ResourceID   string `gorm:"index;size:255"`
	ReceiptName  string `gorm:"size:255"`
	Month        string `gorm:"index;size:7"`
	Amount       string `gorm:"size:32"`
	Category     string `gorm:"size:255"`
	SheetID      string `gorm:"size:255"`
	ArtifactID   string `gorm:"size:255"`
	ArtifactName string `gorm:"size:255"`
	CreatedAt    int64  `gorm:"autoCreateTime"`
}

// Ledger records commit history through GORM.
type Ledger struct {
	db *gorm.DB
}

// New creates a ledger on the given database handle.
func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Migrate creates the commit_records table.
func (l *Ledger) Migrate(ctx context.Context) error {
	return l.db.WithContext(ctx).AutoMigrate(&CommitRecord{})
}

// Record appends one commit record.
func (l *Ledger) Record(ctx context.Context, rec *CommitRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	return l.db.WithContext(ctx).Create(rec).Error
}

// Recent returns the latest n records, newest first.
func (l *Ledger) Recent(ctx context.Context, n int) ([]CommitRecord, error) {
	var recs []CommitRecord
	err := l.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(n).
		Find(&recs).Error
	return recs, err
}

// ForMonth returns all records for a YYYY-MM month, newest first.
func (l *Ledger) ForMonth(ctx context.Context, month string) ([]CommitRecord, error) {
	var recs []CommitRecord
	err := l.db.WithContext(ctx).
		Where("month = ?", month).
		Order("created_at DESC").
		Find(&recs).Error
	return recs, err
}
