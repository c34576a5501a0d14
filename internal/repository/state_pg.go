package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/GoPolymarket/tradevault/internal/model"
	"github.com/GoPolymarket/tradevault/internal/vault"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const stateRowID = "vault"

// PostgresStateStore upserts the latest snapshot into a single row.
type PostgresStateStore struct {
	db *gorm.DB
}

func NewPostgresStateStore(db *gorm.DB) *PostgresStateStore {
	return &PostgresStateStore{db: db}
}

func (s *PostgresStateStore) Save(ctx context.Context, snap *vault.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	row := model.StateRecord{
		ID:        stateRowID,
		Seq:       snap.Seq,
		Body:      string(body),
		UpdatedAt: time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"seq", "body", "updated_at"}),
	}).Create(&row).Error
}

// Load returns nil when no snapshot has been saved yet.
func (s *PostgresStateStore) Load(ctx context.Context) (*vault.Snapshot, error) {
	var row model.StateRecord
	err := s.db.WithContext(ctx).Where("id = ?", stateRowID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap vault.Snapshot
	if err := json.Unmarshal([]byte(row.Body), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
