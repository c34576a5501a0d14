package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/GoPolymarket/tradevault/internal/model"
	"github.com/GoPolymarket/tradevault/internal/vault"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresEventRepo struct {
	db *gorm.DB
}

func NewPostgresEventRepo(db *gorm.DB) *PostgresEventRepo {
	return &PostgresEventRepo{db: db}
}

func (r *PostgresEventRepo) Insert(ctx context.Context, e *vault.Event) error {
	if e == nil {
		return nil
	}
	attrs, err := json.Marshal(e.Attributes)
	if err != nil {
		return err
	}
	row := model.EventRecord{
		ID:         e.ID,
		Seq:        e.Seq,
		Type:       e.Type,
		Attributes: string(attrs),
		CreatedAt:  e.CreatedAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

// List returns matching events, newest first.
func (r *PostgresEventRepo) List(ctx context.Context, filter model.EventFilter) ([]vault.Event, error) {
	filter = filter.Normalize()
	q := r.db.WithContext(ctx).Model(&model.EventRecord{})
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.AfterSeq > 0 {
		q = q.Where("seq > ?", filter.AfterSeq)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}
	var rows []model.EventRecord
	if err := q.Order("seq DESC").Limit(filter.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	events := make([]vault.Event, 0, len(rows))
	for _, row := range rows {
		e := vault.Event{
			ID:        row.ID,
			Seq:       row.Seq,
			Type:      row.Type,
			CreatedAt: row.CreatedAt,
		}
		if row.Attributes != "" {
			_ = json.Unmarshal([]byte(row.Attributes), &e.Attributes)
		}
		events = append(events, e)
	}
	return events, nil
}

func (r *PostgresEventRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	return r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&model.EventRecord{}).Error
}
