package repository

import (
	"context"
	"time"

	"github.com/GoPolymarket/tradevault/internal/middleware"
	"github.com/GoPolymarket/tradevault/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresIdempotencyStore struct {
	db *gorm.DB
}

func NewPostgresIdempotencyStore(db *gorm.DB) *PostgresIdempotencyStore {
	return &PostgresIdempotencyStore{db: db}
}

func (s *PostgresIdempotencyStore) GetOrLock(key string) (*middleware.IdempotencyRecord, bool) {
	ctx := context.Background()
	row := model.IdempotencyKey{
		Key:        key,
		Processing: true,
		CreatedAt:  time.Now().UTC(),
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error == nil && result.RowsAffected > 0 {
		return nil, false
	}

	var existing model.IdempotencyKey
	if err := s.db.WithContext(ctx).Where(&model.IdempotencyKey{Key: key}).First(&existing).Error; err != nil {
		return nil, false
	}
	return &middleware.IdempotencyRecord{
		Status:     existing.StatusCode,
		Body:       existing.ResponseBody,
		CreatedAt:  existing.CreatedAt,
		Processing: existing.Processing,
	}, true
}

func (s *PostgresIdempotencyStore) Save(key string, status int, body []byte) {
	_ = s.db.WithContext(context.Background()).
		Model(&model.IdempotencyKey{}).
		Where(&model.IdempotencyKey{Key: key}).
		Updates(map[string]interface{}{
			"status_code":   status,
			"response_body": body,
			"processing":    false,
		}).Error
}

func (s *PostgresIdempotencyStore) Unlock(key string) {
	_ = s.db.WithContext(context.Background()).Delete(&model.IdempotencyKey{Key: key}).Error
}

func (s *PostgresIdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	return s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&model.IdempotencyKey{}).Error
}
