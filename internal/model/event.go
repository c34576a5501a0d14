package model

import (
	"time"
)

// EventRecord is the persisted form of a vault notification.
type EventRecord struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Seq        uint64    `gorm:"index" json:"seq"`
	Type       string    `gorm:"index;size:64" json:"type"`
	Attributes string    `gorm:"type:text" json:"attributes"` // JSON object
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (EventRecord) TableName() string { return "vault_events" }

// StateRecord holds the latest committed vault snapshot as JSON.
type StateRecord struct {
	ID        string `gorm:"primaryKey;size:32"`
	Seq       uint64
	Body      string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (StateRecord) TableName() string { return "vault_state" }

// IdempotencyKey caches the response to a keyed control request.
type IdempotencyKey struct {
	Key          string `gorm:"primaryKey;size:200"`
	StatusCode   int
	ResponseBody []byte
	Processing   bool      `gorm:"not null;default:true"`
	CreatedAt    time.Time `gorm:"index"`
}

func (IdempotencyKey) TableName() string { return "idempotency_keys" }

// EventFilter narrows an event listing. Zero values disable a filter.
type EventFilter struct {
	Type     string
	AfterSeq uint64
	From     *time.Time
	To       *time.Time
	Limit    int
}

// Normalize clamps Limit into [1, 1000], defaulting to 100.
func (f EventFilter) Normalize() EventFilter {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 100
	}
	return f
}

// Matches reports whether an event with the given fields passes the filter.
func (f EventFilter) Matches(eventType string, seq uint64, at time.Time) bool {
	if f.Type != "" && eventType != f.Type {
		return false
	}
	if f.AfterSeq > 0 && seq <= f.AfterSeq {
		return false
	}
	if f.From != nil && at.Before(*f.From) {
		return false
	}
	if f.To != nil && at.After(*f.To) {
		return false
	}
	return true
}
