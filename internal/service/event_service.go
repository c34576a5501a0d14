package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/GoPolymarket/tradevault/internal/model"
	"github.com/GoPolymarket/tradevault/internal/pkg/logger"
	"github.com/GoPolymarket/tradevault/internal/vault"
)

// EventRepo is the durable side of the notification stream.
type EventRepo interface {
	Insert(ctx context.Context, e *vault.Event) error
	List(ctx context.Context, filter model.EventFilter) ([]vault.Event, error)
}

// EventCleaner is implemented by repos that can drop old events.
type EventCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// Broadcaster receives every committed event after it is buffered.
type Broadcaster interface {
	Broadcast(e vault.Event)
}

type EventServiceOptions struct {
	BufferSize  int
	HistorySize int
	// LogDir enables a daily JSONL file of every event. Empty disables it.
	LogDir string
}

// EventService implements vault.Emitter. Emit never blocks: events go into
// an in-memory ring for reads and an async queue for the repo writer.
type EventService struct {
	eventChan chan vault.Event
	logFile   *os.File
	buffer    *eventBuffer
	repo      EventRepo
	hub       Broadcaster

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewEventService(opts EventServiceOptions, repo EventRepo, hub Broadcaster) (*EventService, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1024
	}
	svc := &EventService{
		eventChan: make(chan vault.Event, opts.BufferSize),
		buffer:    newEventBuffer(opts.HistorySize),
		repo:      repo,
		hub:       hub,
		done:      make(chan struct{}),
	}

	if opts.LogDir != "" {
		if err := os.MkdirAll(opts.LogDir, 0755); err != nil {
			return nil, err
		}
		filename := filepath.Join(opts.LogDir, "events-"+time.Now().Format("2006-01-02")+".jsonl")
		f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		svc.logFile = f
	}

	go svc.processEvents()

	return svc, nil
}

func (s *EventService) Emit(e vault.Event) {
	s.buffer.Add(e)
	if s.hub != nil {
		s.hub.Broadcast(e)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.eventChan <- e:
	default:
		logger.Warn("event queue full, dropping persisted copy", "type", e.Type, "seq", e.Seq)
	}
}

// List reads from the repo when one is configured and falls back to the
// in-memory history otherwise.
func (s *EventService) List(ctx context.Context, filter model.EventFilter) ([]vault.Event, error) {
	filter = filter.Normalize()
	if s.repo != nil {
		events, err := s.repo.List(ctx, filter)
		if err == nil {
			return events, nil
		}
		logger.LogError(ctx, err, "event repo list failed, serving from memory")
	}
	return s.buffer.List(filter), nil
}

// RunRetention deletes repo events older than retention every interval
// until ctx is done. It is a no-op when the repo cannot clean up.
func (s *EventService) RunRetention(ctx context.Context, interval, retention time.Duration) {
	cleaner, ok := s.repo.(EventCleaner)
	if !ok || interval <= 0 || retention <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := cleaner.Cleanup(ctx, retention); err != nil {
				logger.LogError(ctx, err, "event retention cleanup failed")
			}
		}
	}
}

func (s *EventService) processEvents() {
	defer close(s.done)
	var encoder *json.Encoder
	if s.logFile != nil {
		encoder = json.NewEncoder(s.logFile)
	}
	for e := range s.eventChan {
		e := e
		if s.repo != nil {
			if err := s.repo.Insert(context.Background(), &e); err != nil {
				logger.Error("failed to persist event", "type", e.Type, "seq", e.Seq, "error", err)
			}
		}
		if encoder != nil {
			if err := encoder.Encode(e); err != nil {
				logger.Error("failed to write event log", "error", err)
			}
		}
	}
}

// Close drains the queue and closes the event log file.
func (s *EventService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.eventChan)
	s.mu.Unlock()

	<-s.done
	if s.logFile != nil {
		_ = s.logFile.Close()
	}
}

type eventBuffer struct {
	mu        sync.Mutex
	maxSize   int
	records   []vault.Event
	nextIndex int
}

func newEventBuffer(maxSize int) *eventBuffer {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &eventBuffer{
		maxSize: maxSize,
		records: make([]vault.Event, 0, maxSize),
	}
}

func (b *eventBuffer) Add(e vault.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) < b.maxSize {
		b.records = append(b.records, e)
		return
	}
	b.records[b.nextIndex] = e
	b.nextIndex = (b.nextIndex + 1) % b.maxSize
}

// List returns matching events, newest first.
func (b *eventBuffer) List(filter model.EventFilter) []vault.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	limit := filter.Limit
	if limit <= 0 || limit > b.maxSize {
		limit = b.maxSize
	}
	results := make([]vault.Event, 0, limit)
	total := len(b.records)
	for i := 0; i < total; i++ {
		idx := (b.nextIndex + total - 1 - i) % total
		e := b.records[idx]
		if !filter.Matches(e.Type, e.Seq, e.CreatedAt) {
			continue
		}
		results = append(results, e)
		if len(results) >= limit {
			break
		}
	}
	return results
}
