// Package historian drains the match action queue into Postgres in batches.
package historian

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/tourney/internal/models"
)

// ActionIdle is recorded for a match that has seen no action for the
// inactivity window.
const ActionIdle = "idle"

// Source yields queued actions; nil means nothing arrived before timeout.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*models.MatchAction, error)
}

// Sink persists a batch of actions atomically.
type Sink interface {
	InsertMatchActions(ctx context.Context, actions []models.MatchAction) error
}

type matchKey struct {
	event int64
	match int
}

// Service batches actions from Source into Sink and flags idle matches.
type Service struct {
	source     Source
	sink       Sink
	logger     *logrus.Logger
	batchSize  int
	flushDelay time.Duration
	inactivity time.Duration
	popTimeout time.Duration
	now        func() time.Time

	lastActivity sync.Map // matchKey -> time.Time

	batchMu sync.Mutex
	batch   []models.MatchAction
}

// Config tunes a Service.
type Config struct {
	BatchSize  int
	FlushDelay time.Duration
	Inactivity time.Duration
}

func New(source Source, sink Sink, cfg Config, logger *logrus.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = 500 * time.Millisecond
	}
	if cfg.Inactivity <= 0 {
		cfg.Inactivity = 30 * time.Minute
	}
	return &Service{
		source:     source,
		sink:       sink,
		logger:     logger,
		batchSize:  cfg.BatchSize,
		flushDelay: cfg.FlushDelay,
		inactivity: cfg.Inactivity,
		popTimeout: 3 * time.Second,
		now:        time.Now,
		batch:      make([]models.MatchAction, 0, cfg.BatchSize),
	}
}

// Run reads and flushes until ctx is done, then flushes what is left.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.readLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.inactivityLoop(ctx)
	}()

	s.logger.Info("historian started")
	wg.Wait()
	s.Flush(context.Background())
	s.logger.Info("historian stopped")
}

func (s *Service) readLoop(ctx context.Context) {
	ticker := time.NewTicker(s.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Flush(ctx)
		default:
			action, err := s.source.Pop(ctx, s.popTimeout)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.WithError(err).Error("failed to pop match action")
				}
				continue
			}
			if action == nil {
				continue
			}
			s.Add(ctx, *action)
		}
	}
}

// Add queues an action and flushes once the batch is full.
func (s *Service) Add(ctx context.Context, action models.MatchAction) {
	s.lastActivity.Store(matchKey{action.EventID, action.MatchID}, s.now())

	s.batchMu.Lock()
	s.batch = append(s.batch, action)
	full := len(s.batch) >= s.batchSize
	s.batchMu.Unlock()

	if full {
		s.Flush(ctx)
	}
}

// Flush writes the current batch. A failed batch is kept for the next flush.
func (s *Service) Flush(ctx context.Context) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	if len(s.batch) == 0 {
		return
	}
	pending := make([]models.MatchAction, len(s.batch))
	copy(pending, s.batch)

	if err := s.sink.InsertMatchActions(ctx, pending); err != nil {
		s.logger.WithError(err).Errorf("failed to flush %d match actions", len(pending))
		return
	}
	s.batch = s.batch[:0]
	s.logger.Debugf("flushed %d match actions", len(pending))
}

func (s *Service) inactivityLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepIdle(ctx)
		}
	}
}

// SweepIdle records an idle action for every match quiet for longer than the
// inactivity window and stops tracking it.
func (s *Service) SweepIdle(ctx context.Context) {
	now := s.now()
	s.lastActivity.Range(func(key, val any) bool {
		k, ok1 := key.(matchKey)
		last, ok2 := val.(time.Time)
		if ok1 && ok2 && now.Sub(last) > s.inactivity {
			s.lastActivity.Delete(k)
			s.batchMu.Lock()
			s.batch = append(s.batch, models.MatchAction{
				EventID:   k.event,
				MatchID:   k.match,
				Actor:     "historian",
				Action:    ActionIdle,
				Timestamp: now.UnixMilli(),
			})
			s.batchMu.Unlock()
			s.logger.Infof("match %d of event %d idle since %s", k.match, k.event, last.Format(time.RFC3339))
		}
		return true
	})
	s.Flush(ctx)
}
