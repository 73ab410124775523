package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/qrstock/inventory-api/internal/core/domain"
	"github.com/qrstock/inventory-api/internal/core/ports"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 1000
)

// KeySerializer runs fn so that no two calls for the same key overlap.
type KeySerializer interface {
	Do(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// KeyLocker abstracts a lock shared between service instances (Redis).
type KeyLocker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

// ReplayCache abstracts the idempotency store for scan requests (Redis).
type ReplayCache interface {
	Get(ctx context.Context, idempotencyKey string) (*ports.ScanResult, bool, error)
	Put(ctx context.Context, idempotencyKey string, result *ports.ScanResult) error
}

// ScanOption configures a ScanService.
type ScanOption func(*ScanService)

// WithSerializer routes every read-modify-write through s.
func WithSerializer(s KeySerializer) ScanOption {
	return func(svc *ScanService) { svc.serializer = s }
}

// WithLocker wraps every read-modify-write in a cross-process lock.
func WithLocker(l KeyLocker) ScanOption {
	return func(svc *ScanService) { svc.locker = l }
}

// WithReplayCache enables Idempotency-Key handling.
func WithReplayCache(c ReplayCache) ScanOption {
	return func(svc *ScanService) { svc.replay = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ScanOption {
	return func(svc *ScanService) { svc.now = now }
}

// WithLocation sets the timezone used to decide what "today" means.
func WithLocation(loc *time.Location) ScanOption {
	return func(svc *ScanService) { svc.loc = loc }
}

type ScanService struct {
	repo       ports.RecordRepository
	serializer KeySerializer
	locker     KeyLocker
	replay     ReplayCache
	now        func() time.Time
	loc        *time.Location
	logger     zerolog.Logger
}

func NewScanService(repo ports.RecordRepository, logger zerolog.Logger, opts ...ScanOption) *ScanService {
	s := &ScanService{
		repo:       repo,
		serializer: inlineSerializer{},
		now:        time.Now,
		loc:        time.Local,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan parses the payload and advances the matching record one step through
// its lifecycle, creating it on first sight.
func (s *ScanService) Scan(ctx context.Context, in ports.ScanInput) (*ports.ScanResult, error) {
	key, err := domain.ParseQR(in.QRContent)
	if err != nil {
		s.logger.Info().Str("qr_content", in.QRContent).Msg("rejected malformed qr payload")
		return nil, err
	}

	var result *ports.ScanResult
	err = s.serializer.Do(ctx, key.String(), func(ctx context.Context) error {
		r, err := s.lockedScan(ctx, key, in)
		result = r
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", key, err)
	}
	if result.Replayed {
		s.logger.Info().Str("idempotency_key", in.IdempotencyKey).Str("key", key.String()).Msg("idempotent replay")
		return result, nil
	}

	s.logger.Info().
		Str("key", key.String()).
		Str("action", string(result.Action)).
		Str("status", string(result.Record.Status)).
		Str("actor", in.Actor).
		Msg("scan processed")

	return result, nil
}

// lockedScan holds the cross-process lock for key while it consults the replay
// cache, applies the scan and records the result under the Idempotency-Key.
// Callers serialize it per key.
func (s *ScanService) lockedScan(ctx context.Context, key domain.Key, in ports.ScanInput) (*ports.ScanResult, error) {
	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, key.String())
		if err != nil {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn().Err(err).Str("key", key.String()).Msg("failed to release scan lock")
			}
		}()
	}

	useReplay := in.IdempotencyKey != "" && s.replay != nil
	if useReplay {
		cached, ok, err := s.replay.Get(ctx, in.IdempotencyKey)
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Str("idempotency_key", in.IdempotencyKey).Msg("replay lookup failed, processing anyway")
		case ok && cached.Record.Key() != key:
			return nil, &domain.ValidationError{
				Field:  "Idempotency-Key",
				Input:  in.IdempotencyKey,
				Reason: "already used for " + cached.Record.Key().String(),
			}
		case ok:
			cached.Replayed = true
			return cached, nil
		}
	}

	result, err := s.apply(ctx, key, in)
	if err != nil {
		return nil, err
	}

	if useReplay {
		if err := s.replay.Put(context.WithoutCancel(ctx), in.IdempotencyKey, result); err != nil {
			s.logger.Warn().Err(err).Str("idempotency_key", in.IdempotencyKey).Msg("failed to store replay result")
		}
	}
	return result, nil
}

// apply is the read-modify-write for one key.
func (s *ScanService) apply(ctx context.Context, key domain.Key, in ports.ScanInput) (*ports.ScanResult, error) {
	existing, err := s.repo.FindByKey(ctx, key)
	if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
		return nil, err
	}

	now := s.now()
	next, action := domain.Advance(existing, key, now, in.Actor, in.Client)

	switch action {
	case domain.ActionAlreadyCompleted:
		return &ports.ScanResult{Action: action, Record: next}, nil
	case domain.ActionStored:
		if err := s.repo.Create(ctx, &next); err != nil {
			return nil, err
		}
	default:
		if err := s.repo.Update(ctx, &next); err != nil {
			return nil, err
		}
	}

	event := &domain.ScanEvent{
		ID:        uuid.NewString(),
		Reference: key.Reference,
		Serial:    key.Serial,
		To:        next.Status,
		Action:    action,
		Actor:     in.Actor,
		Client:    next.Client,
		Timestamp: now.UTC(),
	}
	if existing != nil {
		event.From = existing.Status
	}
	if err := s.repo.InsertEvent(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("failed to insert scan event")
	}

	return &ports.ScanResult{Action: action, Record: next}, nil
}

// RecentScans returns the newest records first. A non-positive limit falls
// back to 10; limits above 1000 are capped.
func (s *ScanService) RecentScans(ctx context.Context, in ports.RecentScansInput) ([]*domain.InventoryRecord, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	return s.repo.List(ctx, ports.ListRecordsFilter{Client: in.Client, Limit: limit})
}

// Stats counts records per status. When client is non-empty only that
// client's records are counted.
func (s *ScanService) Stats(ctx context.Context, client string) (*ports.Stats, error) {
	records, err := s.repo.List(ctx, ports.ListRecordsFilter{Client: client})
	if err != nil {
		return nil, err
	}

	now := s.now()
	stats := &ports.Stats{Total: len(records)}
	for _, r := range records {
		switch r.Status {
		case domain.StatusInStock:
			stats.InStock++
		case domain.StatusDispatched:
			stats.Dispatched++
		case domain.StatusInstalled:
			stats.Installed++
		case domain.StatusUninstalled:
			stats.Uninstalled++
		}
		if r.Touched(now, s.loc) {
			stats.Today++
		}
	}
	return stats, nil
}

// inlineSerializer runs fn on the calling goroutine.
type inlineSerializer struct{}

func (inlineSerializer) Do(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
