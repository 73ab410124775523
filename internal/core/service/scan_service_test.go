package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/qrstock/inventory-api/internal/core/domain"
	"github.com/qrstock/inventory-api/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory stub repository
// ---------------------------------------------------------------------------

type stubRecordRepo struct {
	mu      sync.Mutex
	byKey   map[domain.Key]*domain.InventoryRecord
	events  []*domain.ScanEvent
	nextID  int64
	findErr error // if set, FindByKey returns this error
	saveErr error // if set, Create and Update return this error
	eventErr error
}

func newStubRecordRepo() *stubRecordRepo {
	return &stubRecordRepo{byKey: make(map[domain.Key]*domain.InventoryRecord)}
}

func (r *stubRecordRepo) FindByKey(_ context.Context, key domain.Key) (*domain.InventoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	rec, ok := r.byKey[key]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	clone := *rec
	return &clone, nil
}

func (r *stubRecordRepo) Create(_ context.Context, rec *domain.InventoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.nextID++
	rec.ID = r.nextID
	clone := *rec
	r.byKey[rec.Key()] = &clone
	return nil
}

func (r *stubRecordRepo) Update(_ context.Context, rec *domain.InventoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	if _, ok := r.byKey[rec.Key()]; !ok {
		return domain.ErrRecordNotFound
	}
	clone := *rec
	r.byKey[rec.Key()] = &clone
	return nil
}

func (r *stubRecordRepo) List(_ context.Context, f ports.ListRecordsFilter) ([]*domain.InventoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.InventoryRecord
	for _, rec := range r.byKey {
		if f.Client != "" && rec.Client != f.Client {
			continue
		}
		clone := *rec
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *stubRecordRepo) InsertEvent(_ context.Context, e *domain.ScanEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.eventErr != nil {
		return r.eventErr
	}
	r.events = append(r.events, e)
	return nil
}

type stubReplayCache struct {
	entries map[string]*ports.ScanResult
}

func (c *stubReplayCache) Get(_ context.Context, key string) (*ports.ScanResult, bool, error) {
	r, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	clone := *r
	return &clone, true, nil
}

func (c *stubReplayCache) Put(_ context.Context, key string, result *ports.ScanResult) error {
	clone := *result
	c.entries[key] = &clone
	return nil
}

type countingLocker struct {
	acquired int
	released int
}

func (l *countingLocker) Acquire(_ context.Context, _ string) (func(context.Context) error, error) {
	l.acquired++
	return func(context.Context) error {
		l.released++
		return nil
	}, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var discardLogger = zerolog.Nop()

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func scan(t *testing.T, svc *ScanService, qr string) *ports.ScanResult {
	t.Helper()
	res, err := svc.Scan(context.Background(), ports.ScanInput{QRContent: qr, Actor: "worker@example.com"})
	if err != nil {
		t.Fatalf("scan %q: unexpected error: %v", qr, err)
	}
	return res
}

// ---------------------------------------------------------------------------
// Scan tests
// ---------------------------------------------------------------------------

func TestScanService_Scan_Lifecycle(t *testing.T) {
	repo := newStubRecordRepo()
	svc := NewScanService(repo, discardLogger)

	want := []struct {
		action domain.ScanAction
		status domain.RecordStatus
	}{
		{domain.ActionStored, domain.StatusInStock},
		{domain.ActionDispatched, domain.StatusDispatched},
		{domain.ActionInstalled, domain.StatusInstalled},
		{domain.ActionUninstalled, domain.StatusUninstalled},
		{domain.ActionAlreadyCompleted, domain.StatusUninstalled},
		{domain.ActionAlreadyCompleted, domain.StatusUninstalled},
	}
	for i, w := range want {
		res := scan(t, svc, "OG971390|202630010002")
		if res.Action != w.action || res.Record.Status != w.status {
			t.Fatalf("scan %d: expected %s/%s, got %s/%s", i, w.action, w.status, res.Action, res.Record.Status)
		}
	}

	if len(repo.byKey) != 1 {
		t.Fatalf("expected 1 stored record, got %d", len(repo.byKey))
	}
	if len(repo.events) != 4 {
		t.Fatalf("expected 4 audit events (no event once completed), got %d", len(repo.events))
	}
	if repo.events[0].From != "" || repo.events[1].From != domain.StatusInStock {
		t.Errorf("unexpected event transitions: %+v %+v", repo.events[0], repo.events[1])
	}
}

func TestScanService_Scan_StoresActorAndClient(t *testing.T) {
	repo := newStubRecordRepo()
	now := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)
	svc := NewScanService(repo, discardLogger, WithClock(fixedClock(now)))

	res, err := svc.Scan(context.Background(), ports.ScanInput{
		QRContent: "REF1|S1",
		Actor:     "planta@example.com",
		Client:    "acme",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := repo.byKey[domain.Key{Reference: "REF1", Serial: "S1"}]
	if stored.StockedBy != "planta@example.com" || stored.Client != "acme" {
		t.Errorf("actor/client not persisted: %+v", stored)
	}
	if stored.StockedAt == nil || !stored.StockedAt.Equal(now) {
		t.Errorf("stocked timestamp not persisted")
	}
	if res.Record.ID != 1 {
		t.Errorf("expected assigned id 1, got %d", res.Record.ID)
	}
}

func TestScanService_Scan_InvalidPayload(t *testing.T) {
	repo := newStubRecordRepo()
	svc := NewScanService(repo, discardLogger)

	_, err := svc.Scan(context.Background(), ports.ScanInput{QRContent: "a|b|c"})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(repo.byKey) != 0 {
		t.Fatal("nothing must be stored for an invalid payload")
	}
}

func TestScanService_Scan_StoreFailure(t *testing.T) {
	repo := newStubRecordRepo()
	repo.saveErr = domain.NewStoreError("create record", errors.New("disk full"))
	svc := NewScanService(repo, discardLogger)

	_, err := svc.Scan(context.Background(), ports.ScanInput{QRContent: "R|S"})
	var se *domain.StoreError
	if !errors.As(err, &se) {
		t.Fatalf("expected StoreError, got %v", err)
	}
}

func TestScanService_Scan_LookupFailure(t *testing.T) {
	repo := newStubRecordRepo()
	repo.findErr = domain.NewStoreError("find record", errors.New("timeout"))
	svc := NewScanService(repo, discardLogger)

	if _, err := svc.Scan(context.Background(), ports.ScanInput{QRContent: "R|S"}); err == nil {
		t.Fatal("expected lookup failure to surface")
	}
	if len(repo.byKey) != 0 {
		t.Fatal("a failed lookup must not create a record")
	}
}

func TestScanService_Scan_EventFailureIsNotFatal(t *testing.T) {
	repo := newStubRecordRepo()
	repo.eventErr = errors.New("audit unavailable")
	svc := NewScanService(repo, discardLogger)

	res := scan(t, svc, "R|S")
	if res.Action != domain.ActionStored {
		t.Fatalf("expected stored, got %s", res.Action)
	}
}

func TestScanService_Scan_IdempotentReplay(t *testing.T) {
	repo := newStubRecordRepo()
	cache := &stubReplayCache{entries: map[string]*ports.ScanResult{}}
	svc := NewScanService(repo, discardLogger, WithReplayCache(cache))

	in := ports.ScanInput{QRContent: "R|S", IdempotencyKey: "req-1"}
	first, err := svc.Scan(context.Background(), in)
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	second, err := svc.Scan(context.Background(), in)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}

	if !second.Replayed {
		t.Error("expected replayed result")
	}
	if second.Action != first.Action || second.Record.Status != domain.StatusInStock {
		t.Errorf("replay must return the first result, got %s/%s", second.Action, second.Record.Status)
	}
	if stored := repo.byKey[domain.Key{Reference: "R", Serial: "S"}]; stored.Status != domain.StatusInStock {
		t.Errorf("replay must not advance the record, status=%s", stored.Status)
	}
}

func TestScanService_Scan_IdempotencyKeyReusedForOtherItem(t *testing.T) {
	repo := newStubRecordRepo()
	cache := &stubReplayCache{entries: map[string]*ports.ScanResult{}}
	svc := NewScanService(repo, discardLogger, WithReplayCache(cache))

	if _, err := svc.Scan(context.Background(), ports.ScanInput{QRContent: "R|S", IdempotencyKey: "req-1"}); err != nil {
		t.Fatalf("first scan: %v", err)
	}

	_, err := svc.Scan(context.Background(), ports.ScanInput{QRContent: "OTHER|S2", IdempotencyKey: "req-1"})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "Idempotency-Key" {
		t.Fatalf("expected Idempotency-Key validation error, got %v", err)
	}
	if _, ok := repo.byKey[domain.Key{Reference: "OTHER", Serial: "S2"}]; ok {
		t.Fatal("rejected scan must not create a record")
	}
	if cached := cache.entries["req-1"]; cached.Record.Reference != "R" {
		t.Fatalf("cached result must stay bound to R|S, got %+v", cached.Record)
	}
}

// lockCheckingCache fails when used outside the scan lock.
type lockCheckingCache struct {
	stubReplayCache
	locker *countingLocker
	t      *testing.T
}

func (c *lockCheckingCache) held() bool { return c.locker.acquired > c.locker.released }

func (c *lockCheckingCache) Get(ctx context.Context, key string) (*ports.ScanResult, bool, error) {
	if !c.held() {
		c.t.Error("replay lookup ran outside the scan lock")
	}
	return c.stubReplayCache.Get(ctx, key)
}

func (c *lockCheckingCache) Put(ctx context.Context, key string, result *ports.ScanResult) error {
	if !c.held() {
		c.t.Error("replay store ran outside the scan lock")
	}
	return c.stubReplayCache.Put(ctx, key, result)
}

func TestScanService_Scan_ReplayCacheUsedUnderLock(t *testing.T) {
	repo := newStubRecordRepo()
	locker := &countingLocker{}
	cache := &lockCheckingCache{
		stubReplayCache: stubReplayCache{entries: map[string]*ports.ScanResult{}},
		locker:          locker,
		t:               t,
	}
	svc := NewScanService(repo, discardLogger, WithLocker(locker), WithReplayCache(cache))

	in := ports.ScanInput{QRContent: "R|S", IdempotencyKey: "req-1"}
	for i := 0; i < 2; i++ {
		if _, err := svc.Scan(context.Background(), in); err != nil {
			t.Fatalf("scan %d: %v", i, err)
		}
	}
	if len(cache.entries) != 1 {
		t.Fatalf("expected one cached result, got %d", len(cache.entries))
	}
}

func TestScanService_Scan_UsesLocker(t *testing.T) {
	repo := newStubRecordRepo()
	locker := &countingLocker{}
	svc := NewScanService(repo, discardLogger, WithLocker(locker))

	scan(t, svc, "R|S")
	scan(t, svc, "R|S")

	if locker.acquired != 2 || locker.released != 2 {
		t.Fatalf("expected 2 acquire/release pairs, got %d/%d", locker.acquired, locker.released)
	}
}

type recordingSerializer struct {
	keys []string
}

func (s *recordingSerializer) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	s.keys = append(s.keys, key)
	return fn(ctx)
}

func TestScanService_Scan_RoutesThroughSerializer(t *testing.T) {
	repo := newStubRecordRepo()
	ser := &recordingSerializer{}
	svc := NewScanService(repo, discardLogger, WithSerializer(ser))

	scan(t, svc, " REF1 | S1 ")

	if len(ser.keys) != 1 || ser.keys[0] != "REF1|S1" {
		t.Fatalf("expected serialization on normalized key, got %v", ser.keys)
	}
}

// ---------------------------------------------------------------------------
// RecentScans / Stats tests
// ---------------------------------------------------------------------------

func TestScanService_RecentScans_NewestFirstAndLimit(t *testing.T) {
	repo := newStubRecordRepo()
	svc := NewScanService(repo, discardLogger)

	for _, qr := range []string{"A|1", "B|2", "C|3"} {
		scan(t, svc, qr)
	}

	recent, err := svc.RecentScans(context.Background(), ports.RecentScansInput{Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	if recent[0].Reference != "C" || recent[1].Reference != "B" {
		t.Fatalf("expected newest first, got %s, %s", recent[0].Reference, recent[1].Reference)
	}
}

func TestScanService_RecentScans_DefaultLimit(t *testing.T) {
	repo := newStubRecordRepo()
	svc := NewScanService(repo, discardLogger)

	for i := 0; i < 12; i++ {
		scan(t, svc, "REF|"+string(rune('a'+i)))
	}

	recent, err := svc.RecentScans(context.Background(), ports.RecentScansInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recent) != defaultRecentLimit {
		t.Fatalf("expected default limit %d, got %d", defaultRecentLimit, len(recent))
	}
}

func TestScanService_Stats_CountsByStatus(t *testing.T) {
	repo := newStubRecordRepo()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := NewScanService(repo, discardLogger, WithClock(fixedClock(now)), WithLocation(time.UTC))

	scan(t, svc, "A|1")
	scan(t, svc, "B|2")
	scan(t, svc, "B|2") // dispatched
	scan(t, svc, "C|3")
	scan(t, svc, "C|3")
	scan(t, svc, "C|3") // installed

	old := now.AddDate(0, 0, -3)
	repo.byKey[domain.Key{Reference: "OLD", Serial: "1"}] = &domain.InventoryRecord{
		ID: 99, Reference: "OLD", Serial: "1", Status: domain.StatusUninstalled, StockedAt: &old, UninstalledAt: &old,
	}

	stats, err := svc.Stats(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := ports.Stats{Total: 4, InStock: 1, Dispatched: 1, Installed: 1, Uninstalled: 1, Today: 3}
	if *stats != want {
		t.Fatalf("expected %+v, got %+v", want, *stats)
	}
}

func TestScanService_Stats_FiltersByClient(t *testing.T) {
	repo := newStubRecordRepo()
	svc := NewScanService(repo, discardLogger)

	_, _ = svc.Scan(context.Background(), ports.ScanInput{QRContent: "A|1", Client: "acme"})
	_, _ = svc.Scan(context.Background(), ports.ScanInput{QRContent: "B|1", Client: "globex"})

	stats, err := svc.Stats(context.Background(), "acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Total != 1 || stats.InStock != 1 {
		t.Fatalf("expected only acme records, got %+v", stats)
	}
}
