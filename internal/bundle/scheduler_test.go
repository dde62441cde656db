package bundle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/avelar-dev/solarb/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRelay records submissions and fails on demand.
type fakeRelay struct {
	mu        sync.Mutex
	submitted []string
	failing   bool
}

func (r *fakeRelay) Submit(ctx context.Context, b domain.Bundle) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitted = append(r.submitted, b.ID)
	if r.failing {
		return "", errors.New("relay rejected bundle")
	}
	return "relay_" + b.ID, nil
}

func (r *fakeRelay) submissions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.submitted))
	copy(out, r.submitted)
	return out
}

// memoryBundleStore collects terminal outcomes in memory.
type memoryBundleStore struct {
	mu       sync.Mutex
	outcomes []domain.BundleOutcome
}

func (s *memoryBundleStore) Create(ctx context.Context, outcome domain.BundleOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
	return nil
}

func (s *memoryBundleStore) ListBefore(ctx context.Context, before time.Time) ([]domain.BundleOutcome, error) {
	return nil, nil
}

func (s *memoryBundleStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// denyAllLimiter refuses every request.
type denyAllLimiter struct{}

func (denyAllLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return false, nil
}

func testConfig() SchedulerConfig {
	return SchedulerConfig{
		TTL:           30 * time.Second,
		SweepInterval: 5 * time.Second,
		SubmitTimeout: time.Second,
	}
}

func testBundle(id string, createdAt time.Time) domain.Bundle {
	return domain.Bundle{
		ID:        id,
		Kind:      domain.BundleKindSandwich,
		CreatedAt: createdAt,
		Transactions: []domain.TxDescriptor{
			{Role: domain.TxRoleFrontRun},
			{Role: domain.TxRoleTarget},
			{Role: domain.TxRoleBackRun},
		},
	}
}

func TestInsertRejectsDuplicateID(t *testing.T) {
	sched := NewScheduler(testConfig(), &fakeRelay{}, testLogger())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := sched.Insert(testBundle("b1", now)); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := sched.Insert(testBundle("b1", now))
	if !errors.Is(err, domain.ErrBundleExists) {
		t.Fatalf("duplicate insert err = %v, want ErrBundleExists", err)
	}
	if sched.Len() != 1 {
		t.Fatalf("table size = %d, want 1", sched.Len())
	}
}

func TestSweepExpiresOldBundles(t *testing.T) {
	relay := &fakeRelay{}
	store := &memoryBundleStore{}
	sched := NewScheduler(testConfig(), relay, testLogger())
	sched.SetStore(store)

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := sched.Insert(testBundle("b1", created)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// 35s after creation, past the 30s TTL.
	sched.SweepOnce(context.Background(), created.Add(35*time.Second))

	if sched.Len() != 0 {
		t.Fatalf("expired bundle still in table, size = %d", sched.Len())
	}
	if len(relay.submissions()) != 0 {
		t.Fatal("expired bundle must not reach the relay")
	}
	if len(store.outcomes) != 1 || store.outcomes[0].Status != domain.BundleStatusExpired {
		t.Fatalf("outcomes = %+v, want one expired record", store.outcomes)
	}
}

func TestSweepSubmitsLiveBundle(t *testing.T) {
	relay := &fakeRelay{}
	store := &memoryBundleStore{}
	sched := NewScheduler(testConfig(), relay, testLogger())
	sched.SetStore(store)

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := sched.Insert(testBundle("b1", created)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	sched.SweepOnce(context.Background(), created.Add(5*time.Second))

	if got := relay.submissions(); len(got) != 1 || got[0] != "b1" {
		t.Fatalf("submissions = %v, want [b1]", got)
	}
	if sched.Len() != 0 {
		t.Fatalf("submitted bundle still in table, size = %d", sched.Len())
	}
	if len(store.outcomes) != 1 {
		t.Fatalf("outcomes = %d, want 1", len(store.outcomes))
	}
	outcome := store.outcomes[0]
	if outcome.Status != domain.BundleStatusSubmitted {
		t.Fatalf("status = %s, want submitted", outcome.Status)
	}
	if outcome.RelayID != "relay_b1" {
		t.Fatalf("relay ID = %q, want relay_b1", outcome.RelayID)
	}
	if outcome.TxCount != 3 {
		t.Fatalf("tx count = %d, want 3", outcome.TxCount)
	}
}

func TestSweepFailureIsTerminal(t *testing.T) {
	relay := &fakeRelay{failing: true}
	store := &memoryBundleStore{}
	sched := NewScheduler(testConfig(), relay, testLogger())
	sched.SetStore(store)

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := sched.Insert(testBundle("b1", created)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	sched.SweepOnce(context.Background(), created.Add(5*time.Second))
	if sched.Len() != 0 {
		t.Fatalf("failed bundle still in table, size = %d", sched.Len())
	}
	if len(store.outcomes) != 1 || store.outcomes[0].Status != domain.BundleStatusFailed {
		t.Fatalf("outcomes = %+v, want one failed record", store.outcomes)
	}

	// Further sweeps must not retry the failed ID.
	sched.SweepOnce(context.Background(), created.Add(10*time.Second))
	if got := relay.submissions(); len(got) != 1 {
		t.Fatalf("submissions = %v, failed bundle was retried", got)
	}
}

func TestSweepRateLimitDefersNotDrops(t *testing.T) {
	relay := &fakeRelay{}
	cfg := testConfig()
	cfg.RelayLimit = 1
	cfg.RelayWindow = time.Second
	sched := NewScheduler(cfg, relay, testLogger())
	sched.SetRateLimiter(denyAllLimiter{})

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := sched.Insert(testBundle("b1", created)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	sched.SweepOnce(context.Background(), created.Add(5*time.Second))

	if len(relay.submissions()) != 0 {
		t.Fatal("rate-limited sweep should not submit")
	}
	if sched.Len() != 1 {
		t.Fatalf("rate-limited bundle dropped from table, size = %d", sched.Len())
	}
	if _, ok := sched.Pending("b1"); !ok {
		t.Fatal("bundle should remain pending for the next sweep")
	}
}
