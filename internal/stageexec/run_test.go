package stageexec_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"clipmill/internal/queue"
	"clipmill/internal/services"
	"clipmill/internal/stage"
	"clipmill/internal/stageexec"
	"clipmill/internal/testsupport"
)

type fakeTransform struct {
	mu       sync.Mutex
	calls    map[string]int
	started  atomic.Int32
	active   atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	failFor  map[string]error
	panicFor map[string]bool
	waitCtx  bool
}

func newFakeTransform() *fakeTransform {
	return &fakeTransform{calls: map[string]int{}, failFor: map[string]error{}, panicFor: map[string]bool{}}
}

func (f *fakeTransform) Name() string { return "audio" }

func (f *fakeTransform) Eligible(item *queue.Item) bool { return !item.AudioReady }

func (f *fakeTransform) Execute(ctx context.Context, item *queue.Item) error {
	f.started.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls[item.ID]++
	err := f.failFor[item.ID]
	shouldPanic := f.panicFor[item.ID]
	f.mu.Unlock()

	if f.waitCtx {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if shouldPanic {
		panic("synthesizer exploded")
	}
	return err
}

func (f *fakeTransform) MarkDone(item *queue.Item) { item.AudioReady = true }

func seed(t *testing.T, store *queue.Store, titles ...string) []*queue.Item {
	t.Helper()
	items := make([]*queue.Item, 0, len(titles))
	for _, title := range titles {
		items = append(items, testsupport.PutItem(t, store, testsupport.NewItem(title)))
	}
	return items
}

func TestRunProcessesEligibleItemsOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	items := seed(t, store, "a", "b", "c", "d", "e")

	done := testsupport.NewItem("already narrated")
	done.AudioReady = true
	testsupport.PutItem(t, store, done)

	transform := newFakeTransform()
	var progress []stage.Progress
	var progressMu sync.Mutex
	stats, err := stageexec.Run(context.Background(), stageexec.Options{
		Store:     store,
		Transform: transform,
		Workers:   2,
		OnProgress: func(p stage.Progress) {
			progressMu.Lock()
			progress = append(progress, p)
			progressMu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if stats.Eligible != 5 || stats.Succeeded != 5 || stats.Failed != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(progress) != 5 {
		t.Fatalf("expected 5 progress callbacks, got %d", len(progress))
	}
	if _, ok := transform.calls[done.ID]; ok {
		t.Fatal("ineligible item was dispatched")
	}
	for _, item := range items {
		if transform.calls[item.ID] != 1 {
			t.Fatalf("item %s called %d times", item.Title, transform.calls[item.ID])
		}
		if got := testsupport.MustGet(t, store, item.ID); !got.AudioReady {
			t.Fatalf("item %s not marked done", item.Title)
		}
	}
	if peak := transform.peak.Load(); peak > 2 {
		t.Fatalf("pool width exceeded: peak %d", peak)
	}
}

func TestRunCapBoundsDispatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	seed(t, store, "1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12")

	const (
		capK    = 2
		workers = 3
	)
	transform := newFakeTransform()
	transform.delay = 5 * time.Millisecond
	stats, err := stageexec.Run(context.Background(), stageexec.Options{
		Store:     store,
		Transform: transform,
		Workers:   workers,
		Cap:       capK,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if started := int(transform.started.Load()); started > capK+workers-1 {
		t.Fatalf("started %d items, bound is %d", started, capK+workers-1)
	}
	if stats.Succeeded < capK {
		t.Fatalf("expected at least %d successes, got %d", capK, stats.Succeeded)
	}
	if stats.Dispatched+stats.Skipped != stats.Eligible {
		t.Fatalf("dispatch accounting mismatch: %+v", stats)
	}
}

func TestRunFailurePolicyDeletesAtMaxAttempts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	items := seed(t, store, "good", "bad", "boom")
	good, bad, boom := items[0], items[1], items[2]

	transform := newFakeTransform()
	transform.failFor[bad.ID] = services.Wrap(services.ErrExternalTool, "audio", "synthesize", "endpoint rejected text", nil)
	transform.panicFor[boom.ID] = true

	stats, err := stageexec.Run(context.Background(), stageexec.Options{
		Store:       store,
		Transform:   transform,
		Workers:     4,
		MaxAttempts: 1,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if stats.Succeeded != 1 || stats.Failed != 2 || stats.Deleted != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if got := testsupport.MustGet(t, store, good.ID); !got.AudioReady {
		t.Fatal("successful item not marked done")
	}
	for _, id := range []string{bad.ID, boom.ID} {
		if got, _ := store.Get(context.Background(), id); got != nil {
			t.Fatalf("failed item %s should be deleted", id)
		}
	}
}

func TestRunRetainsItemBelowMaxAttempts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := seed(t, store, "flaky")[0]

	transform := newFakeTransform()
	transform.failFor[item.ID] = errors.New("temporary outage")

	opts := stageexec.Options{Store: store, Transform: transform, Workers: 1, MaxAttempts: 2}
	if _, err := stageexec.Run(context.Background(), opts); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	got := testsupport.MustGet(t, store, item.ID)
	if got.FailureCount != 1 || got.LastError == "" || got.AudioReady {
		t.Fatalf("expected recorded failure, got %#v", got)
	}

	stats, err := stageexec.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}
	if stats.Deleted != 1 {
		t.Fatalf("expected deletion on second failure, got %+v", stats)
	}
}

func TestRunKeepsFailureCountAcrossSuccess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := seed(t, store, "flaky")[0]

	transform := newFakeTransform()
	transform.failFor[item.ID] = errors.New("temporary outage")
	opts := stageexec.Options{Store: store, Transform: transform, Workers: 1, MaxAttempts: 3}
	if _, err := stageexec.Run(context.Background(), opts); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	delete(transform.failFor, item.ID)
	if _, err := stageexec.Run(context.Background(), opts); err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}
	got := testsupport.MustGet(t, store, item.ID)
	if !got.AudioReady || got.LastError != "" {
		t.Fatalf("expected success to clear the last error, got %#v", got)
	}
	if got.FailureCount != 1 {
		t.Fatalf("failure count = %d, want 1 carried over the success", got.FailureCount)
	}
}

func TestRunCallTimeoutMapsToTimeout(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := seed(t, store, "slow")[0]

	transform := newFakeTransform()
	transform.waitCtx = true

	stats, err := stageexec.Run(context.Background(), stageexec.Options{
		Store:       store,
		Transform:   transform,
		Workers:     1,
		CallTimeout: 20 * time.Millisecond,
		MaxAttempts: 3,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if stats.Failed != 1 {
		t.Fatalf("expected timeout failure, got %+v", stats)
	}
	got := testsupport.MustGet(t, store, item.ID)
	if got.FailureCount != 1 {
		t.Fatalf("failure not recorded: %#v", got)
	}
}

type failingPutStore struct {
	*queue.Store
	failID string
}

func (s *failingPutStore) Put(ctx context.Context, item *queue.Item) error {
	if item.ID == s.failID && item.AudioReady {
		return errors.New("disk full")
	}
	return s.Store.Put(ctx, item)
}

func TestRunStoreWriteErrorCountsAsFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	items := seed(t, store, "ok", "unlucky")

	stats, err := stageexec.Run(context.Background(), stageexec.Options{
		Store:       &failingPutStore{Store: store, failID: items[1].ID},
		Transform:   newFakeTransform(),
		Workers:     2,
		MaxAttempts: 5,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if stats.Succeeded != 1 || stats.Failed != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	got := testsupport.MustGet(t, store, items[1].ID)
	if got.AudioReady || got.FailureCount != 1 {
		t.Fatalf("expected failure recorded on the pre-run record, got %#v", got)
	}
}

func TestRunRequiresTransformAndStore(t *testing.T) {
	if _, err := stageexec.Run(context.Background(), stageexec.Options{}); err == nil {
		t.Fatal("expected error without transform")
	}
	if _, err := stageexec.Run(context.Background(), stageexec.Options{Transform: newFakeTransform()}); err == nil {
		t.Fatal("expected error without store")
	}
}

func TestWorkerPoolAcquireHonorsContext(t *testing.T) {
	pool := stageexec.NewWorkerPool(1)
	if pool.Size() != 1 {
		t.Fatalf("size = %d", pool.Size())
	}
	if err := pool.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pool.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	pool.Release()
}

func TestRunFailureLogCarriesHint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	items := seed(t, store, "slow")

	transform := newFakeTransform()
	transform.failFor[items[0].ID] = services.Wrap(services.ErrTimeout, "audio", "synthesize", "endpoint hung", nil)

	var buf bytes.Buffer
	_, err := stageexec.Run(context.Background(), stageexec.Options{
		Store:       store,
		Transform:   transform,
		Workers:     1,
		MaxAttempts: 3,
		Logger:      slog.New(slog.NewJSONHandler(&buf, nil)),
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	var failure map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		if entry["msg"] == "stage failed" {
			failure = entry
		}
	}
	if failure == nil {
		t.Fatalf("no stage failure logged:\n%s", buf.String())
	}
	if failure["level"] != "ERROR" || failure["event_type"] != "stage_failure" || failure["error_kind"] != "timeout" {
		t.Fatalf("unexpected failure entry %v", failure)
	}
	if hint, _ := failure["error_hint"].(string); !strings.Contains(hint, "call_timeout_seconds") {
		t.Fatalf("error_hint = %q", hint)
	}
}
