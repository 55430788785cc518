package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "datedriven/internal/common/errors"
	"datedriven/internal/common/logger"
	"datedriven/internal/keydates"
)

type stubSource struct {
	id         string
	candidates []keydates.Candidate
	err        error
}

func (s stubSource) ID() string { return s.id }

func (s stubSource) Query(context.Context, keydates.Item) ([]keydates.Candidate, error) {
	return s.candidates, s.err
}

type stubInventory struct {
	items []InventoryItem
	err   error
}

func (s stubInventory) ListItems(context.Context) ([]InventoryItem, error) { return s.items, s.err }

type recordingSink struct {
	mu      sync.Mutex
	results []ItemResult
	err     error
}

func (r *recordingSink) Save(_ context.Context, res ItemResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	return r.err
}

func jan17(label, source string) keydates.Candidate {
	return keydates.Candidate{Label: label, Date: keydates.MonthDay{Month: time.January, Day: 17}, Source: source, Category: keydates.CategoryKey}
}

func newTestDriver(t *testing.T, inv InventorySource, sources []keydates.SourceClient, sinks []ResultSink, opts DriverOptions) *Driver {
	log := logger.NewTestLogger(t)
	return NewDriver(inv, keydates.NewOrchestrator(log), keydates.NewMerger(0, 0), sources, sinks, opts, log, nil)
}

func TestDriver_ProcessItem(t *testing.T) {
	sources := []keydates.SourceClient{
		stubSource{id: "claude", candidates: []keydates.Candidate{jan17("Muhammad Ali Birthday", "claude")}},
		stubSource{id: "openai", candidates: []keydates.Candidate{jan17("Muhammad Ali's Birthday", "openai")}},
		stubSource{id: "gemini", err: errors.New("connection reset")},
	}
	d := newTestDriver(t, stubInventory{}, sources, nil, DriverOptions{PerSourceTimeout: time.Second, OverallDeadline: 2 * time.Second})

	res := d.ProcessItem(context.Background(), "batch-1", InventoryItem{ID: "SF-001", Name: "Shepard Fairey Muhammad Ali Signed Print 2016"})

	assert.Equal(t, "batch-1", res.BatchID)
	assert.Equal(t, "Muhammad Ali", res.Subject)
	assert.Equal(t, 2, res.Candidates)
	require.Len(t, res.KeyDates, 1)
	assert.Equal(t, 2, res.KeyDates[0].Support)
	assert.Equal(t, keydates.ErrorTransport, res.SourceErrors["gemini"])
}

func TestDriver_RunWritesEverySink(t *testing.T) {
	inv := stubInventory{items: []InventoryItem{
		{ID: "SF-001", Name: "Muhammad Ali Print"},
		{ID: "SF-002", Name: "Peace Poster"},
	}}
	sources := []keydates.SourceClient{
		stubSource{id: "claude", candidates: []keydates.Candidate{jan17("Birthday", "claude")}},
	}
	store := &recordingSink{}
	index := &recordingSink{err: errors.New("index unavailable")}
	d := newTestDriver(t, inv, sources, []ResultSink{store, index}, DriverOptions{})

	report, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.BatchID)
	assert.Equal(t, 2, report.Items)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 2, report.WithDates)
	assert.Equal(t, 2, report.SinkFailures)
	assert.False(t, report.Aborted)
	assert.Len(t, store.results, 2)
	assert.Len(t, index.results, 2)
	assert.Equal(t, report.BatchID, store.results[1].BatchID)
}

func TestDriver_RunAbortsOnErrorRate(t *testing.T) {
	inv := stubInventory{items: []InventoryItem{
		{ID: "A", Name: "Hope"},
		{ID: "B", Name: "Peace"},
		{ID: "C", Name: "Liberty"},
	}}
	sources := []keydates.SourceClient{
		stubSource{id: "claude", candidates: []keydates.Candidate{jan17("Birthday", "claude")}},
		stubSource{id: "grok", err: errors.New("401 unauthorized")},
	}
	d := newTestDriver(t, inv, sources, nil, DriverOptions{ErrorRateThreshold: 0.4, MinItemsBeforeAbort: 2})

	report, err := d.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrBatchAborted))
	assert.True(t, report.Aborted)
	assert.Equal(t, 2, report.Processed)
	assert.InDelta(t, 0.5, report.ErrorRate(), 1e-9)
	assert.Equal(t, 2, report.SourceErrors["grok"])
}

func TestDriver_RunBelowMinimumDoesNotAbort(t *testing.T) {
	inv := stubInventory{items: []InventoryItem{{ID: "A", Name: "Hope"}}}
	sources := []keydates.SourceClient{stubSource{id: "grok", err: errors.New("down")}}
	d := newTestDriver(t, inv, sources, nil, DriverOptions{ErrorRateThreshold: 0.1, MinItemsBeforeAbort: 5})

	report, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.NoDates)
	assert.Equal(t, float64(1), report.ErrorRate())
}

func TestDriver_RunInventoryError(t *testing.T) {
	d := newTestDriver(t, stubInventory{err: apperrors.NewInventoryQueryFailedError(errors.New("db down"))}, nil, nil, DriverOptions{})

	report, err := d.Run(context.Background())
	require.Error(t, err)
	assert.NotNil(t, report)
	assert.Zero(t, report.Processed)
}

func TestDriver_RunStopsOnCancel(t *testing.T) {
	inv := stubInventory{items: []InventoryItem{{ID: "A", Name: "Hope"}}}
	d := newTestDriver(t, inv, nil, nil, DriverOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
