package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	apperrors "datedriven/internal/common/errors"
	"datedriven/internal/common/logger"
	"datedriven/internal/common/metrics"
	"datedriven/internal/common/observability"
	"datedriven/internal/keydates"
)

// DriverOptions bound a batch run.
type DriverOptions struct {
	PerSourceTimeout time.Duration
	OverallDeadline  time.Duration
	// ErrorRateThreshold is the share of failed source queries, in [0,1], above
	// which the batch stops. Zero disables the check.
	ErrorRateThreshold  float64
	MinItemsBeforeAbort int
	StripPhrases        []string
}

// Driver runs key-date discovery for every inventory item and fans the results
// out to the configured sinks.
type Driver struct {
	inventory    InventorySource
	orchestrator *keydates.Orchestrator
	merger       *keydates.Merger
	sources      []keydates.SourceClient
	sinks        []ResultSink
	opts         DriverOptions
	logger       logger.Logger
	obs          *observability.Observability
	now          func() time.Time
}

func NewDriver(
	inventory InventorySource,
	orchestrator *keydates.Orchestrator,
	merger *keydates.Merger,
	sources []keydates.SourceClient,
	sinks []ResultSink,
	opts DriverOptions,
	log logger.Logger,
	obs *observability.Observability,
) *Driver {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if opts.StripPhrases == nil {
		opts.StripPhrases = keydates.DefaultStripPhrases
	}
	return &Driver{
		inventory:    inventory,
		orchestrator: orchestrator,
		merger:       merger,
		sources:      sources,
		sinks:        sinks,
		opts:         opts,
		logger:       log,
		obs:          obs,
		now:          time.Now,
	}
}

// BatchReport summarises one Run.
type BatchReport struct {
	BatchID      string         `json:"batch_id"`
	StartedAt    time.Time      `json:"started_at"`
	Duration     time.Duration  `json:"duration"`
	Items        int            `json:"items"`
	Processed    int            `json:"processed"`
	WithDates    int            `json:"with_dates"`
	NoDates      int            `json:"no_dates"`
	SourceCalls  int            `json:"source_calls"`
	SourceErrors map[string]int `json:"source_errors"`
	SinkFailures int            `json:"sink_failures"`
	Aborted      bool           `json:"aborted"`
	Results      []ItemResult   `json:"-"`
}

// ErrorRate is the share of failed source queries so far.
func (r *BatchReport) ErrorRate() float64 {
	if r.SourceCalls == 0 {
		return 0
	}
	failed := 0
	for _, n := range r.SourceErrors {
		failed += n
	}
	return float64(failed) / float64(r.SourceCalls)
}

// ProcessItem discovers and ranks the key dates of one item. It never fails:
// source problems are reported in ItemResult.SourceErrors.
func (d *Driver) ProcessItem(ctx context.Context, batchID string, it InventoryItem) ItemResult {
	start := d.now()
	item := keydates.NewItem(it.ID, it.Name, it.Subject, d.opts.StripPhrases)
	item.Context = it.Context

	candidates, sourceErrors := d.orchestrator.FindDates(ctx, item, d.sources, d.opts.PerSourceTimeout, d.opts.OverallDeadline)
	ranked := d.merger.Merge(candidates)

	return ItemResult{
		BatchID:      batchID,
		Item:         it,
		Subject:      item.Subject,
		KeyDates:     ranked,
		SourceErrors: sourceErrors,
		Candidates:   len(candidates),
		Duration:     d.now().Sub(start),
		ProcessedAt:  start.UTC(),
	}
}

// Run processes the whole inventory. The returned report is always non-nil;
// the error is set when the inventory could not be listed, the context ended,
// or the source-error rate crossed the configured threshold.
func (d *Driver) Run(ctx context.Context) (*BatchReport, error) {
	report := &BatchReport{
		BatchID:      uuid.New().String(),
		StartedAt:    d.now().UTC(),
		SourceErrors: make(map[string]int),
	}
	defer func() { report.Duration = d.now().Sub(report.StartedAt) }()

	log := d.logger.With(map[string]interface{}{"batchId": report.BatchID})

	items, err := d.inventory.ListItems(ctx)
	if err != nil {
		log.WithError(err).Error("failed to list inventory", nil)
		return report, err
	}
	report.Items = len(items)
	log.Info("batch started", map[string]interface{}{
		"items":   len(items),
		"sources": len(d.sources),
	})

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res := d.ProcessItem(ctx, report.BatchID, it)
		d.record(ctx, log, report, res)

		if d.shouldAbort(report) {
			report.Aborted = true
			rate := report.ErrorRate()
			log.Error("batch aborted", map[string]interface{}{
				"errorRate": rate,
				"threshold": d.opts.ErrorRateThreshold,
				"processed": report.Processed,
			})
			return report, apperrors.NewBatchAbortedError(rate, d.opts.ErrorRateThreshold)
		}
	}

	log.Info("batch finished", map[string]interface{}{
		"processed":    report.Processed,
		"withDates":    report.WithDates,
		"noDates":      report.NoDates,
		"errorRate":    report.ErrorRate(),
		"sinkFailures": report.SinkFailures,
	})
	return report, nil
}

func (d *Driver) record(ctx context.Context, log logger.Logger, report *BatchReport, res ItemResult) {
	report.Processed++
	report.SourceCalls += len(d.sources)
	for id := range res.SourceErrors {
		report.SourceErrors[id]++
	}

	status := "success"
	if len(res.KeyDates) == 0 {
		status = "no_dates"
		report.NoDates++
	} else {
		report.WithDates++
	}

	for _, sink := range d.sinks {
		if err := sink.Save(ctx, res); err != nil {
			report.SinkFailures++
			status = "sink_failed"
			log.WithError(err).Warn("result sink failed", map[string]interface{}{
				"itemId": res.Item.ID,
			})
		}
	}

	metrics.PipelineItems.WithLabelValues(status).Inc()
	d.obs.RecordItemProcessed(ctx, status)
	d.obs.RecordItemDuration(ctx, res.Duration, status)

	log.Info("item processed", map[string]interface{}{
		"itemId":       res.Item.ID,
		"subject":      res.Subject,
		"keyDates":     len(res.KeyDates),
		"candidates":   res.Candidates,
		"sourceErrors": len(res.SourceErrors),
		"durationMs":   res.Duration.Milliseconds(),
	})
	report.Results = append(report.Results, res)
}

func (d *Driver) shouldAbort(report *BatchReport) bool {
	if d.opts.ErrorRateThreshold <= 0 || report.Processed < d.opts.MinItemsBeforeAbort {
		return false
	}
	return report.ErrorRate() > d.opts.ErrorRateThreshold
}
