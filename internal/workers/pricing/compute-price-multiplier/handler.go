package computepricemultiplier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "datedriven/internal/common/errors"
	"datedriven/internal/common/logger"
	"datedriven/internal/common/metrics"
	"datedriven/internal/pipeline"
	"datedriven/internal/pricing"
)

const (
	TaskType = "compute-price-multiplier"
)

type Handler struct {
	config       *Config
	engine       *pricing.Engine
	store        pipeline.KeyDateStore
	logger       logger.Logger
	errorHandler *apperrors.JobErrorHandler
	now          func() time.Time
}

// NewHandler builds the handler. store may be nil, in which case jobs must
// carry their key dates inline.
func NewHandler(config *Config, engine *pricing.Engine, store pipeline.KeyDateStore, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &Handler{
		config:       config,
		engine:       engine,
		store:        store,
		logger:       log,
		errorHandler: apperrors.NewJobErrorHandler(log),
		now:          time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(client, job, apperrors.NewInvalidInputError("parse input: "+err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.fail(client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewInvalidInputError("input cannot be nil")
	}
	if input.BasePrice.IsNegative() {
		return nil, apperrors.NewInvalidInputError("basePrice must not be negative")
	}

	today := h.now().In(h.config.Location)
	if input.Today != "" {
		t, err := time.ParseInLocation("2006-01-02", input.Today, h.config.Location)
		if err != nil {
			return nil, apperrors.NewInvalidInputError("today must be YYYY-MM-DD")
		}
		today = t
	}

	dates := input.KeyDates
	if len(dates) == 0 && input.ItemID != "" {
		if h.store == nil {
			return nil, apperrors.NewInvalidInputError("keyDates are required when no key-date store is configured")
		}
		stored, err := h.store.LoadKeyDates(ctx, input.ItemID)
		if err != nil {
			return nil, err
		}
		dates = stored
	}

	rec := h.engine.Recommend(today, input.BasePrice, dates)
	metrics.PriceMultipliers.Observe(rec.Multiplier)

	out := &Output{
		Multiplier: rec.Multiplier,
		DaysUntil:  rec.DaysUntil,
		HasEvent:   rec.HasEvent,
		BasePrice:  rec.BasePrice,
		NewPrice:   rec.NewPrice,
	}
	if rec.HasEvent {
		out.Event = rec.Event.Label
		out.EventDate = rec.EventDate.Format("2006-01-02")
	}

	h.logger.Info("multiplier computed", map[string]interface{}{
		"itemId":     input.ItemID,
		"event":      out.Event,
		"daysUntil":  out.DaysUntil,
		"multiplier": out.Multiplier,
	})
	return out, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err = cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) fail(client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.Normalize(err).Code)).Inc()
	h.errorHandler.HandleJobError(context.Background(), client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
