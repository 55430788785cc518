package findkeydates

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "datedriven/internal/common/errors"
	"datedriven/internal/common/logger"
	"datedriven/internal/common/metrics"
	"datedriven/internal/pipeline"
)

const (
	TaskType = "find-key-dates"
)

// ItemProcessor is satisfied by *pipeline.Driver.
type ItemProcessor interface {
	ProcessItem(ctx context.Context, batchID string, it pipeline.InventoryItem) pipeline.ItemResult
}

type Handler struct {
	config       *Config
	processor    ItemProcessor
	sinks        []pipeline.ResultSink
	logger       logger.Logger
	errorHandler *apperrors.JobErrorHandler
}

func NewHandler(config *Config, processor ItemProcessor, sinks []pipeline.ResultSink, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		processor:    processor,
		sinks:        sinks,
		logger:       log,
		errorHandler: apperrors.NewJobErrorHandler(log),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(client, job, apperrors.NewInvalidInputError("parse input: "+err.Error()))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.fail(client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || strings.TrimSpace(input.ItemID) == "" || strings.TrimSpace(input.Name) == "" {
		return nil, apperrors.NewInvalidInputError("itemId and name are required")
	}

	batchID := input.BatchID
	if batchID == "" {
		batchID = TaskType
	}
	res := h.processor.ProcessItem(ctx, batchID, pipeline.InventoryItem{
		ID:      input.ItemID,
		Name:    input.Name,
		Subject: input.Subject,
		Context: input.Context,
	})

	persisted := false
	if h.config.Persist && len(h.sinks) > 0 {
		persisted = true
		for _, sink := range h.sinks {
			if err := sink.Save(ctx, res); err != nil {
				// Retryable persistence errors fail the job so Zeebe retries it.
				return nil, err
			}
		}
	}

	h.logger.Info("key dates found", map[string]interface{}{
		"itemId":       input.ItemID,
		"keyDates":     len(res.KeyDates),
		"sourceErrors": len(res.SourceErrors),
	})

	return &Output{
		ItemID:         res.Item.ID,
		Subject:        res.Subject,
		KeyDates:       res.KeyDates,
		SourceErrors:   res.SourceErrors,
		CandidateCount: res.Candidates,
		HasDates:       len(res.KeyDates) > 0,
		Persisted:      persisted,
	}, nil
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
