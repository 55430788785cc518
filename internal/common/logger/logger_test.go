package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &zapWrapper{l: zap.New(core)}, logs
}

func TestWithError_AttachesErrorField(t *testing.T) {
	log, logs := observed()

	log.WithError(errors.New("connection refused")).Warn("result sink failed", map[string]interface{}{"itemId": "SF-001"})

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "connection refused", ctx["error"])
	assert.Equal(t, "SF-001", ctx["itemId"])
}

func TestWith_FieldsCarryOver(t *testing.T) {
	log, logs := observed()

	log.With(map[string]interface{}{"batchId": "b-1"}).Info("batch started", nil)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "batch started", entry.Message)
	assert.Equal(t, "b-1", entry.ContextMap()["batchId"])
}

func TestMapToZapFields_NamesErrors(t *testing.T) {
	log, logs := observed()

	log.Error("persist failed", map[string]interface{}{"cause": errors.New("deadlock")})

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "deadlock", logs.All()[0].ContextMap()["cause"])
}
