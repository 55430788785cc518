package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObservability_RecordsWithoutTracer(t *testing.T) {
	o := New("datedriven-test", "")
	defer o.Shutdown()

	assert.NotNil(t, o.meterProvider)
	assert.Nil(t, o.tracerProvider)
	assert.NotPanics(t, func() {
		o.RecordItemProcessed(context.Background(), "success")
		o.RecordItemDuration(context.Background(), 25*time.Millisecond, "success")
	})
}

func TestObservability_NilSafe(t *testing.T) {
	var o *Observability
	assert.NotPanics(t, func() {
		o.RecordItemProcessed(context.Background(), "failed")
		o.Shutdown()
	})
}
