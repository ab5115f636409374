package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(mutationsTotal.WithLabelValues("task", "created"))
	Mutation("task", "created")
	assert.Equal(t, before+1, testutil.ToFloat64(mutationsTotal.WithLabelValues("task", "created")))

	before = testutil.ToFloat64(auditWriteFailures)
	AuditWriteFailure()
	assert.Equal(t, before+1, testutil.ToFloat64(auditWriteFailures))

	ObserveIntent("task", "create", time.Now())
	assert.Equal(t, 1, testutil.CollectAndCount(mutationDuration, "impactline_mutation_duration_seconds"))
}
