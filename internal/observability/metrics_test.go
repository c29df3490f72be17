package observability_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/BrandonDHaskell/approvald/internal/observability"
)

func TestObserveOperation(t *testing.T) {
	c := observability.OperationsTotal.WithLabelValues("create", "ok")
	before := testutil.ToFloat64(c)

	observability.ObserveOperation("create", "ok", time.Now())

	assert.Equal(t, before+1, testutil.ToFloat64(c))
}
