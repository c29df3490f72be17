package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/approvald/internal/logging"
)

func TestNewLoggerTo_ProdAddsContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewLoggerTo(&buf, "prod").With("component", "test")

	ctx := logging.WithRequestID(context.Background(), "rid-1")
	ctx = logging.WithActor(ctx, "alice")
	log.InfoContext(ctx, "hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "rid-1", line["request_id"])
	assert.Equal(t, "alice", line["actor"])
	assert.Equal(t, "test", line["component"])
	assert.Equal(t, "rid-1", logging.RequestID(ctx))
}

func TestNewLoggerTo_DevIsTextAndVerbose(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewLoggerTo(&buf, "dev")
	log.Debug("details", "n", 3)
	assert.Contains(t, buf.String(), "msg=details")
	assert.Contains(t, buf.String(), "n=3")
}
