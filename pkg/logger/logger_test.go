package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/frankieli/base_tombala/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextLoggerCarriesRequestIDAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(logger.Config{Level: "debug", Format: "json", Output: &buf})

	ctx := logger.WithRequestID(context.Background(), "req-1")
	ctx = logger.WithFields(ctx, map[string]interface{}{"game_id": 7})
	logger.Info(ctx).Msg("bet accepted")
	logger.Flush()

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, float64(7), line["game_id"])
	assert.Equal(t, "bet accepted", line["message"])
	assert.Equal(t, "req-1", logger.GetRequestID(ctx))
}

func TestGenerateRequestIDIsUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := logger.GenerateRequestID()
		_, dup := seen[id]
		assert.False(t, dup)
		seen[id] = struct{}{}
	}
}
