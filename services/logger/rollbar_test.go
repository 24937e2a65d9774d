package logsvc

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edusys/core"
	"github.com/trezcool/edusys/core/user"
)

func TestRollbarLogger_WritesStructuredLines(t *testing.T) {
	var buf bytes.Buffer
	conf := &core.Config{Env: "TEST", Logging: core.LoggingConfig{Level: "debug"}}
	logger := NewRollbarLogger(NewZerolog(conf.Logging, &buf), conf)

	usr := user.User{ID: "u1", Username: "testuser"}
	logger.Error("grading failed", errors.New("boom"), map[string]interface{}{"task_id": "t1"}, usr)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, "grading failed", line["message"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "t1", line["task_id"])
	assert.Equal(t, "u1", line["user_id"])
}

func TestNewZerolog_Level(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(core.LoggingConfig{Level: "warn"}, &buf)

	log.Info().Msg("skipped")
	assert.Zero(t, buf.Len())
	log.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}
