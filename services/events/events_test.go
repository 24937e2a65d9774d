package events

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edusys/core"
)

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	pub := NewLogPublisher(zerolog.New(&buf))

	evt := core.NewEvent(core.EventTaskSubmitted, "u1", map[string]interface{}{"task_id": "t1"})
	require.NoError(t, pub.Publish(context.Background(), evt))

	var logged map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logged))
	assert.Equal(t, core.EventTaskSubmitted, logged["type"])
	assert.Equal(t, "u1", logged["actor_id"])
	assert.Equal(t, "t1", logged["task_id"])
	assert.Equal(t, "event published", logged["message"])
}

func TestRecorder(t *testing.T) {
	rec := new(Recorder)
	ctx := context.Background()

	require.NoError(t, rec.Publish(ctx, core.NewEvent(core.EventTaskCreated, "u1", nil)))
	require.NoError(t, rec.Publish(ctx, core.NewEvent(core.EventTaskDeleted, "u1", nil)))
	assert.Equal(t, []string{core.EventTaskCreated, core.EventTaskDeleted}, rec.Types())

	rec.Err = assert.AnError
	assert.Equal(t, assert.AnError, rec.Publish(ctx, core.NewEvent(core.EventTaskCreated, "u1", nil)))
	assert.Len(t, rec.Events(), 2)
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(core.EventsConfig{Driver: "kafka"}, zerolog.Nop())
	assert.EqualError(t, err, `unknown events driver "kafka"`)
}
