package messages

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })
	return logs
}

func TestConsoleLogLevels(t *testing.T) {
	logs := observe(t)

	NewMessage(LOG_LEVEL_INFO, "", nil, CONFIG_STARTED_LOADING, "config.json").ConsoleLog()
	NewMessage(LOG_LEVEL_SUCCESS, "", nil, CONFIG_FINISHED_LOADING).ConsoleLog()
	NewMessage(LOG_LEVEL_WARNING, "client", nil, CLIENT_METADATA_CACHE_FAILED, 9430).ConsoleLog()

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "The watcher configuration is loaded from config.json", entries[0].Message)
	assert.Equal(t, true, entries[1].ContextMap()["success"])
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "client", entries[2].ContextMap()["component"])
}

func TestErrorsAreLoggedNotPanicked(t *testing.T) {
	logs := observe(t)
	cause := errors.New("connection refused")

	msg := NewMessage(LOG_LEVEL_ERROR, "postgres", cause, POSTGRES_FAILED_TO_CONNECT)
	assert.NotPanics(t, msg.ConsoleLog)

	entries := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, entries, 1)
	assert.Equal(t, POSTGRES_FAILED_TO_CONNECT, entries[0].Message)
	assert.Equal(t, "connection refused", entries[0].ContextMap()["error"])

	assert.True(t, errors.Is(msg.Err(), cause))
	assert.Equal(t, POSTGRES_FAILED_TO_CONNECT+": connection refused", msg.Err().Error())
	assert.Nil(t, NewMessage(LOG_LEVEL_INFO, "", nil, POSTGRES_CONNECTED).Err())
}

func TestGetComponent(t *testing.T) {
	assert.Equal(t, "messages", GetComponent(NewMessage))
	msg := NewMessage(LOG_LEVEL_INFO, "", nil, "")
	assert.Equal(t, "messages", GetComponent(msg.ConsoleLog))
}
