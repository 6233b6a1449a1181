package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	Info("rule generated", "option", "daily")
	Error("classify failed", errors.New("boom"), "rrule", "FREQ=X")

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "rule generated", entries[0].Message)
		assert.Equal(t, "daily", entries[0].ContextMap()["option"])
		assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
		assert.Equal(t, "boom", entries[1].ContextMap()["err"])
		assert.Equal(t, "FREQ=X", entries[1].ContextMap()["rrule"])
	}
}
