package zap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/tiercache"
)

func TestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core))

	l.Warn("storage get failed", tiercache.Fields{"tier": "redis", "err": errors.New("boom")})
	require.Equal(t, 1, logs.Len())
	e := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, e.Level)
	assert.Equal(t, "tiercache", e.LoggerName)
	ctx := e.ContextMap()
	assert.Equal(t, "redis", ctx["tier"])
	assert.Equal(t, "boom", ctx["err"])

	l.Debug("d", nil)
	assert.Equal(t, 2, logs.Len())
}
