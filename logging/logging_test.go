package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsProduceAWorkingLogger(t *testing.T) {
	l, err := New(Config{})
	require.NoError(t, err)
	require.NotNil(t, l)
	l.Info("test message", String("k", "v"))
}

func TestNew_ConsoleFormat(t *testing.T) {
	l, err := New(Config{Format: "console", Level: "debug"})
	require.NoError(t, err)
	l.Debug("debug message")
}

func TestWith_AttachesFieldsToChild(t *testing.T) {
	l, err := New(Config{})
	require.NoError(t, err)
	child := l.With(String("component", "engine"))
	assert.NotNil(t, child)
	child.Info("child message")
}

func TestNamed_ReturnsDistinctLogger(t *testing.T) {
	l, err := New(Config{})
	require.NoError(t, err)
	named := l.Named("worker")
	assert.NotNil(t, named)
}

func TestErr_NilProducesPlaceholder(t *testing.T) {
	f := Err(nil)
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, "<nil>", f.Value)
}

func TestNewNop_DiscardsSilently(t *testing.T) {
	l := NewNop()
	l.Info("ignored")
	l.Warn("ignored")
	child := l.With(String("a", "b")).Named("x")
	child.Error("still ignored")
}

func TestOrchestratorAdapter_FormatsPrintfStyle(t *testing.T) {
	adapter := OrchestratorAdapter{L: NewNop()}
	adapter.Warnf("too many %s for %q", "tautomers", "aspirin")
	adapter.Debugf("rule %s matched %d times", "Enolize", 3)
}
