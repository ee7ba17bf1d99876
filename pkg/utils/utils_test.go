package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestValidateIdentifier(t *testing.T) {
	for _, ok := range []string{"alice", "risk-manager", "user@example.com", "6f1c0a9e-2b7d-4c55-9d0e-1a2b3c4d5e6f", "ns:role.1"} {
		assert.NoError(t, ValidateIdentifier("id", ok), ok)
	}
	for _, bad := range []string{"", " alice", "-lead", "a b", strings.Repeat("x", 129)} {
		assert.Error(t, ValidateIdentifier("id", bad), bad)
	}
}

func TestSanitizeComment(t *testing.T) {
	assert.Equal(t, "looks\tgood\nto me", SanitizeComment("  looks\tgood\nto\x00 me\x07 "))
	assert.Len(t, []rune(SanitizeComment(strings.Repeat("é", MaxCommentLength+10))), MaxCommentLength)
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")
	logger, err := NewLogger(LoggerConfig{Level: "info", OutputPath: path, Format: "json"})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("visible", zap.String("k", "v"))
	require.NoError(t, logger.Sync())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"visible"`)
	assert.NotContains(t, string(content), "hidden")
}

func TestKVLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	kv := NewKVLogger(zap.New(core)).Named("engine")

	kv.Info("Instance created", "instance_id", "i-1")
	kv.Error("Failed to send notification", "error", "boom")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "engine", entries[0].LoggerName)
	assert.Equal(t, "i-1", entries[0].ContextMap()["instance_id"])
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
}
