package storage

import (
	"FlightDelayDataset/src/config"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoggerWritesFileAndSubscribers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	logger, err := NewLogger(path)
	require.NoError(t, err)
	defer logger.Close()

	ch := logger.Subscribe()
	logger.With(zap.String("run_id", "r-1")).Info("阶段完成", zap.Int("rows_out", 3))

	select {
	case entry := <-ch:
		assert.Contains(t, entry, "阶段完成")
		assert.Contains(t, entry, `"run_id":"r-1"`)
		assert.Contains(t, entry, `"rows_out":3`)
	default:
		t.Fatal("订阅者没有收到日志")
	}

	require.NoError(t, logger.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"level":"INFO"`)
}

func TestLoggerRotate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	logger, err := NewLogger(path)
	require.NoError(t, err)
	defer logger.Close()

	logger.Debug(strings.Repeat("x", 256))

	cfg := &config.Config{LogMaxSize: "1 * 64"}
	require.NoError(t, logger.CheckRotate(cfg))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "轮转后应有旧文件与新文件")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestLoggerReopen(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(filepath.Join(dir, "a.log"))
	require.NoError(t, err)
	defer logger.Close()

	second := filepath.Join(dir, "b.log")
	require.NoError(t, logger.Reopen(second))
	logger.Warning("切换文件")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Contains(t, string(data), "切换文件")
}

func TestEval(t *testing.T) {
	assert.Equal(t, int64(10*1024*1024), eval("10 * 1024 * 1024"))
	assert.Equal(t, int64(512), eval("512"))
	assert.Equal(t, int64(0), eval("ten"))
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "WARNING", WARNING.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}
