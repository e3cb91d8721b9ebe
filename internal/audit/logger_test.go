package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		entries = append(entries, e)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func TestLogCommand(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	require.NoError(t, err)
	defer logger.Close()

	stamp := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	logger.now = func() time.Time { return stamp }

	logger.LogCommand("/dev/ttyUSB0", 100, 105, "SUCCESS")
	logger.LogCommand("/dev/ttyUSB0", 50, 45, "ERROR")

	entries := readEntries(t, logger.FilePath())
	require.Len(t, entries, 2)

	assert.Equal(t, "sendCommand", entries[0].Action)
	assert.Equal(t, "/dev/ttyUSB0", entries[0].Device)
	assert.Equal(t, "SUCCESS", entries[0].Outcome)
	assert.Equal(t, float64(100), entries[0].Params["speed"])
	assert.Equal(t, float64(105), entries[0].Params["angle"])
	assert.Equal(t, stamp, entries[0].Timestamp)
	assert.Equal(t, "ERROR", entries[1].Outcome)
}

func TestLogAction(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	require.NoError(t, err)
	defer logger.Close()

	logger.LogAction("/dev/ttyACM0", "manualCommand", map[string]interface{}{"token": "f"}, "SUCCESS")

	entries := readEntries(t, logger.FilePath())
	require.Len(t, entries, 1)
	assert.Equal(t, "manualCommand", entries[0].Action)
	assert.Equal(t, "f", entries[0].Params["token"])
}

func TestAppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir)
	require.NoError(t, err)
	logger.LogCommand("/dev/ttyUSB0", 1, 2, "SUCCESS")
	require.NoError(t, logger.Close())

	logger, err = NewLogger(dir)
	require.NoError(t, err)
	logger.LogCommand("/dev/ttyUSB0", 3, 4, "SUCCESS")
	require.NoError(t, logger.Close())

	entries := readEntries(t, logger.FilePath())
	assert.Len(t, entries, 2)
}

func TestCloseIsIdempotentAndDropsLateEntries(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	require.NoError(t, err)

	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())

	// Logging after close must not panic or write.
	logger.LogCommand("/dev/ttyUSB0", 1, 2, "SUCCESS")
	assert.Empty(t, readEntries(t, logger.FilePath()))
}

func TestConcurrentWritesProduceWholeLines(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	require.NoError(t, err)
	defer logger.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				logger.LogCommand("/dev/ttyUSB0", n, 90, "SUCCESS")
			}
		}(i)
	}
	wg.Wait()

	entries := readEntries(t, logger.FilePath())
	assert.Len(t, entries, 160)
}
