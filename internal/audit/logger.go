package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is a single audit record.
type Entry struct {
	Timestamp time.Time              `json:"ts"`
	Device    string                 `json:"device"`
	Action    string                 `json:"action"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Outcome   string                 `json:"outcome"`
}

// Logger appends audit entries to commands.jsonl in the log directory.
type Logger struct {
	mu       sync.Mutex
	filePath string
	file     *os.File
	now      func() time.Time
}

// NewLogger creates the log directory if needed and opens the audit file
// for append-only writing.
func NewLogger(logDir string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filePath := filepath.Join(logDir, "commands.jsonl")
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	return &Logger{
		filePath: filePath,
		file:     file,
		now:      time.Now,
	}, nil
}

// LogCommand records one structured command dispatch.
func (l *Logger) LogCommand(device string, speed, angle int, outcome string) {
	l.writeEntry(Entry{
		Timestamp: l.now().UTC(),
		Device:    device,
		Action:    "sendCommand",
		Params: map[string]interface{}{
			"speed": speed,
			"angle": angle,
		},
		Outcome: outcome,
	})
}

// LogAction records an arbitrary control action, such as a connect or a
// manual command from the websocket surface.
func (l *Logger) LogAction(device, action string, params map[string]interface{}, outcome string) {
	l.writeEntry(Entry{
		Timestamp: l.now().UTC(),
		Device:    device,
		Action:    action,
		Params:    params,
		Outcome:   outcome,
	})
}

func (l *Logger) writeEntry(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal audit entry: %v\n", err)
		return
	}
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write audit entry: %v\n", err)
		return
	}
	// The audit trail must survive a crash; flush every entry.
	if err := l.file.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to sync audit log: %v\n", err)
	}
}

// FilePath returns the path of the audit file.
func (l *Logger) FilePath() string {
	return l.filePath
}

// Close flushes and closes the audit file. Entries logged after Close
// are dropped.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
