package logger

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// EventLog はキックや未処理エラーの詳細を追記する永続ログファイル。
// 複数セッションから同時に呼ばれるためミューテックスで直列化する。
type EventLog struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewEventLog は指定パスに追記するEventLogを生成する。
func NewEventLog(path string) *EventLog {
	return &EventLog{path: path, now: time.Now}
}

// Path はログファイルのパスを返す。
func (l *EventLog) Path() string {
	return l.path
}

// Record は "[HH:MM:SS] msg" 形式で1エントリを追記する。
func (l *EventLog) Record(msg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "[%s] %s\n", l.now().Format("15:04:05"), msg); err != nil {
		return fmt.Errorf("failed to write event log: %w", err)
	}
	return nil
}
