// Package outbox appends an audit trail of every signal, order and error to
// a JSONL file so any decision can be replayed by hand.
package outbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is one audit record.
type Entry struct {
	Type    string `json:"type"` // signal | order | error
	AlertID string `json:"alert_id,omitempty"`
	Signal  string `json:"signal,omitempty"`
	Data    any    `json:"data,omitempty"`
	At      string `json:"at"`
}

type Outbox struct {
	path string
	mu   sync.Mutex
}

func New(path string) (*Outbox, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create outbox dir: %w", err)
	}
	return &Outbox{path: path}, nil
}

// WriteSignal records a classified signal before any order is attempted.
func (o *Outbox) WriteSignal(alertID, signal string) error {
	return o.append(Entry{Type: "signal", AlertID: alertID, Signal: signal})
}

// WriteOrder records a submitted order payload alongside the signal that
// produced it.
func (o *Outbox) WriteOrder(alertID, signal string, order any) error {
	return o.append(Entry{Type: "order", AlertID: alertID, Signal: signal, Data: order})
}

// WriteError records a failure with enough context for manual replay.
func (o *Outbox) WriteError(alertID, signal string, err error) error {
	return o.append(Entry{Type: "error", AlertID: alertID, Signal: signal, Data: err.Error()})
}

func (o *Outbox) append(e Entry) error {
	e.At = time.Now().UTC().Format(time.RFC3339Nano)
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	f, err := os.OpenFile(o.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open outbox: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("append outbox: %w", err)
	}
	return nil
}
