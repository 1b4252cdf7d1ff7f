package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/dragonsend/dispatch-engine/internal/domain"
)

// fileLedger appends one JSON line per record to a local file. It is the
// zero-infrastructure alternative to the Postgres ledger for one-shot CLI
// runs. Single-writer: a dispatch run is sequential, so a mutex is enough.
type fileLedger struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// NewFileLedger opens (creating if needed) an append-only JSONL file.
func NewFileLedger(path string) (Ledger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger file: %w", err)
	}
	return &fileLedger{f: f, enc: json.NewEncoder(f)}, nil
}

func (l *fileLedger) AppendResult(_ context.Context, res domain.DeliveryResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enc.Encode(res); err != nil {
		return fmt.Errorf("append result: %w", err)
	}
	return nil
}

func (l *fileLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
