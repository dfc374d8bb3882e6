package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// JournalEntry records one dispatched envelope. Entries with outcome
// "indeterminate" are the ones a caller must reconcile against venue state.
type JournalEntry struct {
	Time    time.Time `json:"time"`
	Nonce   int64     `json:"nonce"`
	Action  string    `json:"action"`
	Outcome string    `json:"outcome"`
	Error   string    `json:"error,omitempty"`
}

type NopJournal struct{}

func NewNopJournal() *NopJournal                 { return &NopJournal{} }
func (j *NopJournal) Record(_ JournalEntry) error { return nil }

// FileJournal appends entries as JSON lines.
type FileJournal struct {
	mu sync.Mutex
	f  *os.File
}

func NewFileJournal(path string) (*FileJournal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileJournal{f: f}, nil
}

func (j *FileJournal) Record(e JournalEntry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	_, err = fmt.Fprintf(j.f, "%s\n", line)
	return err
}

func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}
