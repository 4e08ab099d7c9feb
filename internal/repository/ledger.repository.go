package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"sectorscan/internal/domain"
)

// LedgerRepository persists the whole paper-trade ledger as one document.
type LedgerRepository interface {
	Load(ctx context.Context) (domain.Ledger, error)
	// Update loads the ledger, applies fn and persists the result atomically.
	// Nothing is written when fn returns an error.
	Update(ctx context.Context, fn func(*domain.Ledger) error) (domain.Ledger, error)
}

type fileLedgerRepositoryHandler struct {
	mu   *sync.Mutex
	Path string
}

func NewFileLedgerRepository(path string) LedgerRepository {
	return fileLedgerRepositoryHandler{
		mu:   &sync.Mutex{},
		Path: path,
	}
}

func (h fileLedgerRepositoryHandler) Load(ctx context.Context) (domain.Ledger, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.read()
}

func (h fileLedgerRepositoryHandler) Update(ctx context.Context, fn func(*domain.Ledger) error) (domain.Ledger, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ledger, err := h.read()
	if err != nil {
		return domain.Ledger{}, err
	}
	if err := fn(&ledger); err != nil {
		return domain.Ledger{}, err
	}
	if err := h.write(ledger); err != nil {
		return domain.Ledger{}, err
	}

	return ledger, nil
}

// read treats a missing file as an empty ledger. A present but unparseable
// file is an error.
func (h fileLedgerRepositoryHandler) read() (domain.Ledger, error) {
	data, err := os.ReadFile(h.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.NewLedger(), nil
	}
	if err != nil {
		return domain.Ledger{}, fmt.Errorf("failed to read ledger %s: %w", h.Path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.NewLedger(), nil
	}

	ledger := domain.Ledger{}
	if err := json.Unmarshal(data, &ledger); err != nil {
		return domain.Ledger{}, fmt.Errorf("failed to parse ledger %s: %w", h.Path, err)
	}
	if ledger.Active == nil {
		ledger.Active = []domain.Trade{}
	}
	if ledger.Closed == nil {
		ledger.Closed = []domain.Trade{}
	}

	return ledger, nil
}

// write replaces the ledger file via temp file, fsync and rename.
func (h fileLedgerRepositoryHandler) write(ledger domain.Ledger) error {
	data, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	dir := filepath.Dir(h.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create ledger dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(h.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp ledger: %w", err)
	}
	if err := os.Rename(tmpName, h.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace ledger: %w", err)
	}

	// best effort: persist the rename itself
	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}

	return nil
}
