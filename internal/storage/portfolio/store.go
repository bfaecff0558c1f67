// Package portfolio persists per-account portfolio snapshots so restarts keep
// cash and open positions.
package portfolio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrader/internal/domain"
)

const defaultStateDir = "./wal/portfolio"

// Store writes one JSON snapshot file per account, replaced atomically via
// temp-file rename.
type Store struct {
	dir string
	mu  sync.Mutex
}

// Snapshot is the persisted portfolio state.
type Snapshot struct {
	AccountID string             `json:"account_id"`
	CashUsd   decimal.Decimal    `json:"cash_usd"`
	Positions []*domain.Position `json:"positions"`
	SavedAt   time.Time          `json:"saved_at"`
}

// NewStore creates a snapshot store under dir.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = defaultStateDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create portfolio state dir")
	}
	return &Store{dir: dir}, nil
}

// Save writes the account snapshot to disk atomically.
func (s *Store) Save(accountID string, cash decimal.Decimal, positions []*domain.Position) error {
	if s == nil || s.dir == "" {
		return nil
	}
	if accountID == "" {
		return errors.New("account ID is required")
	}

	snap := Snapshot{
		AccountID: accountID,
		CashUsd:   cash,
		Positions: positions,
		SavedAt:   time.Now().UTC(),
	}

	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode portfolio snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(accountID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write portfolio snapshot temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "persist portfolio snapshot")
	}

	return nil
}

// Load reads the account snapshot from disk. A missing file yields (nil, nil).
func (s *Store) Load(accountID string) (*Snapshot, error) {
	if s == nil || s.dir == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := os.ReadFile(s.path(accountID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read portfolio snapshot")
	}
	if len(payload) == 0 {
		return nil, nil
	}

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, errors.Wrap(err, "decode portfolio snapshot")
	}

	return &snap, nil
}

func (s *Store) path(accountID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.json", sanitizeAccountID(accountID)))
}

func sanitizeAccountID(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))

	var b strings.Builder
	prevUnderscore := false
	for _, r := range value {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			prevUnderscore = false
			continue
		}
		if !prevUnderscore {
			b.WriteByte('_')
			prevUnderscore = true
		}
	}

	out := strings.Trim(b.String(), "_")
	if out == "" {
		out = "default"
	}
	return out
}
