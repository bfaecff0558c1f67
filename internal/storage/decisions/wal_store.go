// Package decisions persists the immutable audit trail of trading decisions in
// a write-ahead log. Every decision is recorded, executed or not.
package decisions

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/papertrader/internal/domain"
)

const (
	defaultDecisionDir   = "./wal/decisions"
	decisionSegmentLimit = 1000
	decisionMaxSegments  = 20
	decisionKeyPrefix    = "decision_"
)

// WALStore is a WAL-backed decision audit store.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// Record pairs a decision with its WAL index for cursor-based reads.
type Record struct {
	Index    uint64                 `json:"index"`
	Decision domain.TradingDecision `json:"decision"`
}

// NewWALStore opens the decision WAL under dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultDecisionDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "decision_",
		SegmentThreshold: decisionSegmentLimit,
		MaxSegments:      decisionMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init decision WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends one decision to the audit log.
func (s *WALStore) Save(decision domain.TradingDecision) error {
	if s == nil || s.wal == nil {
		return errors.New("decision store is not initialized")
	}
	if decision.Token == "" {
		return fmt.Errorf("decision token is required")
	}

	payload, err := json.Marshal(decision)
	if err != nil {
		return errors.Wrap(err, "marshal decision")
	}

	key := fmt.Sprintf("%s%s", decisionKeyPrefix, decision.Token)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// DecisionsAfter returns all decisions written after the provided WAL index.
func (s *WALStore) DecisionsAfter(index uint64) ([]Record, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("decision store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]Record, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, decisionKeyPrefix) {
			continue
		}
		var decision domain.TradingDecision
		if err := json.Unmarshal(payload, &decision); err != nil {
			return nil, errors.Wrap(err, "decode decision")
		}
		records = append(records, Record{Index: idx, Decision: decision})
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("decision store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
