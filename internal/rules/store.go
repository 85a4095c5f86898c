package rules

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mikey/content-review/internal/core"
	"github.com/mikey/content-review/internal/metrics"
	"go.uber.org/zap"
)

// Store holds the current rule snapshot. Readers get an immutable slice;
// writers build a new slice and swap it in.
type Store struct {
	resource Resource
	logger   *zap.Logger
	snapshot atomic.Pointer[[]core.Rule]
	writeMu  sync.Mutex
}

// NewStore creates a store with an empty snapshot
func NewStore(resource Resource, logger *zap.Logger) *Store {
	s := &Store{
		resource: resource,
		logger:   logger,
	}
	s.publish([]core.Rule{})
	return s
}

// Load reads the rule resource and publishes its content
func (s *Store) Load() ([]core.Rule, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rules, err := s.resource.ReadRules()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrRuleLoad, err)
	}

	s.publish(rules)
	s.logger.Info("Loaded keyword rules", zap.Int("count", len(rules)))
	return s.CurrentRules(), nil
}

// ReplaceAll persists rules as the complete rule set and publishes them.
// Rules are normalized to the form a later Load reads back: ids trimmed,
// keywords re-split on whitespace. The snapshot is left untouched when the
// write fails.
func (s *Store) ReplaceAll(rules []core.Rule) error {
	next, err := normalizeRules(rules)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.resource.WriteRules(next); err != nil {
		return fmt.Errorf("%w: %w", core.ErrRuleSave, err)
	}

	s.publish(next)
	s.logger.Info("Saved keyword rules", zap.Int("count", len(next)))
	return nil
}

// CurrentRules returns the latest snapshot. The slice is shared and must
// not be modified.
func (s *Store) CurrentRules() []core.Rule {
	return *s.snapshot.Load()
}

func (s *Store) publish(rules []core.Rule) {
	s.snapshot.Store(&rules)
	metrics.RulesLoaded.Set(float64(len(rules)))
}

func normalizeRules(rules []core.Rule) ([]core.Rule, error) {
	out := make([]core.Rule, 0, len(rules))
	seen := make(map[string]struct{}, len(rules))
	for _, rule := range rules {
		id := strings.TrimSpace(rule.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: rule without id", core.ErrRuleSave)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate rule id %s", core.ErrRuleSave, id)
		}
		seen[id] = struct{}{}

		out = append(out, core.Rule{
			ID:          id,
			Keywords:    strings.Fields(strings.Join(rule.Keywords, " ")),
			Description: rule.Description,
		})
	}
	return out, nil
}
