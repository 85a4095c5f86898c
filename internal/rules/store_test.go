package rules

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mikey/content-review/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingResource struct {
	rules []core.Rule
}

func (r *failingResource) ReadRules() ([]core.Rule, error) {
	return r.rules, nil
}

func (r *failingResource) WriteRules([]core.Rule) error {
	return errors.New("disk full")
}

func TestStore_LoadMissingFile(t *testing.T) {
	file, err := NewCSVFile(filepath.Join(t.TempDir(), "missing.csv"), "utf-8", zap.NewNop())
	require.NoError(t, err)
	store := NewStore(file, zap.NewNop())

	_, err = store.Load()
	assert.ErrorIs(t, err, core.ErrRuleLoad)
	assert.NotNil(t, store.CurrentRules())
	assert.Empty(t, store.CurrentRules())
}

func TestStore_ReplaceAllPersistsAndPublishes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.csv")
	file, err := NewCSVFile(path, "utf-8", zap.NewNop())
	require.NoError(t, err)
	store := NewStore(file, zap.NewNop())

	require.NoError(t, store.ReplaceAll(sampleRules()))
	assert.Equal(t, sampleRules()[0], store.CurrentRules()[0])

	reloaded := NewStore(file, zap.NewNop())
	got, err := reloaded.Load()
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, store.CurrentRules()[1], got[1])
}

func TestStore_ReplaceAllFailureKeepsSnapshot(t *testing.T) {
	resource := &failingResource{rules: []core.Rule{{ID: "old", Keywords: []string{"x"}}}}
	store := NewStore(resource, zap.NewNop())
	_, err := store.Load()
	require.NoError(t, err)

	err = store.ReplaceAll([]core.Rule{{ID: "new"}})
	assert.ErrorIs(t, err, core.ErrRuleSave)
	require.Len(t, store.CurrentRules(), 1)
	assert.Equal(t, "old", store.CurrentRules()[0].ID)
}

func TestStore_ReplaceAllRejectsInvalidIDs(t *testing.T) {
	file, err := NewCSVFile(filepath.Join(t.TempDir(), "rules.csv"), "utf-8", zap.NewNop())
	require.NoError(t, err)
	store := NewStore(file, zap.NewNop())

	assert.ErrorIs(t, store.ReplaceAll([]core.Rule{{ID: "a"}, {ID: "a"}}), core.ErrRuleSave)
	assert.ErrorIs(t, store.ReplaceAll([]core.Rule{{ID: ""}}), core.ErrRuleSave)
	assert.ErrorIs(t, store.ReplaceAll([]core.Rule{{ID: "  "}}), core.ErrRuleSave)
	assert.ErrorIs(t, store.ReplaceAll([]core.Rule{{ID: "a"}, {ID: " a "}}), core.ErrRuleSave)
	assert.Empty(t, store.CurrentRules())
}

func TestStore_ReplaceAllMatchesReload(t *testing.T) {
	file, err := NewCSVFile(filepath.Join(t.TempDir(), "rules.csv"), "utf-8", zap.NewNop())
	require.NoError(t, err)
	store := NewStore(file, zap.NewNop())

	require.NoError(t, store.ReplaceAll([]core.Rule{
		{ID: " 1 ", Keywords: []string{"buy now", "", " cheap"}, Description: "广告"},
		{ID: "2", Description: "no keywords"},
	}))

	live := store.CurrentRules()
	require.Len(t, live, 2)
	assert.Equal(t, "1", live[0].ID)
	assert.Equal(t, []string{"buy", "now", "cheap"}, live[0].Keywords)
	assert.Empty(t, live[1].Keywords)

	reloaded, err := NewStore(file, zap.NewNop()).Load()
	require.NoError(t, err)
	assert.Equal(t, live, reloaded)
}

func TestStore_ReplaceAllCopiesInput(t *testing.T) {
	file, err := NewCSVFile(filepath.Join(t.TempDir(), "rules.csv"), "utf-8", zap.NewNop())
	require.NoError(t, err)
	store := NewStore(file, zap.NewNop())

	input := []core.Rule{{ID: "1", Keywords: []string{"foo"}}}
	require.NoError(t, store.ReplaceAll(input))
	input[0].Keywords[0] = "changed"

	assert.Equal(t, "foo", store.CurrentRules()[0].Keywords[0])
}

func TestStore_ReadersSeeWholeSnapshots(t *testing.T) {
	file, err := NewCSVFile(filepath.Join(t.TempDir(), "rules.csv"), "utf-8", zap.NewNop())
	require.NoError(t, err)
	store := NewStore(file, zap.NewNop())

	small := []core.Rule{{ID: "a"}}
	large := []core.Rule{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				n := len(store.CurrentRules())
				if n != 0 && n != 1 && n != 3 {
					t.Errorf("observed partial snapshot of %d rules", n)
					return
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			require.NoError(t, store.ReplaceAll(small))
		} else {
			require.NoError(t, store.ReplaceAll(large))
		}
	}
	close(stop)
	wg.Wait()
}
