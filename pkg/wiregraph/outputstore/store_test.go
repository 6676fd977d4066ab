package outputstore_test

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/randalmurphal/wiregraph/pkg/wiregraph/outputstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]func() outputstore.Store {
	return map[string]func() outputstore.Store{
		"memory": func() outputstore.Store {
			return outputstore.NewMemoryStore()
		},
		"sqlite": func() outputstore.Store {
			s, err := outputstore.NewSQLiteStore(filepath.Join(t.TempDir(), "outputs.db"))
			require.NoError(t, err)
			return s
		},
	}
}

func TestStore_SaveLoad(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()

			require.NoError(t, s.Save("wf", "a", map[string]any{"text": "hi", "n": 2}))

			got, err := s.Load("wf", "a")
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"text": "hi", "n": float64(2)}, got)

			_, err = s.Load("wf", "missing")
			assert.ErrorIs(t, err, outputstore.ErrNotFound)

			_, err = s.Load("other", "a")
			assert.ErrorIs(t, err, outputstore.ErrNotFound)
		})
	}
}

func TestStore_SaveReplaces(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()

			require.NoError(t, s.Save("wf", "a", map[string]any{"v": "old", "extra": true}))
			require.NoError(t, s.Save("wf", "a", map[string]any{"v": "new"}))

			got, err := s.Load("wf", "a")
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"v": "new"}, got)
		})
	}
}

func TestStore_NilOutput(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()

			require.NoError(t, s.Save("wf", "a", nil))
			got, err := s.Load("wf", "a")
			require.NoError(t, err)
			assert.Equal(t, map[string]any{}, got)
		})
	}
}

func TestStore_KnownAndList(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()

			require.NoError(t, s.Save("wf", "b", map[string]any{"x": 1}))
			require.NoError(t, s.Save("wf", "a", map[string]any{"y": 2}))
			require.NoError(t, s.Save("other", "c", map[string]any{"z": 3}))
			require.NoError(t, s.Save("wf", "b", map[string]any{"x": 4}))

			known, err := s.Known("wf")
			require.NoError(t, err)
			assert.Equal(t, map[string]map[string]any{
				"a": {"y": float64(2)},
				"b": {"x": float64(4)},
			}, known)

			infos, err := s.List("wf")
			require.NoError(t, err)
			require.Len(t, infos, 2)
			assert.Equal(t, "a", infos[0].NodeID, "re-saved b moves after a")
			assert.Equal(t, "b", infos[1].NodeID)
			assert.Less(t, infos[0].Sequence, infos[1].Sequence)
			assert.Equal(t, "wf", infos[0].WorkflowID)
			assert.Positive(t, infos[0].Size)
			assert.False(t, infos[0].Timestamp.IsZero())

			empty, err := s.Known("nothing")
			require.NoError(t, err)
			assert.Empty(t, empty)

			none, err := s.List("nothing")
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()

			require.NoError(t, s.Save("wf", "a", map[string]any{}))
			require.NoError(t, s.Save("wf", "b", map[string]any{}))
			require.NoError(t, s.Save("keep", "a", map[string]any{}))

			require.NoError(t, s.Delete("wf", "a"))
			require.NoError(t, s.Delete("wf", "never-saved"))
			_, err := s.Load("wf", "a")
			assert.ErrorIs(t, err, outputstore.ErrNotFound)

			require.NoError(t, s.DeleteWorkflow("wf"))
			known, err := s.Known("wf")
			require.NoError(t, err)
			assert.Empty(t, known)

			_, err = s.Load("keep", "a")
			assert.NoError(t, err)
		})
	}
}

func TestStore_Closed(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			require.NoError(t, s.Close())
			require.NoError(t, s.Close(), "close is idempotent")

			assert.ErrorIs(t, s.Save("wf", "a", nil), outputstore.ErrStoreClosed)
			_, err := s.Load("wf", "a")
			assert.ErrorIs(t, err, outputstore.ErrStoreClosed)
			_, err = s.Known("wf")
			assert.ErrorIs(t, err, outputstore.ErrStoreClosed)
			_, err = s.List("wf")
			assert.ErrorIs(t, err, outputstore.ErrStoreClosed)
			assert.ErrorIs(t, s.Delete("wf", "a"), outputstore.ErrStoreClosed)
			assert.ErrorIs(t, s.DeleteWorkflow("wf"), outputstore.ErrStoreClosed)
		})
	}
}

func TestStore_Concurrent(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					node := string(rune('a' + i))
					assert.NoError(t, s.Save("wf", node, map[string]any{"i": i}))
					_, err := s.Load("wf", node)
					assert.NoError(t, err)
				}(i)
			}
			wg.Wait()

			known, err := s.Known("wf")
			require.NoError(t, err)
			assert.Len(t, known, 20)
		})
	}
}

func TestSQLiteStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outputs.db")

	s1, err := outputstore.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.Save("wf", "a", map[string]any{"answer": "42"}))
	require.NoError(t, s1.Close())

	s2, err := outputstore.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Load("wf", "a")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"answer": "42"}, got)
}

func TestSQLiteStore_InMemory(t *testing.T) {
	s, err := outputstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save("wf", "a", map[string]any{"ok": true}))
	got, err := s.Load("wf", "a")
	require.NoError(t, err)
	assert.Equal(t, true, got["ok"])
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := outputstore.NewSQLiteStore("/nonexistent/path/outputs.db")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	s, err := outputstore.Open("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &outputstore.MemoryStore{}, s)

	s, err = outputstore.Open("sqlite", filepath.Join(t.TempDir(), "o.db"))
	require.NoError(t, err)
	assert.IsType(t, &outputstore.SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = outputstore.Open("redis", "")
	assert.ErrorContains(t, err, "unsupported output store driver")
}
