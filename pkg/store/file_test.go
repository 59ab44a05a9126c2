package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Load(t *testing.T) {
	t.Run("missing file returns empty set", func(t *testing.T) {
		s := NewFileStore(filepath.Join(t.TempDir(), "posted_ids.json"), 200)
		ids, err := s.Load(context.Background())
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("existing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "posted_ids.json")
		require.NoError(t, os.WriteFile(path, []byte(`["rss_http://a/1", "json_7"]`), 0o600))

		s := NewFileStore(path, 200)
		ids, err := s.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"rss_http://a/1", "json_7"}, ids)
	})

	t.Run("corrupt file fails loudly", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "posted_ids.json")
		require.NoError(t, os.WriteFile(path, []byte(`{not json at all`), 0o600))

		s := NewFileStore(path, 200)
		_, err := s.Load(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCorrupted)
	})
}

func TestFileStore_Save(t *testing.T) {
	t.Run("append and persist", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "posted_ids.json")
		s := NewFileStore(path, 200)

		updated, err := s.Save(context.Background(), "rss_http://a/1", []string{})
		require.NoError(t, err)
		assert.Equal(t, []string{"rss_http://a/1"}, updated)

		updated, err = s.Save(context.Background(), "json_7", updated)
		require.NoError(t, err)
		assert.Equal(t, []string{"rss_http://a/1", "json_7"}, updated)

		// persisted state matches the returned set
		loaded, err := s.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, updated, loaded)
	})

	t.Run("file is valid json array", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "posted_ids.json")
		s := NewFileStore(path, 200)

		_, err := s.Save(context.Background(), "json_1", []string{})
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var ids []string
		require.NoError(t, json.Unmarshal(data, &ids))
		assert.Equal(t, []string{"json_1"}, ids)
	})

	t.Run("trims to retention limit in append order", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "posted_ids.json")
		s := NewFileStore(path, 200)

		current := []string{}
		var err error
		for i := 0; i < 250; i++ {
			current, err = s.Save(context.Background(), fmt.Sprintf("json_%d", i), current)
			require.NoError(t, err)
		}

		loaded, err := s.Load(context.Background())
		require.NoError(t, err)
		require.Len(t, loaded, 200)
		assert.Equal(t, "json_50", loaded[0])
		assert.Equal(t, "json_249", loaded[199])
	})

	t.Run("no temp files left behind", func(t *testing.T) {
		dir := t.TempDir()
		s := NewFileStore(filepath.Join(dir, "posted_ids.json"), 200)

		_, err := s.Save(context.Background(), "rss_x", []string{})
		require.NoError(t, err)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "posted_ids.json", entries[0].Name())
	})
}
