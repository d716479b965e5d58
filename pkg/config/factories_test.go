package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filestorm/internal/store/badger"
	"filestorm/internal/store/fs"
	"filestorm/internal/store/memory"
)

func TestCreateStore_Memory(t *testing.T) {
	st, err := CreateStore(context.Background(), &StoreConfig{Type: "memory"})
	require.NoError(t, err)
	defer st.Close()

	assert.IsType(t, &memory.MemoryStore{}, st)
}

func TestCreateStore_Filesystem(t *testing.T) {
	st, err := CreateStore(context.Background(), &StoreConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{"path": t.TempDir()},
	})
	require.NoError(t, err)
	defer st.Close()

	assert.IsType(t, &fs.FSStore{}, st)
}

func TestCreateStore_FilesystemNeedsPath(t *testing.T) {
	_, err := CreateStore(context.Background(), &StoreConfig{Type: "filesystem"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestCreateStore_Badger(t *testing.T) {
	st, err := CreateStore(context.Background(), &StoreConfig{
		Type:   "badger",
		Badger: map[string]any{"db_path": t.TempDir()},
	})
	require.NoError(t, err)
	defer st.Close()

	assert.IsType(t, &badger.BadgerStore{}, st)
}

func TestCreateStore_BadgerNeedsPath(t *testing.T) {
	_, err := CreateStore(context.Background(), &StoreConfig{Type: "badger"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db_path is required")
}

func TestCreateStore_S3NeedsBucket(t *testing.T) {
	_, err := CreateStore(context.Background(), &StoreConfig{
		Type: "s3",
		S3:   map[string]any{"region": "us-east-1"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket is required")
}

func TestCreateStore_Unknown(t *testing.T) {
	_, err := CreateStore(context.Background(), &StoreConfig{Type: "tape"})
	assert.Error(t, err)
}
