package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutWritesFileAndReturnsURI(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "")
	require.NoError(t, err)

	uri, err := s.Put(context.Background(), "wh-347/v1.txt", "text/plain", strings.NewReader("form body"))
	require.NoError(t, err)
	require.Equal(t, "file://"+filepath.Join(dir, "wh-347/v1.txt"), uri)

	b, err := os.ReadFile(filepath.Join(dir, "wh-347/v1.txt"))
	require.NoError(t, err)
	require.Equal(t, "form body", string(b))
}

func TestPutAppliesConfiguredPrefix(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "snapshots")
	require.NoError(t, err)

	uri, err := s.Put(context.Background(), "wh-347/v1.txt", "text/plain", strings.NewReader("form body"))
	require.NoError(t, err)
	require.Equal(t, "file://"+filepath.Join(dir, "snapshots", "wh-347/v1.txt"), uri)

	_, err = os.Stat(filepath.Join(dir, "snapshots", "wh-347", "v1.txt"))
	require.NoError(t, err)
}

func TestPutRejectsPathTraversal(t *testing.T) {
	s, err := New(t.TempDir(), "")
	require.NoError(t, err)

	_, err = s.Put(context.Background(), "../escape.txt", "", strings.NewReader("x"))
	require.Error(t, err)
}

func TestNewCreatesMissingBaseDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "archive")
	_, err := New(dir, "")
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestNewRejectsEmptyBaseDir(t *testing.T) {
	_, err := New("  ", "")
	require.Error(t, err)
}
