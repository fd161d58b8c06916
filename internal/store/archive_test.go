package store

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files (relative path -> content) under root
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func assertTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
		require.NoError(t, err, name)
		assert.Equal(t, content, string(data), name)
	}
}

func TestPackUnpack(t *testing.T) {
	src := t.TempDir()
	buildCache := filepath.Join(src, "go-build")
	modCache := filepath.Join(src, "mod")

	buildFiles := map[string]string{
		"00/0011aabb-d": "object",
		"ff/ffee-a":     "action",
		"README":        "This directory holds cached build artifacts from the Go build system.",
	}
	modFiles := map[string]string{
		"github.com/stretchr/testify@v1.11.1/go.mod": "module github.com/stretchr/testify",
		"cache/download/github.com/x/@v/list":        "v1.0.0\n",
	}

	writeTree(t, buildCache, buildFiles)
	writeTree(t, modCache, modFiles)

	var buf bytes.Buffer
	require.NoError(t, Pack(context.Background(), &buf, []string{buildCache, modCache}))

	// Restore into different roots, as on another runner with another home
	dst := t.TempDir()
	restoredBuild := filepath.Join(dst, "home", ".cache", "go-build")
	restoredMod := filepath.Join(dst, "home", "go", "pkg", "mod")

	require.NoError(t, Unpack(context.Background(), &buf, []string{restoredBuild, restoredMod}))

	assertTree(t, restoredBuild, buildFiles)
	assertTree(t, restoredMod, modFiles)
}

func TestPack_SkipsMissingPaths(t *testing.T) {
	src := t.TempDir()
	present := filepath.Join(src, "present")
	writeTree(t, present, map[string]string{"a.txt": "a"})

	var buf bytes.Buffer
	require.NoError(t, Pack(context.Background(), &buf, []string{filepath.Join(src, "missing"), present}))

	dst := t.TempDir()
	first, second := filepath.Join(dst, "first"), filepath.Join(dst, "second")
	require.NoError(t, Unpack(context.Background(), &buf, []string{first, second}))

	assert.NoDirExists(t, first)
	assertTree(t, second, map[string]string{"a.txt": "a"})
}

func TestPack_EmptyPayload(t *testing.T) {
	src := t.TempDir()

	var buf bytes.Buffer
	err := Pack(context.Background(), &buf, []string{filepath.Join(src, "go-build"), filepath.Join(src, "mod")})

	assert.ErrorIs(t, err, ErrEmptyPayload)
	assert.Zero(t, buf.Len(), "nothing is written for an empty payload")
}

func TestPack_Errors(t *testing.T) {
	var buf bytes.Buffer

	assert.ErrorIs(t, Pack(context.Background(), &buf, nil), ErrNoPaths)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	assert.Error(t, Pack(context.Background(), &buf, []string{file}), "cache paths must be directories")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a": "a"})
	assert.ErrorIs(t, Pack(ctx, &buf, []string{dir}), context.Canceled)
}

func TestUnpack_KeepsExistingFiles(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a": "archived", "b": "archived"})

	var buf bytes.Buffer
	require.NoError(t, Pack(context.Background(), &buf, []string{src}))

	dst := t.TempDir()
	writeTree(t, dst, map[string]string{"a": "existing"})

	require.NoError(t, Unpack(context.Background(), &buf, []string{dst}))
	assertTree(t, dst, map[string]string{"a": "existing", "b": "archived"})
}

func TestUnpack_PreservesModTime(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"obj": "x"})

	mtime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(src, "obj"), mtime, mtime))

	var buf bytes.Buffer
	require.NoError(t, Pack(context.Background(), &buf, []string{src}))

	dst := t.TempDir()
	require.NoError(t, Unpack(context.Background(), &buf, []string{dst}))

	info, err := os.Stat(filepath.Join(dst, "obj"))
	require.NoError(t, err)
	assert.True(t, mtime.Equal(info.ModTime()), "got %v", info.ModTime())
}

func craftArchive(t *testing.T, hdrs ...*tar.Header) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, hdr := range hdrs {
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Size > 0 {
			_, err := tw.Write(bytes.Repeat([]byte("x"), int(hdr.Size)))
			require.NoError(t, err)
		}
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	return &buf
}

func TestUnpack_RejectsUnsafeEntries(t *testing.T) {
	tests := []struct {
		name string
		hdr  *tar.Header
	}{
		{
			name: "path traversal",
			hdr:  &tar.Header{Name: "0/../../etc/passwd", Typeflag: tar.TypeReg, Mode: 0o644, Size: 1},
		},
		{
			name: "unknown root index",
			hdr:  &tar.Header{Name: "5/file", Typeflag: tar.TypeReg, Mode: 0o644, Size: 1},
		},
		{
			name: "non numeric root",
			hdr:  &tar.Header{Name: "abc/file", Typeflag: tar.TypeReg, Mode: 0o644, Size: 1},
		},
		{
			name: "symlink escaping root",
			hdr:  &tar.Header{Name: "0/link", Typeflag: tar.TypeSymlink, Linkname: "../../outside", Mode: 0o777},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := filepath.Join(t.TempDir(), "root")
			err := Unpack(context.Background(), craftArchive(t, tt.hdr), []string{dst})
			assert.Error(t, err)
		})
	}
}

func TestUnpack_NotAnArchive(t *testing.T) {
	err := Unpack(context.Background(), bytes.NewBufferString("not gzip"), []string{t.TempDir()})
	assert.Error(t, err)
}
