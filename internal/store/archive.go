package store

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Archives hold one tree per cache path. Entries are named "<index>/<rel>"
// where index is the position of the path in the list, so a cache saved on
// one machine restores into whatever the same list resolves to on another
// (e.g. a different home directory).

// Pack writes a tar.gz archive of paths to w. Paths that do not exist are
// skipped. When none exist Pack writes nothing and returns ErrEmptyPayload.
func Pack(ctx context.Context, w io.Writer, paths []string) error {
	if len(paths) == 0 {
		return ErrNoPaths
	}

	present := make([]bool, len(paths))
	found := false

	for i, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}

			return fmt.Errorf("failed to stat %s: %w", root, err)
		}

		if !info.IsDir() {
			return fmt.Errorf("cache path %s is not a directory", root)
		}

		present[i], found = true, true
	}

	if !found {
		return fmt.Errorf("%w: %s", ErrEmptyPayload, strings.Join(paths, ", "))
	}

	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	for i, root := range paths {
		if !present[i] {
			continue
		}

		if err := packTree(ctx, tw, strconv.Itoa(i), root); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}

	return gz.Close()
}

func packTree(ctx context.Context, tw *tar.Writer, prefix, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		var link string
		switch {
		case d.IsDir(), info.Mode().IsRegular():
		case info.Mode()&fs.ModeSymlink != 0:
			if link, err = os.Readlink(path); err != nil {
				return fmt.Errorf("failed to read link %s: %w", path, err)
			}
		default:
			// sockets, devices and pipes are never part of a Go cache
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return fmt.Errorf("failed to create header for %s: %w", path, err)
		}

		hdr.Name = prefix + "/" + filepath.ToSlash(rel)
		if rel == "." {
			hdr.Name = prefix
		}

		if d.IsDir() {
			hdr.Name += "/"
		}

		// Ownership is meaningless across runners
		hdr.Uid, hdr.Gid, hdr.Uname, hdr.Gname = 0, 0, "", ""

		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("failed to write header for %s: %w", path, err)
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		return copyInto(tw, path)
	})
}

func copyInto(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to archive %s: %w", path, err)
	}

	return nil
}

// Unpack extracts a tar.gz archive produced by Pack into paths. Files that
// already exist are kept: the Go build and module caches are content
// addressed, so an existing name already holds the same bytes.
func Unpack(ctx context.Context, r io.Reader, paths []string) error {
	if len(paths) == 0 {
		return ErrNoPaths
	}

	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("failed to read archive: %w", err)
		}

		root, target, err := entryTarget(hdr.Name, paths)
		if err != nil {
			return err
		}

		if err := extract(tr, hdr, root, target); err != nil {
			return err
		}
	}
}

// entryTarget maps an archive entry name onto the filesystem, rejecting
// entries that would land outside their root.
func entryTarget(name string, paths []string) (string, string, error) {
	idx, rel, _ := strings.Cut(strings.TrimSuffix(name, "/"), "/")

	i, err := strconv.Atoi(idx)
	if err != nil || i < 0 || i >= len(paths) {
		return "", "", fmt.Errorf("invalid archive entry %q", name)
	}

	root := paths[i]
	target := filepath.Join(root, filepath.FromSlash(rel))

	if !within(root, target) {
		return "", "", fmt.Errorf("archive entry %q escapes %s", name, root)
	}

	return root, target, nil
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func extract(tr *tar.Reader, hdr *tar.Header, root, target string) error {
	mode := hdr.FileInfo().Mode().Perm()

	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(target, mode|0o700); err != nil {
			return fmt.Errorf("failed to create %s: %w", target, err)
		}

		return nil

	case tar.TypeReg:
		if exists(target) {
			return nil
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
		}

		f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", target, err)
		}

		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			return fmt.Errorf("failed to restore %s: %w", target, err)
		}

		if err := f.Close(); err != nil {
			return err
		}

		// go-build trims by mtime
		return os.Chtimes(target, hdr.ModTime, hdr.ModTime)

	case tar.TypeSymlink:
		if exists(target) {
			return nil
		}

		dest := hdr.Linkname
		if !filepath.IsAbs(dest) {
			dest = filepath.Join(filepath.Dir(target), dest)
		}

		if !within(root, dest) {
			return fmt.Errorf("symlink %s points outside %s", target, root)
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		return os.Symlink(hdr.Linkname, target)

	default:
		return nil
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
