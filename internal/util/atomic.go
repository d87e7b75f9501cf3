// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultTempPrefix names the temp files WriteFile stages its data in.
const DefaultTempPrefix = ".tmp-"

// WriteOptions controls WriteFile.
type WriteOptions struct {
	// FilePerm is applied to the written file (default 0600).
	FilePerm os.FileMode
	// DirPerm is used for parent directories that have to be created (default 0700).
	DirPerm os.FileMode
	// SyncDir fsyncs the parent directory after the rename so the new
	// directory entry survives a crash.
	SyncDir bool
	// TempPrefix overrides DefaultTempPrefix.
	TempPrefix string
}

func (o WriteOptions) normalized() WriteOptions {
	if o.FilePerm == 0 {
		o.FilePerm = 0600
	}
	if o.DirPerm == 0 {
		o.DirPerm = 0700
	}
	if o.TempPrefix == "" {
		o.TempPrefix = DefaultTempPrefix
	}
	return o
}

// WriteFile replaces path with data. Readers see either the old content or
// the complete new content, never a partial write.
func WriteFile(path string, data []byte, opts WriteOptions) error {
	opts = opts.normalized()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, opts.DirPerm); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	// The temp file must share a filesystem with the target for the rename.
	f, err := os.CreateTemp(dir, opts.TempPrefix)
	if err != nil {
		return fmt.Errorf("stage %s: %w", filepath.Base(absPath), err)
	}
	tempPath := f.Name()
	committed := false
	defer func() {
		if !committed {
			f.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", tempPath, err)
	}
	if err := f.Chmod(opts.FilePerm); err != nil {
		return fmt.Errorf("chmod %s: %w", tempPath, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tempPath, err)
	}
	// Windows refuses to rename an open file.
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, absPath); err != nil {
		return fmt.Errorf("replace %s: %w", absPath, err)
	}
	committed = true

	if opts.SyncDir {
		return syncDir(dir)
	}
	return nil
}

// syncDir flushes a directory entry. Windows cannot sync directories.
func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open %s: %w", dir, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", dir, err)
	}
	return nil
}

// RemoveStaleTemps deletes temp files with the given prefix that an
// interrupted WriteFile left in dir. It returns how many were removed.
func RemoveStaleTemps(dir, prefix string) (int, error) {
	if prefix == "" {
		prefix = DefaultTempPrefix
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
