// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/zeebo/blake3"
)

// Digest is a BLAKE3-256 content hash.
type Digest [32]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// MarshalText encodes the digest as lowercase hex.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Entry describes one file in a Set.
type Entry struct {
	Size   int64       `json:"size"`
	Mode   fs.FileMode `json:"mode"`
	Digest Digest      `json:"digest"`
}

// Set is a snapshot of an exported site: every regular file under Root
// keyed by its slash-separated relative path.
type Set struct {
	Root  string
	Files map[string]Entry
}

// Scan snapshots root. Anything under root that is neither a regular
// file nor a directory (symlinks, sockets, devices) is an error.
func Scan(root string) (*Set, error) {
	set := &Set{Root: root, Files: make(map[string]Entry)}
	err := filepath.WalkDir(root, func(current string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		relative, err := filepath.Rel(root, current)
		if err != nil {
			return err
		}
		relative = filepath.ToSlash(relative)
		if !entry.Type().IsRegular() {
			return fmt.Errorf("%s: unsupported file type %s", relative, entry.Type())
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		digest, err := digestFile(current)
		if err != nil {
			return err
		}
		set.Files[relative] = Entry{Size: info.Size(), Mode: info.Mode().Perm(), Digest: digest}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	return set, nil
}

// Paths returns every path in the set, sorted.
func (s *Set) Paths() []string {
	paths := make([]string, 0, len(s.Files))
	for relative := range s.Files {
		paths = append(paths, relative)
	}
	slices.Sort(paths)
	return paths
}

// Partition splits the set's paths into those reconciliation will
// mirror and those the rules exclude. Both are sorted.
func (s *Set) Partition(rules Rules) (included, excluded []string) {
	for _, relative := range s.Paths() {
		if rules.Excluded(relative) {
			excluded = append(excluded, relative)
		} else {
			included = append(included, relative)
		}
	}
	return included, excluded
}

func digestFile(name string) (Digest, error) {
	file, err := os.Open(name)
	if err != nil {
		return Digest{}, err
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return Digest{}, fmt.Errorf("hashing %s: %w", name, err)
	}
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}
