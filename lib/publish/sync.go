// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// Changes lists what a reconciliation did, by slash-separated path.
type Changes struct {
	Added   []string `json:"added,omitempty"`
	Updated []string `json:"updated,omitempty"`
	Deleted []string `json:"deleted,omitempty"`
}

// Empty reports whether the reconciliation changed nothing.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Deleted) == 0
}

// Sync reconciles destination with set. Every non-excluded path ends up
// byte-identical to the set, with the same permission bits; every
// non-excluded file absent from the set is deleted; directories left
// empty are removed. Excluded paths are never touched.
//
// Files are written atomically (temporary file, then rename), so a
// reader of the destination never sees a half-written file, but a
// failure partway through leaves the tree partially reconciled.
func Sync(set *Set, destination string, rules Rules) (Changes, error) {
	var changes Changes
	info, err := os.Stat(destination)
	if err != nil {
		return changes, fmt.Errorf("destination: %w", err)
	}
	if !info.IsDir() {
		return changes, fmt.Errorf("destination %s is not a directory", destination)
	}

	included, _ := set.Partition(rules)
	if err := checkExcludeConflicts(included, destination, rules); err != nil {
		return changes, err
	}
	for _, relative := range included {
		entry := set.Files[relative]
		target := filepath.Join(destination, filepath.FromSlash(relative))

		existed, err := clearPath(destination, relative, rules, &changes)
		if err != nil {
			return changes, err
		}
		if existed {
			same, err := matches(target, entry)
			if err != nil {
				return changes, err
			}
			if same {
				continue
			}
		}

		source := filepath.Join(set.Root, filepath.FromSlash(relative))
		if err := copyFile(source, target, entry.Mode); err != nil {
			return changes, fmt.Errorf("copying %s: %w", relative, err)
		}
		if existed {
			changes.Updated = append(changes.Updated, relative)
		} else {
			changes.Added = append(changes.Added, relative)
		}
	}

	if err := deleteStale(set, destination, rules, &changes); err != nil {
		return changes, err
	}
	slices.Sort(changes.Deleted)
	return changes, nil
}

// checkExcludeConflicts rejects a set file whose path holds excluded
// content in the destination, such as a file "a" against an existing
// excluded "a/b". Writing it would mean deleting what the rules
// protect, so Sync refuses before changing anything.
func checkExcludeConflicts(included []string, destination string, rules Rules) error {
	for _, relative := range included {
		for _, prefix := range rules.Prefixes() {
			if !strings.HasPrefix(prefix, relative+"/") {
				continue
			}
			_, err := os.Lstat(filepath.Join(destination, filepath.FromSlash(prefix)))
			switch {
			case err == nil:
				return fmt.Errorf("%s: would replace excluded path %s", relative, prefix)
			case !errors.Is(err, fs.ErrNotExist):
				return err
			}
		}
	}
	return nil
}

// clearPath makes room for a regular file at relative: any ancestor
// that is not a directory, and a directory or symlink at relative
// itself, is removed. It reports whether a regular file already exists
// there.
func clearPath(destination, relative string, rules Rules, changes *Changes) (bool, error) {
	segments := strings.Split(relative, "/")
	for i := 1; i < len(segments); i++ {
		ancestor := strings.Join(segments[:i], "/")
		info, err := os.Lstat(filepath.Join(destination, filepath.FromSlash(ancestor)))
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			return false, err
		}
		if info.IsDir() {
			continue
		}
		if rules.Excluded(ancestor) {
			return false, fmt.Errorf("%s: blocked by excluded path %s", relative, ancestor)
		}
		if err := os.Remove(filepath.Join(destination, filepath.FromSlash(ancestor))); err != nil {
			return false, err
		}
		changes.Deleted = append(changes.Deleted, ancestor)
		break
	}

	target := filepath.Join(destination, filepath.FromSlash(relative))
	info, err := os.Lstat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.Mode().IsRegular() {
		return true, nil
	}
	if err := removeTree(destination, relative, rules, changes); err != nil {
		return false, err
	}
	return false, nil
}

// removeTree deletes relative and everything under it that is not
// excluded. Excluded descendants keep their directories alive.
func removeTree(destination, relative string, rules Rules, changes *Changes) error {
	root := filepath.Join(destination, filepath.FromSlash(relative))
	var files, directories []string
	err := filepath.WalkDir(root, func(current string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name, err := relativeTo(destination, current)
		if err != nil {
			return err
		}
		if rules.Excluded(name) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			directories = append(directories, current)
		} else {
			files = append(files, name)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, name := range files {
		if err := os.Remove(filepath.Join(destination, filepath.FromSlash(name))); err != nil {
			return err
		}
		changes.Deleted = append(changes.Deleted, name)
	}
	return pruneDirectories(directories)
}

// matches reports whether the file at target already has entry's mode
// and content. The digest is only computed when the size agrees.
func matches(target string, entry Entry) (bool, error) {
	info, err := os.Stat(target)
	if err != nil {
		return false, err
	}
	if info.Size() != entry.Size || info.Mode().Perm() != entry.Mode {
		return false, nil
	}
	digest, err := digestFile(target)
	if err != nil {
		return false, err
	}
	return digest == entry.Digest, nil
}

func copyFile(source, target string, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	input, err := os.Open(source)
	if err != nil {
		return err
	}
	defer input.Close()

	temporary, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".tmp-")
	if err != nil {
		return err
	}
	temporaryPath := temporary.Name()
	if _, err := io.Copy(temporary, input); err != nil {
		temporary.Close()
		os.Remove(temporaryPath)
		return err
	}
	if err := temporary.Chmod(mode); err != nil {
		temporary.Close()
		os.Remove(temporaryPath)
		return err
	}
	if err := temporary.Sync(); err != nil {
		temporary.Close()
		os.Remove(temporaryPath)
		return err
	}
	if err := temporary.Close(); err != nil {
		os.Remove(temporaryPath)
		return err
	}
	if err := os.Rename(temporaryPath, target); err != nil {
		os.Remove(temporaryPath)
		return err
	}
	return nil
}

// deleteStale removes non-excluded files that the set does not contain,
// then prunes directories the deletions left empty.
func deleteStale(set *Set, destination string, rules Rules, changes *Changes) error {
	var directories []string
	err := filepath.WalkDir(destination, func(current string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if current == destination {
			return nil
		}
		name, err := relativeTo(destination, current)
		if err != nil {
			return err
		}
		if rules.Excluded(name) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			directories = append(directories, current)
			return nil
		}
		if _, ok := set.Files[name]; ok {
			return nil
		}
		if err := os.Remove(current); err != nil {
			return err
		}
		changes.Deleted = append(changes.Deleted, name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("removing stale files: %w", err)
	}
	return pruneDirectories(directories)
}

// pruneDirectories removes every empty directory in the list, deepest
// first, so a parent emptied by its children's removal goes too.
func pruneDirectories(directories []string) error {
	slices.SortFunc(directories, func(a, b string) int {
		return strings.Count(b, string(filepath.Separator)) - strings.Count(a, string(filepath.Separator))
	})
	for _, directory := range directories {
		entries, err := os.ReadDir(directory)
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			continue
		}
		if err := os.Remove(directory); err != nil {
			return err
		}
	}
	return nil
}

func relativeTo(root, current string) (string, error) {
	relative, err := filepath.Rel(root, current)
	if err != nil {
		return "", err
	}
	return path.Clean(filepath.ToSlash(relative)), nil
}
