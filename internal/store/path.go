// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package store

import (
	"fmt"
	"strings"
)

// ValidatePath checks that a path is non-empty, relative, and has no empty
// segments. Validation happens at the write/read boundary once; internal
// code may assume validated paths.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	if strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return fmt.Errorf("%w: %q has a leading or trailing slash", ErrInvalidPath, path)
	}
	if strings.Contains(path, "//") {
		return fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, path)
	}
	return nil
}

// JoinPath joins path segments with slashes, skipping empty parts.
func JoinPath(parts ...string) string {
	nonEmpty := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "/")
}

// SplitPath returns the slash-separated segments of a path.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// MatchesPrefix reports whether path is at or below prefix in the tree.
// The empty prefix matches every path. Matching is segment-aware:
// "notes" matches "notes" and "notes/n1" but not "notes2".
func MatchesPrefix(path, prefix string) bool {
	if prefix == "" {
		return true
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}
