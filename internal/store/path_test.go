// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package store

import (
	"errors"
	"testing"
)

func TestValidatePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		ok   bool
	}{
		{"meta", true},
		{"notes/n1", true},
		{"votes/n1/p2", true},
		{"", false},
		{"/notes", false},
		{"notes/", false},
		{"notes//n1", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.ok && err != nil {
				t.Errorf("ValidatePath(%q) = %v, want nil", tt.path, err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidPath) {
				t.Errorf("ValidatePath(%q) = %v, want ErrInvalidPath", tt.path, err)
			}
		})
	}
}

func TestMatchesPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path, prefix string
		want         bool
	}{
		{"notes/n1", "", true},
		{"notes", "notes", true},
		{"notes/n1", "notes", true},
		{"notes/n1/x", "notes", true},
		{"notes2", "notes", false},
		{"notes2/n1", "notes", false},
		{"cursors/p1", "notes", false},
		{"votes/n1/p1", "votes/n1", true},
		{"votes/n2/p1", "votes/n1", false},
	}

	for _, tt := range tests {
		if got := MatchesPrefix(tt.path, tt.prefix); got != tt.want {
			t.Errorf("MatchesPrefix(%q, %q) = %v, want %v", tt.path, tt.prefix, got, tt.want)
		}
	}
}

func TestJoinSplitPath(t *testing.T) {
	t.Parallel()

	if got := JoinPath("votes", "n1", "p1"); got != "votes/n1/p1" {
		t.Errorf("JoinPath = %q, want votes/n1/p1", got)
	}
	if got := JoinPath("notes", "", "n1"); got != "notes/n1" {
		t.Errorf("JoinPath with empty part = %q, want notes/n1", got)
	}

	segs := SplitPath("locks/moving/n1")
	if len(segs) != 3 || segs[0] != "locks" || segs[1] != "moving" || segs[2] != "n1" {
		t.Errorf("SplitPath = %v", segs)
	}
	if got := SplitPath(""); got != nil {
		t.Errorf("SplitPath(\"\") = %v, want nil", got)
	}
}
