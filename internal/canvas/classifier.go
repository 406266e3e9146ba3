// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package canvas

import "github.com/noteplane/noteplane/internal/models"

// Classify returns the region whose [OffsetX, OffsetX+Width) span
// contains the horizontal classification point, usually a note's visual
// center. Regions must be the sorted tiling; because tiles are
// contiguous and non-overlapping the match, if any, is unique. A point
// outside every region reports ok false, which renders with the
// unassigned defaults.
func Classify(centerX float32, regions []models.Region) (models.Region, bool) {
	for _, r := range regions {
		if r.Contains(centerX) {
			return r, true
		}
	}
	return models.Region{}, false
}
