// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package geometry

import "cogentcore.org/core/math32"

// DistanceToSegment returns the shortest distance from p to the segment
// [a, b], clamped to the endpoints. A degenerate segment (a == b) reduces
// to plain point distance rather than propagating a zero division.
func DistanceToSegment(p, a, b math32.Vector2) float32 {
	if a == b {
		return p.DistanceTo(a)
	}
	line := math32.NewLine2(a, b)
	return line.ClosestPointToPoint(p).DistanceTo(p)
}

// Moved reports whether two screen points are further apart than the
// given threshold. Gesture code uses this to distinguish a click (create
// or select) from the start of a pan or drag; comparison is on squared
// distance so no square root is taken per pointer event.
func Moved(a, b math32.Vector2, threshold float32) bool {
	return a.DistanceToSquared(b) > threshold*threshold
}
