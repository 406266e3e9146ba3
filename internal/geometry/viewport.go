// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

// Package geometry implements the viewport transform and the small set of
// pure geometric routines the canvas engine depends on.
//
// The transform pipeline between screen (device pixels) and canvas
// (shared world units) is:
//
//	canvas = (screen - Origin)/Zoom - Pan
//	screen = (canvas + Pan)*Zoom + Origin
//
// Both directions are exact inverses for any in-range zoom. All viewport
// state is local to one participant; nothing in this package is ever
// written to the store except cursor positions already converted to
// canvas coordinates.
package geometry

import "cogentcore.org/core/math32"

// Default zoom bounds, applied when a Viewport is constructed with
// non-positive limits (including the zero value).
const (
	DefaultZoomMin float32 = 0.2
	DefaultZoomMax float32 = 4.0
)

// Viewport maps between screen and canvas coordinates for one participant.
//
// Pan is measured in canvas units and Zoom is a pure scale factor. Origin
// is the screen-space position of the canvas element and is subtracted
// before scaling, so pointer events can be passed in window coordinates.
//
// Viewport is a value type: mutating operations return the updated
// viewport rather than modifying in place, which keeps gesture code
// trivially snapshot-able.
type Viewport struct {
	Pan    math32.Vector2
	Zoom   float32
	Origin math32.Vector2

	ZoomMin float32
	ZoomMax float32
}

// NewViewport returns a viewport at zoom 1 with no pan, clamping zoom to
// [zoomMin, zoomMax]. Non-positive or reversed bounds fall back to the
// package defaults so the transform can never divide by zero.
func NewViewport(zoomMin, zoomMax float32) Viewport {
	if zoomMin <= 0 {
		zoomMin = DefaultZoomMin
	}
	if zoomMax <= 0 {
		zoomMax = DefaultZoomMax
	}
	if zoomMax < zoomMin {
		zoomMin, zoomMax = zoomMax, zoomMin
	}
	return Viewport{Zoom: 1, ZoomMin: zoomMin, ZoomMax: zoomMax}
}

// safeZoom returns the effective zoom factor, guarding the zero value.
func (v Viewport) safeZoom() float32 {
	if v.Zoom <= 0 {
		return 1
	}
	return v.Zoom
}

// clampZoom bounds z to the viewport's zoom range.
func (v Viewport) clampZoom(z float32) float32 {
	mn, mx := v.ZoomMin, v.ZoomMax
	if mn <= 0 {
		mn = DefaultZoomMin
	}
	if mx <= 0 {
		mx = DefaultZoomMax
	}
	if mx < mn {
		mn, mx = mx, mn
	}
	return math32.Clamp(z, mn, mx)
}

// ToCanvas converts a screen-space point to canvas coordinates.
func (v Viewport) ToCanvas(screen math32.Vector2) math32.Vector2 {
	return screen.Sub(v.Origin).DivScalar(v.safeZoom()).Sub(v.Pan)
}

// ToScreen converts a canvas-space point to screen coordinates.
func (v Viewport) ToScreen(canvas math32.Vector2) math32.Vector2 {
	return canvas.Add(v.Pan).MulScalar(v.safeZoom()).Add(v.Origin)
}

// PannedBy returns the viewport translated by a screen-space delta. The
// delta is divided by zoom so content tracks the pointer exactly at any
// scale.
func (v Viewport) PannedBy(screenDelta math32.Vector2) Viewport {
	v.Pan = v.Pan.Add(screenDelta.DivScalar(v.safeZoom()))
	return v
}

// WithZoom returns the viewport at the given zoom, clamped to its bounds.
// The pan is unchanged, so the canvas point at Origin stays fixed.
func (v Viewport) WithZoom(z float32) Viewport {
	v.Zoom = v.clampZoom(z)
	return v
}

// ZoomedAt returns the viewport scaled by factor with the canvas point
// under screenPivot held fixed on screen. This is the ctrl+wheel zoom
// behavior: content under the pointer does not slide while zooming.
//
// When the requested zoom clamps to the current value the viewport is
// returned unchanged, keeping repeated wheel events at the limit from
// drifting the pan.
func (v Viewport) ZoomedAt(factor float32, screenPivot math32.Vector2) Viewport {
	oldZoom := v.safeZoom()
	newZoom := v.clampZoom(oldZoom * factor)
	if newZoom == oldZoom {
		return v
	}
	anchor := v.ToCanvas(screenPivot)
	v.Zoom = newZoom
	v.Pan = screenPivot.Sub(v.Origin).DivScalar(newZoom).Sub(anchor)
	return v
}
