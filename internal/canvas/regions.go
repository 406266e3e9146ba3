// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package canvas

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noteplane/noteplane/internal/metrics"
	"github.com/noteplane/noteplane/internal/models"
)

// Region mutation errors.
var (
	// ErrLastRegion rejects deleting the only remaining region; notes
	// must always have at least one classifiable span.
	ErrLastRegion = errors.New("canvas: cannot delete the last region")
	// ErrRegionNotFound indicates a mutation against an unknown region.
	ErrRegionNotFound = errors.New("canvas: region not found")
)

// seedRegionsIfEmpty installs the default region layout into a session
// that has none after the initial snapshot.
//
// IDs are derived from the seed index, not random, so two participants
// joining an empty session concurrently write identical records and
// last-write-wins converges instead of doubling the layout.
func (e *Engine) seedRegionsIfEmpty() {
	e.mu.Lock()
	if len(e.rep.regions) > 0 {
		e.mu.Unlock()
		return
	}
	now := time.Now()
	seeded := make([]models.Region, 0, len(e.opts.SeedRegions))
	offset := e.opts.BaseOffsetX
	for i, seed := range e.opts.SeedRegions {
		r := models.Region{
			ID:        fmt.Sprintf("region-%d", i+1),
			Title:     seed.Title,
			Color:     seed.Color,
			OffsetX:   offset,
			Width:     e.opts.RegionWidth,
			CreatedAt: now,
		}
		offset += r.Width
		e.rep.regions[r.ID] = r
		seeded = append(seeded, r)
	}
	e.mu.Unlock()

	for _, r := range seeded {
		e.write(models.RegionPath(r.ID), r)
	}
}

// AddRegion appends a region at the right edge of the tiling. Width zero
// uses the configured default.
func (e *Engine) AddRegion(title, color string, width float32) (string, error) {
	if width <= 0 {
		width = e.opts.RegionWidth
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", errors.New("canvas: engine closed")
	}
	offset := e.opts.BaseOffsetX
	for _, r := range e.rep.regions {
		if right := r.OffsetX + r.Width; right > offset {
			offset = right
		}
	}
	r := models.Region{
		ID:        uuid.NewString(),
		Title:     title,
		Color:     color,
		OffsetX:   offset,
		Width:     width,
		CreatedAt: time.Now(),
	}
	e.rep.regions[r.ID] = r
	changedRegions, changedNotes := e.repackLocked()
	e.mu.Unlock()

	e.write(models.RegionPath(r.ID), r)
	e.persistRepack(changedRegions, changedNotes)
	e.notify()
	return r.ID, nil
}

// ResizeRegion changes a region's width and re-packs everything to its
// right.
func (e *Engine) ResizeRegion(regionID string, width float32) error {
	if width <= 0 {
		return fmt.Errorf("canvas: region width must be positive, got %v", width)
	}

	e.mu.Lock()
	r, ok := e.rep.regions[regionID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRegionNotFound, regionID)
	}
	r.Width = width
	e.rep.regions[regionID] = r
	changedRegions, changedNotes := e.repackLocked()
	if _, still := pick(changedRegions, regionID); !still {
		// Width changed but offset did not; the record must persist anyway.
		changedRegions = append(changedRegions, r)
	}
	e.mu.Unlock()

	e.persistRepack(changedRegions, changedNotes)
	e.notify()
	return nil
}

// RenameRegion updates a region's title and color. Offsets are untouched,
// but notes inside it inherit the new color.
func (e *Engine) RenameRegion(regionID, title, color string) error {
	e.mu.Lock()
	r, ok := e.rep.regions[regionID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRegionNotFound, regionID)
	}
	if title != "" {
		r.Title = title
	}
	if color != "" {
		r.Color = color
	}
	e.rep.regions[regionID] = r
	_, changedNotes := e.repackLocked()
	e.mu.Unlock()

	e.persistRepack([]models.Region{r}, changedNotes)
	e.notify()
	return nil
}

// RemoveRegion deletes a region and shifts every region to its right left
// by the removed width. Deleting the last remaining region is forbidden.
//
// The delete and the sibling re-pack are separate last-write-wins writes
// with no transaction; an interruption can leave stale offsets. The
// re-pack is idempotent (offsets are fully recomputed from widths in
// order), so any later region mutation by any participant repairs the
// tiling.
func (e *Engine) RemoveRegion(regionID string) error {
	e.mu.Lock()
	if _, ok := e.rep.regions[regionID]; !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRegionNotFound, regionID)
	}
	if len(e.rep.regions) == 1 {
		e.mu.Unlock()
		return ErrLastRegion
	}
	delete(e.rep.regions, regionID)
	changedRegions, changedNotes := e.repackLocked()
	e.mu.Unlock()

	e.write(models.RegionPath(regionID), nil)
	e.persistRepack(changedRegions, changedNotes)
	e.notify()
	return nil
}

// repackLocked recomputes every region offset from scratch — base offset
// plus the widths of the regions to the left, in the current sorted
// order — and re-derives every note's classification against the new
// tiling. It returns the regions and notes whose records changed and
// must be persisted by this (the mutating) client.
func (e *Engine) repackLocked() ([]models.Region, []models.Note) {
	var changedRegions []models.Region
	offset := e.opts.BaseOffsetX
	for _, r := range e.rep.sortedRegions() {
		if r.OffsetX != offset {
			r.OffsetX = offset
			e.rep.regions[r.ID] = r
			changedRegions = append(changedRegions, r)
		}
		offset += r.Width
	}

	var changedNotes []models.Note
	for id, n := range e.rep.notes {
		reclassified := e.classifyNoteLocked(n)
		if reclassified.ColumnID != n.ColumnID || reclassified.Color != n.Color {
			e.rep.notes[id] = reclassified
			changedNotes = append(changedNotes, reclassified)
		}
	}

	metrics.RegionRepackTotal.Inc()
	return changedRegions, changedNotes
}

// persistRepack writes re-pack results as an ordered sequence: regions
// first so the tiling is authoritative, then reclassified notes.
func (e *Engine) persistRepack(regions []models.Region, notes []models.Note) {
	for _, r := range regions {
		e.write(models.RegionPath(r.ID), r)
	}
	for _, n := range notes {
		e.write(models.NotePath(n.ID), n)
		metrics.ClassifierReassignTotal.Inc()
	}
}

// pick returns the region with the given ID from a slice.
func pick(regions []models.Region, id string) (models.Region, bool) {
	for _, r := range regions {
		if r.ID == id {
			return r, true
		}
	}
	return models.Region{}, false
}
