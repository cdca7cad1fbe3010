package arbor

import (
	"math"
	"slices"
)

// DefaultCellSize is the spatial grid cell edge in pixels.
const DefaultCellSize = 256

// Boxes covering more cells than this live in a flat list checked by every
// query instead of being stamped into each cell.
const maxCellsPerEntry = 64

type cellKey struct {
	x, y int32
}

type spatialEntry struct {
	box      BoundingBox
	min, max cellKey
	oversize bool
}

// spatialGrid is a uniform grid hash over the XY plane mapping node ids to
// their global bounds.
type spatialGrid struct {
	cellSize float64
	cells    map[cellKey][]NodeID
	entries  map[NodeID]spatialEntry
	oversize []NodeID
}

func newSpatialGrid(cellSize float64) *spatialGrid {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &spatialGrid{
		cellSize: cellSize,
		cells:    make(map[cellKey][]NodeID),
		entries:  make(map[NodeID]spatialEntry),
	}
}

func (g *spatialGrid) cellOf(x, y float64) cellKey {
	return cellKey{
		x: clampCell(math.Floor(x / g.cellSize)),
		y: clampCell(math.Floor(y / g.cellSize)),
	}
}

func clampCell(v float64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 || math.IsNaN(v) {
		return math.MinInt32
	}
	return int32(v)
}

// cellSpan counts the cells between lo and hi. Ranges touching the int32
// limit report MaxInt64 so callers fall back to a flat scan.
func cellSpan(lo, hi cellKey) int64 {
	if hi.x == math.MaxInt32 || hi.y == math.MaxInt32 {
		return math.MaxInt64
	}
	return (int64(hi.x) - int64(lo.x) + 1) * (int64(hi.y) - int64(lo.y) + 1)
}

// insert stores or replaces the bounds for id.
func (g *spatialGrid) insert(id NodeID, box BoundingBox) {
	g.remove(id)
	e := spatialEntry{
		box: box,
		min: g.cellOf(box.Min[0], box.Min[1]),
		max: g.cellOf(box.Max[0], box.Max[1]),
	}
	if cellSpan(e.min, e.max) > maxCellsPerEntry {
		e.oversize = true
		g.oversize = append(g.oversize, id)
	} else {
		for x := e.min.x; x <= e.max.x; x++ {
			for y := e.min.y; y <= e.max.y; y++ {
				k := cellKey{x, y}
				g.cells[k] = append(g.cells[k], id)
			}
		}
	}
	g.entries[id] = e
}

func (g *spatialGrid) remove(id NodeID) {
	e, ok := g.entries[id]
	if !ok {
		return
	}
	delete(g.entries, id)
	if e.oversize {
		g.oversize = removeID(g.oversize, id)
		return
	}
	for x := e.min.x; x <= e.max.x; x++ {
		for y := e.min.y; y <= e.max.y; y++ {
			k := cellKey{x, y}
			ids := removeID(g.cells[k], id)
			if len(ids) == 0 {
				delete(g.cells, k)
			} else {
				g.cells[k] = ids
			}
		}
	}
}

func (g *spatialGrid) bounds(id NodeID) (BoundingBox, bool) {
	e, ok := g.entries[id]
	return e.box, ok
}

func (g *spatialGrid) len() int {
	return len(g.entries)
}

// queryPoint returns ids whose bounds contain (x, y), ascending.
func (g *spatialGrid) queryPoint(x, y float64) []NodeID {
	var out []NodeID
	for _, id := range g.cells[g.cellOf(x, y)] {
		if g.entries[id].box.ContainsXY(x, y) {
			out = append(out, id)
		}
	}
	for _, id := range g.oversize {
		if g.entries[id].box.ContainsXY(x, y) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// queryRegion returns ids whose bounds intersect box on the XY plane,
// ascending.
func (g *spatialGrid) queryRegion(box BoundingBox) []NodeID {
	var out []NodeID
	lo := g.cellOf(box.Min[0], box.Min[1])
	hi := g.cellOf(box.Max[0], box.Max[1])
	if cellSpan(lo, hi) > int64(len(g.entries)) {
		for id, e := range g.entries {
			if e.box.IntersectsXY(box) {
				out = append(out, id)
			}
		}
		slices.Sort(out)
		return out
	}
	seen := make(map[NodeID]struct{})
	for x := lo.x; x <= hi.x; x++ {
		for y := lo.y; y <= hi.y; y++ {
			for _, id := range g.cells[cellKey{x, y}] {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				if g.entries[id].box.IntersectsXY(box) {
					out = append(out, id)
				}
			}
		}
	}
	for _, id := range g.oversize {
		if g.entries[id].box.IntersectsXY(box) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

func removeID(s []NodeID, id NodeID) []NodeID {
	for i := range s {
		if s[i] == id {
			copy(s[i:], s[i+1:])
			return s[:len(s)-1]
		}
	}
	return s
}
