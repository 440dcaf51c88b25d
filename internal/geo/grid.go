package geo

import (
	"sync"

	"github.com/google/uuid"
)

// SpatialGrid is a cell-hash index over bounding boxes, used to find segments
// near a track without scanning every segment. Cells are keyed by quantized
// lon/lat; each box is registered in every cell it touches.
type SpatialGrid struct {
	mu      sync.RWMutex
	cellDeg float64
	cells   map[cellKey][]uuid.UUID
	boxes   map[uuid.UUID]BoundingBox
}

type cellKey struct {
	x, y int
}

// NewSpatialGrid builds a grid with the given cell size in degrees. A cell
// size around 0.01 (roughly 1 km) keeps candidate lists short for trail-sized
// segments.
func NewSpatialGrid(cellDeg float64) *SpatialGrid {
	if cellDeg <= 0 {
		cellDeg = 0.01
	}
	return &SpatialGrid{
		cellDeg: cellDeg,
		cells:   map[cellKey][]uuid.UUID{},
		boxes:   map[uuid.UUID]BoundingBox{},
	}
}

func (g *SpatialGrid) key(lon, lat float64) cellKey {
	return cellKey{
		x: int(lon / g.cellDeg),
		y: int(lat / g.cellDeg),
	}
}

// Insert registers (or re-registers) id with the given bounding box.
func (g *SpatialGrid) Insert(id uuid.UUID, bb BoundingBox) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.boxes[id]; ok {
		g.removeLocked(id)
	}
	g.boxes[id] = bb
	lo := g.key(bb.MinLon, bb.MinLat)
	hi := g.key(bb.MaxLon, bb.MaxLat)
	for x := lo.x; x <= hi.x; x++ {
		for y := lo.y; y <= hi.y; y++ {
			k := cellKey{x, y}
			g.cells[k] = append(g.cells[k], id)
		}
	}
}

// Remove drops id from the index. Unknown ids are a no-op.
func (g *SpatialGrid) Remove(id uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeLocked(id)
}

func (g *SpatialGrid) removeLocked(id uuid.UUID) {
	bb, ok := g.boxes[id]
	if !ok {
		return
	}
	delete(g.boxes, id)
	lo := g.key(bb.MinLon, bb.MinLat)
	hi := g.key(bb.MaxLon, bb.MaxLat)
	for x := lo.x; x <= hi.x; x++ {
		for y := lo.y; y <= hi.y; y++ {
			k := cellKey{x, y}
			ids := g.cells[k]
			for i, v := range ids {
				if v == id {
					g.cells[k] = append(ids[:i], ids[i+1:]...)
					break
				}
			}
			if len(g.cells[k]) == 0 {
				delete(g.cells, k)
			}
		}
	}
}

// Query returns the deduplicated ids whose boxes intersect bb.
func (g *SpatialGrid) Query(bb BoundingBox) []uuid.UUID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	seen := map[uuid.UUID]struct{}{}
	var out []uuid.UUID
	lo := g.key(bb.MinLon, bb.MinLat)
	hi := g.key(bb.MaxLon, bb.MaxLat)
	for x := lo.x; x <= hi.x; x++ {
		for y := lo.y; y <= hi.y; y++ {
			for _, id := range g.cells[cellKey{x, y}] {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				if g.boxes[id].Intersects(bb) {
					out = append(out, id)
				}
			}
		}
	}
	return out
}

// Len reports the number of indexed boxes.
func (g *SpatialGrid) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.boxes)
}
