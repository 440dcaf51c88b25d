package geo

import (
	"testing"

	"github.com/google/uuid"
)

func TestSpatialGridQuery(t *testing.T) {
	g := NewSpatialGrid(0.01)

	near := uuid.New()
	far := uuid.New()
	g.Insert(near, BoundingBox{MinLon: 0.001, MinLat: 0.001, MaxLon: 0.003, MaxLat: 0.003})
	g.Insert(far, BoundingBox{MinLon: 5, MinLat: 5, MaxLon: 5.01, MaxLat: 5.01})

	if g.Len() != 2 {
		t.Fatalf("expected 2 indexed boxes, got %d", g.Len())
	}

	got := g.Query(BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 0.002, MaxLat: 0.002})
	if len(got) != 1 || got[0] != near {
		t.Fatalf("expected only the near box, got %v", got)
	}

	if got := g.Query(BoundingBox{MinLon: 10, MinLat: 10, MaxLon: 11, MaxLat: 11}); len(got) != 0 {
		t.Fatalf("expected no hits far away, got %v", got)
	}
}

func TestSpatialGridDeduplicatesAcrossCells(t *testing.T) {
	g := NewSpatialGrid(0.01)

	// Box spanning multiple cells must come back once.
	id := uuid.New()
	g.Insert(id, BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 0.05, MaxLat: 0.05})

	got := g.Query(BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 0.05, MaxLat: 0.05})
	if len(got) != 1 {
		t.Fatalf("expected 1 dedup'd hit, got %d", len(got))
	}
}

func TestSpatialGridRemove(t *testing.T) {
	g := NewSpatialGrid(0.01)
	id := uuid.New()
	bb := BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 0.002, MaxLat: 0.002}
	g.Insert(id, bb)
	g.Remove(id)

	if g.Len() != 0 {
		t.Fatalf("expected empty grid after remove, got %d", g.Len())
	}
	if got := g.Query(bb); len(got) != 0 {
		t.Fatalf("removed box must not be queryable, got %v", got)
	}
}

func TestSpatialGridReinsertReplaces(t *testing.T) {
	g := NewSpatialGrid(0.01)
	id := uuid.New()
	g.Insert(id, BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 0.002, MaxLat: 0.002})
	g.Insert(id, BoundingBox{MinLon: 1, MinLat: 1, MaxLon: 1.002, MaxLat: 1.002})

	if got := g.Query(BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 0.01, MaxLat: 0.01}); len(got) != 0 {
		t.Fatalf("old location should be gone, got %v", got)
	}
	if got := g.Query(BoundingBox{MinLon: 1, MinLat: 1, MaxLon: 1.01, MaxLat: 1.01}); len(got) != 1 {
		t.Fatalf("new location should hit, got %v", got)
	}
}
