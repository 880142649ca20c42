// Package spatial indexes site coordinates in an R-tree so map surfaces can ask for the
// sites inside the current viewport without scanning the whole city.
package spatial

import (
	"fmt"

	"github.com/dhconnelly/rtreego"

	"github.com/yanqian/chargemap/internal/domain/site"
)

const (
	dimensions  = 2
	minChildren = 25
	maxChildren = 50
	// tolerance turns a point into a tiny rectangle, in degrees.
	tolerance = 1e-7
)

type entry struct {
	id   string
	lat  float64
	lng  float64
	rect rtreego.Rect
}

func (e *entry) Bounds() rtreego.Rect {
	return e.rect
}

// Index is an immutable R-tree over one city's sites. It is safe for concurrent reads.
type Index struct {
	tree *rtreego.Rtree
}

// NewIndex bulk-loads the sites. Coordinates are stored as (lat, lng).
func NewIndex(sites []site.Site) *Index {
	objs := make([]rtreego.Spatial, 0, len(sites))
	for _, s := range sites {
		objs = append(objs, &entry{
			id:   s.ID,
			lat:  s.Lat,
			lng:  s.Lng,
			rect: rtreego.Point{s.Lat, s.Lng}.ToRect(tolerance),
		})
	}
	return &Index{tree: rtreego.NewTree(dimensions, minChildren, maxChildren, objs...)}
}

// Size is the number of indexed sites.
func (i *Index) Size() int {
	return i.tree.Size()
}

// Within returns the ids of the sites inside box, edges included.
func (i *Index) Within(box site.BoundingBox) (map[string]struct{}, error) {
	if box.South > box.North || box.West > box.East {
		return nil, site.InvalidArgumentError(fmt.Sprintf("viewport is inverted: %+v", box))
	}
	rect, err := rtreego.NewRectFromPoints(
		rtreego.Point{box.South - tolerance, box.West - tolerance},
		rtreego.Point{box.North + tolerance, box.East + tolerance},
	)
	if err != nil {
		return nil, site.InvalidArgumentError(fmt.Sprintf("invalid viewport: %v", err))
	}

	hits := i.tree.SearchIntersect(rect)
	out := make(map[string]struct{}, len(hits))
	for _, hit := range hits {
		e, ok := hit.(*entry)
		if !ok {
			continue
		}
		if box.Contains(e.lat, e.lng) {
			out[e.id] = struct{}{}
		}
	}
	return out, nil
}

// Nearest returns the id of the site closest to the point, or false on an empty index.
func (i *Index) Nearest(lat, lng float64) (string, bool) {
	if i.tree.Size() == 0 {
		return "", false
	}
	hit := i.tree.NearestNeighbor(rtreego.Point{lat, lng})
	e, ok := hit.(*entry)
	if !ok {
		return "", false
	}
	return e.id, true
}
