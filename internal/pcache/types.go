package pcache

import (
	"github.com/go-sif/disttable/types"
)

// PointCache is a reference-counted cache for points borrowed from other ranks.
// Referenced entries are never evicted. Unreferenced entries are retained in LRU
// order up to a configured capacity, after which the oldest is evicted.
type PointCache interface {
	// Acquire returns the cached point for id and takes a reference to it, if present
	Acquire(id types.PointID) (types.Point, bool)
	// GetOrFill acquires the cached point for id, calling fill to populate it on a miss.
	// fill takes ownership of the slice it returns.
	GetOrFill(id types.PointID, fill func() ([]float64, error)) (types.Point, error)
	// Release drops a reference taken by Acquire or GetOrFill, returning any points evicted as a result
	Release(id types.PointID) (evicted []types.PointID, err error)
	// RefCount returns the number of outstanding references to id
	RefCount(id types.PointID) int
	// Len returns the number of cached points, referenced or not
	Len() int
	// Purge evicts and returns every unreferenced point
	Purge() []types.PointID
	// Destroy drops every cached point, referenced or not
	Destroy()
}
