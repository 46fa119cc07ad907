package pcache

import (
	"container/list"
	"encoding/binary"
	"fmt"
	"log"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/docker/docker/pkg/locker"
	"github.com/go-sif/disttable/types"
)

// lru is a sharded, reference-counted LRU PointCache
type lru struct {
	config *LRUConfig
	plocks *locker.Locker
	shards []*shard
}

type shard struct {
	lock       sync.Mutex
	capacity   int
	pmap       map[types.PointID]*cachedPoint
	recentList *list.List // unreferenced points only. back is oldest, front is newest
}

type cachedPoint struct {
	id    types.PointID
	value types.Point
	refs  int
	elem  *list.Element // non-nil iff refs == 0
}

// LRUConfig configures an LRU PointCache
type LRUConfig struct {
	// Size is the number of unreferenced points retained. 0 evicts points as soon as they are released
	Size int
	// Shards is the number of independently locked shards
	Shards int
}

// NewLRU produces an LRU PointCache
func NewLRU(config *LRUConfig) PointCache {
	if config.Size < 0 {
		log.Panicf("LRUConfig.Size %d must not be negative", config.Size)
	}
	numShards := config.Shards
	if numShards < 1 {
		numShards = 1
	}
	shards := make([]*shard, numShards)
	for i := range shards {
		capacity := config.Size / numShards
		if i < config.Size%numShards {
			capacity++
		}
		shards[i] = &shard{
			capacity:   capacity,
			pmap:       make(map[types.PointID]*cachedPoint),
			recentList: list.New(),
		}
	}
	return &lru{
		config: config,
		plocks: locker.New(),
		shards: shards,
	}
}

func (c *lru) shardFor(id types.PointID) *shard {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[:4], uint32(id.Owner))
	binary.LittleEndian.PutUint32(buf[4:], uint32(id.Index))
	return c.shards[xxhash.Sum64(buf[:])%uint64(len(c.shards))]
}

func (c *lru) Acquire(id types.PointID) (types.Point, bool) {
	s := c.shardFor(id)
	s.lock.Lock()
	defer s.lock.Unlock()
	cp, ok := s.pmap[id]
	if !ok {
		return nil, false
	}
	if cp.elem != nil {
		s.recentList.Remove(cp.elem)
		cp.elem = nil
	}
	cp.refs++
	return cp.value, true
}

func (c *lru) GetOrFill(id types.PointID, fill func() ([]float64, error)) (types.Point, error) {
	if p, ok := c.Acquire(id); ok {
		return p, nil
	}
	// only one fill per point at a time
	key := id.String()
	c.plocks.Lock(key)
	defer c.plocks.Unlock(key)
	if p, ok := c.Acquire(id); ok {
		return p, nil
	}
	values, err := fill()
	if err != nil {
		return nil, err
	}
	value := types.Point(values[:len(values):len(values)])
	s := c.shardFor(id)
	s.lock.Lock()
	s.pmap[id] = &cachedPoint{id: id, value: value, refs: 1}
	s.lock.Unlock()
	return value, nil
}

func (c *lru) Release(id types.PointID) ([]types.PointID, error) {
	s := c.shardFor(id)
	s.lock.Lock()
	defer s.lock.Unlock()
	cp, ok := s.pmap[id]
	if !ok || cp.refs == 0 {
		return nil, fmt.Errorf("Point %s is not referenced", id)
	}
	cp.refs--
	if cp.refs > 0 {
		return nil, nil
	}
	cp.elem = s.recentList.PushFront(cp)
	return s.trim(s.capacity), nil
}

// trim evicts the oldest unreferenced points until at most capacity remain. Requires s.lock.
func (s *shard) trim(capacity int) []types.PointID {
	var evicted []types.PointID
	for s.recentList.Len() > capacity {
		oldest := s.recentList.Back()
		cp := oldest.Value.(*cachedPoint)
		s.recentList.Remove(oldest)
		delete(s.pmap, cp.id)
		evicted = append(evicted, cp.id)
	}
	return evicted
}

func (c *lru) RefCount(id types.PointID) int {
	s := c.shardFor(id)
	s.lock.Lock()
	defer s.lock.Unlock()
	if cp, ok := s.pmap[id]; ok {
		return cp.refs
	}
	return 0
}

func (c *lru) Len() int {
	total := 0
	for _, s := range c.shards {
		s.lock.Lock()
		total += len(s.pmap)
		s.lock.Unlock()
	}
	return total
}

func (c *lru) Purge() []types.PointID {
	var evicted []types.PointID
	for _, s := range c.shards {
		s.lock.Lock()
		evicted = append(evicted, s.trim(0)...)
		s.lock.Unlock()
	}
	return evicted
}

func (c *lru) Destroy() {
	for _, s := range c.shards {
		s.lock.Lock()
		s.pmap = make(map[types.PointID]*cachedPoint)
		s.recentList.Init()
		s.lock.Unlock()
	}
}
