// Package outbox reads points on behalf of the local computation, answering from the local
// partition, the receive buffer or shared memory where it can and requesting the rest from
// their owners.
package outbox

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-sif/disttable/errors"
	"github.com/go-sif/disttable/internal/directory"
	"github.com/go-sif/disttable/internal/partition"
	"github.com/go-sif/disttable/internal/pcache"
	"github.com/go-sif/disttable/internal/shm"
	"github.com/go-sif/disttable/internal/stats"
	"github.com/go-sif/disttable/logging"
	"github.com/go-sif/disttable/types"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Config configures an Outbox
type Config struct {
	// MaxOutstandingPerOwner bounds the number of requests in flight to any one owner.
	// 1 serializes requests to each owner.
	MaxOutstandingPerOwner int64
	// RequestRateLimit caps outbound requests per second. 0 disables the limit.
	RequestRateLimit float64
	// SharedMemoryDir is where peers publish shared-memory segments. Empty disables the fast path.
	SharedMemoryDir string
	Stats           *stats.TableStatistics
	Logger          logging.Logger
}

// Outbox retrieves points for the local computation. It never answers requests from
// other ranks; that is the job of the Inbox.
type Outbox struct {
	nextRequestID uint64 // accessed atomically, first for 64-bit alignment
	rank          int
	comm          types.Communicator
	partition     *partition.Partition
	directory     *directory.Directory
	received      pcache.PointCache
	requests      singleflight.Group
	requestCtx    context.Context // shared by merged requests, cancelled by Close
	cancel        context.CancelFunc
	owners        []*semaphore.Weighted
	limiter       *rate.Limiter
	shmDir        string
	segLock       sync.Mutex
	segments      map[int]*shm.Segment // a nil entry records a failed attach
	stats         *stats.TableStatistics
	logger        logging.Logger
}

// New creates an Outbox for the rank of comm. received is the receive buffer owned by this rank's Inbox.
func New(comm types.Communicator, part *partition.Partition, dir *directory.Directory, received pcache.PointCache, config *Config) *Outbox {
	maxOutstanding := config.MaxOutstandingPerOwner
	if maxOutstanding < 1 {
		maxOutstanding = 1
	}
	owners := make([]*semaphore.Weighted, dir.Size())
	for i := range owners {
		owners[i] = semaphore.NewWeighted(maxOutstanding)
	}
	var limiter *rate.Limiter
	if config.RequestRateLimit > 0 {
		burst := int(math.Ceil(config.RequestRateLimit))
		limiter = rate.NewLimiter(rate.Limit(config.RequestRateLimit), burst)
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	ts := config.Stats
	if ts == nil {
		ts, _ = stats.New(comm.Rank(), nil)
	}
	requestCtx, cancel := context.WithCancel(context.Background())
	return &Outbox{
		requestCtx: requestCtx,
		cancel:     cancel,
		rank:       comm.Rank(),
		comm:       comm,
		partition:  part,
		directory:  dir,
		received:   received,
		owners:     owners,
		limiter:    limiter,
		shmDir:     config.SharedMemoryDir,
		segments:   make(map[int]*shm.Segment),
		stats:      ts,
		logger:     logger,
	}
}

func (o *Outbox) validate(owner int, index int) error {
	count, err := o.directory.At(owner)
	if err != nil {
		return err
	}
	if index < 0 || index >= count {
		return errors.OutOfRangeError{Index: index, Size: count}
	}
	return nil
}

// Get returns the point at index within the partition of owner. Points owned by other
// ranks stay referenced in the receive buffer until they are passed to Release.
func (o *Outbox) Get(ctx context.Context, owner int, index int) (types.Point, error) {
	if err := o.validate(owner, index); err != nil {
		return nil, err
	}
	if owner == o.rank {
		o.stats.RecordLocalGet()
		return o.partition.Get(index)
	}
	id := types.PointID{Owner: int32(owner), Index: int32(index)}
	if p, ok := o.received.Acquire(id); ok {
		o.stats.RecordCacheHit()
		return p, nil
	}
	if seg := o.segment(owner); seg != nil {
		p, err := o.received.GetOrFill(id, func() ([]float64, error) {
			return seg.Read(index)
		})
		if err != nil {
			return nil, err
		}
		o.stats.RecordShmHit()
		return p, nil
	}
	// concurrent misses on the same point share one request, which outlives any one caller
	res := o.requests.DoChan(id.String(), func() (interface{}, error) {
		return o.request(o.requestCtx, owner, index)
	})
	select {
	case r := <-res:
		if r.Err != nil {
			return nil, r.Err
		}
		return o.received.GetOrFill(id, func() ([]float64, error) {
			return r.Val.([]float64), nil
		})
	case <-ctx.Done():
		return nil, &errors.TransportError{Op: "request", Rank: owner, Err: ctx.Err()}
	}
}

// request sends one PointRequest to owner and validates the reply
func (o *Outbox) request(ctx context.Context, owner int, index int) ([]float64, error) {
	sem := o.owners[owner]
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, &errors.TransportError{Op: "request", Rank: owner, Err: err}
	}
	defer sem.Release(1)
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, &errors.TransportError{Op: "request", Rank: owner, Err: err}
		}
	}
	req := &types.PointRequest{
		RequesterRank: int32(o.rank),
		PointID:       int32(index),
		RequestID:     atomic.AddUint64(&o.nextRequestID, 1),
	}
	start := time.Now()
	reply, err := o.comm.RequestPoint(ctx, owner, req)
	if err != nil {
		return nil, asTransportError("request", owner, err)
	}
	o.stats.RecordRequest(time.Since(start))
	if reply.RequestID != req.RequestID || reply.PointID != req.PointID || int(reply.OwnerRank) != owner {
		err := fmt.Errorf("Reply for point %d#%d from rank %d does not match request for point %d#%d",
			reply.PointID, reply.RequestID, reply.OwnerRank, req.PointID, req.RequestID)
		return nil, &errors.TransportError{Op: "request", Rank: owner, Err: err}
	}
	if len(reply.Values) != o.partition.NAttributes() {
		err := fmt.Errorf("Reply for point %d carries %d attributes, expected %d", reply.PointID, len(reply.Values), o.partition.NAttributes())
		return nil, &errors.TransportError{Op: "request", Rank: owner, Err: err}
	}
	return reply.Values, nil
}

// Release returns a point obtained from Get. Points evicted from the receive buffer as a
// result are released at their owners.
func (o *Outbox) Release(ctx context.Context, owner int, index int) error {
	if err := o.validate(owner, index); err != nil {
		return err
	}
	if owner == o.rank {
		return nil
	}
	evicted, err := o.received.Release(types.PointID{Owner: int32(owner), Index: int32(index)})
	if err != nil {
		return err
	}
	return o.releaseAtOwners(ctx, evicted)
}

// releaseAtOwners informs owners that their points were evicted from the receive buffer
func (o *Outbox) releaseAtOwners(ctx context.Context, evicted []types.PointID) error {
	for _, id := range evicted {
		owner := int(id.Owner)
		if o.hasSegment(owner) {
			// never served by the owner's inbox
			continue
		}
		err := o.comm.ReleasePoint(ctx, owner, &types.ReleaseRequest{RequesterRank: int32(o.rank), PointID: id.Index})
		if err != nil {
			return asTransportError("release", owner, err)
		}
		o.stats.RecordReleaseSent()
	}
	return nil
}

// Purge evicts every unreferenced point from the receive buffer, releasing them at their owners
func (o *Outbox) Purge(ctx context.Context) error {
	return o.releaseAtOwners(ctx, o.received.Purge())
}

// segment returns the attached shared-memory segment of owner, attaching it on first use
func (o *Outbox) segment(owner int) *shm.Segment {
	if o.shmDir == "" {
		return nil
	}
	o.segLock.Lock()
	defer o.segLock.Unlock()
	if seg, ok := o.segments[owner]; ok {
		return seg
	}
	seg, err := shm.Attach(o.shmDir, owner)
	if err != nil {
		o.logger.Log(logging.DebugLevel, "No shared-memory segment for rank %d: %v", owner, err)
		seg = nil
	} else if count, _ := o.directory.At(owner); seg.NEntries() != count || seg.NAttributes() != o.partition.NAttributes() {
		o.logger.Log(logging.WarnLevel, "Ignoring shared-memory segment of rank %d: %d x %d points, expected %d x %d",
			owner, seg.NEntries(), seg.NAttributes(), count, o.partition.NAttributes())
		seg.Close()
		seg = nil
	}
	o.segments[owner] = seg
	return seg
}

func (o *Outbox) hasSegment(owner int) bool {
	if o.shmDir == "" {
		return false
	}
	o.segLock.Lock()
	defer o.segLock.Unlock()
	return o.segments[owner] != nil
}

// Close abandons outstanding requests and detaches every shared-memory segment
func (o *Outbox) Close() error {
	o.cancel()
	o.segLock.Lock()
	defer o.segLock.Unlock()
	var errs *multierror.Error
	for owner, seg := range o.segments {
		if seg != nil {
			if err := seg.Close(); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("Unable to detach segment of rank %d: %w", owner, err))
			}
		}
		delete(o.segments, owner)
	}
	return errs.ErrorOrNil()
}

func asTransportError(op string, rank int, err error) error {
	if te, ok := err.(*errors.TransportError); ok {
		return te
	}
	return &errors.TransportError{Op: op, Rank: rank, Err: err}
}
