// Package inbox answers point requests addressed to this rank. Requests are queued by the
// transport and served one at a time by a dedicated goroutine, so a rank keeps serving its
// peers while its own computation is blocked waiting on them.
package inbox

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-sif/disttable/errors"
	"github.com/go-sif/disttable/internal/partition"
	"github.com/go-sif/disttable/internal/pcache"
	"github.com/go-sif/disttable/internal/stats"
	"github.com/go-sif/disttable/logging"
	"github.com/go-sif/disttable/types"
)

// State describes what the service loop of an Inbox is doing
type State int32

const (
	// Idle indicates the Inbox is waiting for requests
	Idle State = iota
	// Serving indicates the Inbox is answering a request
	Serving
	// Stopped indicates the Inbox no longer accepts requests
	Stopped
)

// String returns a textual representation of this State
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Serving:
		return "serving"
	default:
		return "stopped"
	}
}

// ErrStopped is the cause of the TransportError returned for requests arriving after Stop
var ErrStopped = fmt.Errorf("Inbox has been stopped")

// Config configures an Inbox
type Config struct {
	Rank      int
	QueueSize int
	// Received configures the receive buffer this Inbox owns
	Received *pcache.LRUConfig
	Stats    *stats.TableStatistics
	Logger   logging.Logger
}

// servingKey identifies a point served to one requester
type servingKey struct {
	requester int32
	index     int32
}

type job struct {
	request *types.PointRequest
	release *types.ReleaseRequest
	result  chan result
}

type result struct {
	reply *types.PointReply
	err   error
}

// Inbox serves the points of a Partition to other ranks, implementing types.MailboxHandler
type Inbox struct {
	state     int32 // State, accessed atomically
	started   int32
	rank      int
	partition *partition.Partition
	received  pcache.PointCache
	stats     *stats.TableStatistics
	logger    logging.Logger
	queue     chan *job
	stopLock  sync.RWMutex
	stopped   bool
	done      chan struct{}
	// serving is only accessed by the service loop
	serving map[servingKey]types.Point
}

// New creates an Inbox serving the points of part. Its service loop must be started
// with Start or Run.
func New(part *partition.Partition, config *Config) *Inbox {
	logger := config.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	receivedConfig := config.Received
	if receivedConfig == nil {
		receivedConfig = &pcache.LRUConfig{}
	}
	ts := config.Stats
	if ts == nil {
		ts, _ = stats.New(config.Rank, nil)
	}
	return &Inbox{
		rank:      config.Rank,
		partition: part,
		received:  pcache.NewLRU(receivedConfig),
		stats:     ts,
		logger:    logger,
		queue:     make(chan *job, config.QueueSize),
		done:      make(chan struct{}),
		serving:   make(map[servingKey]types.Point),
	}
}

// Received returns the receive buffer owned by this Inbox, which holds points borrowed from other ranks
func (i *Inbox) Received() pcache.PointCache {
	return i.received
}

// State returns the current State of the service loop
func (i *Inbox) State() State {
	return State(atomic.LoadInt32(&i.state))
}

// Start runs the service loop in a new goroutine. Subsequent calls have no effect.
func (i *Inbox) Start() {
	if atomic.CompareAndSwapInt32(&i.started, 0, 1) {
		go i.loop()
	}
}

// Run runs the service loop on the calling goroutine until the Inbox is stopped
func (i *Inbox) Run() error {
	if !atomic.CompareAndSwapInt32(&i.started, 0, 1) {
		return errors.DuplicateInitError{What: "Inbox service loop"}
	}
	i.loop()
	return nil
}

func (i *Inbox) loop() {
	defer close(i.done)
	for j := range i.queue {
		atomic.StoreInt32(&i.state, int32(Serving))
		if j.request != nil {
			reply, err := i.serve(j.request)
			j.result <- result{reply: reply, err: err}
		} else {
			i.release(j.release)
			j.result <- result{}
		}
		atomic.StoreInt32(&i.state, int32(Idle))
	}
	atomic.StoreInt32(&i.state, int32(Stopped))
}

func (i *Inbox) serve(req *types.PointRequest) (*types.PointReply, error) {
	key := servingKey{requester: req.RequesterRank, index: req.PointID}
	values, hit := i.serving[key]
	if !hit {
		p, err := i.partition.Get(int(req.PointID))
		if err != nil {
			i.logger.Log(logging.WarnLevel, "Rank %d requested unknown point %d: %v", req.RequesterRank, req.PointID, err)
			return nil, err
		}
		values = p.Copy()
		i.serving[key] = values
	}
	i.stats.RecordServed(hit)
	return &types.PointReply{
		OwnerRank: int32(i.rank),
		PointID:   req.PointID,
		RequestID: req.RequestID,
		Values:    values,
	}, nil
}

func (i *Inbox) release(req *types.ReleaseRequest) {
	delete(i.serving, servingKey{requester: req.RequesterRank, index: req.PointID})
	i.stats.RecordReleaseServed()
}

// enqueue hands a job to the service loop and waits for its result
func (i *Inbox) enqueue(ctx context.Context, op string, requester int32, j *job) (*types.PointReply, error) {
	i.stopLock.RLock()
	if i.stopped {
		i.stopLock.RUnlock()
		return nil, &errors.TransportError{Op: op, Rank: int(requester), Err: ErrStopped}
	}
	select {
	case i.queue <- j:
	case <-ctx.Done():
		i.stopLock.RUnlock()
		return nil, ctx.Err()
	}
	i.stopLock.RUnlock()
	select {
	case res := <-j.result:
		return res.reply, res.err
	case <-ctx.Done():
		// the buffered result channel lets the loop move on without us
		return nil, ctx.Err()
	}
}

// HandlePointRequest queues a point request and blocks until it has been served
func (i *Inbox) HandlePointRequest(ctx context.Context, req *types.PointRequest) (*types.PointReply, error) {
	return i.enqueue(ctx, "serve", req.RequesterRank, &job{request: req, result: make(chan result, 1)})
}

// HandleRelease drops a point served to a requester from the serving buffer
func (i *Inbox) HandleRelease(ctx context.Context, req *types.ReleaseRequest) error {
	_, err := i.enqueue(ctx, "release", req.RequesterRank, &job{release: req, result: make(chan result, 1)})
	return err
}

// Stop refuses new requests, answers every request already queued and waits for the
// service loop to exit
func (i *Inbox) Stop(ctx context.Context) error {
	i.stopLock.Lock()
	if !i.stopped {
		i.stopped = true
		close(i.queue)
	}
	i.stopLock.Unlock()
	// drain on this goroutine if the loop was never started
	if atomic.CompareAndSwapInt32(&i.started, 0, 1) {
		i.loop()
	}
	select {
	case <-i.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	i.received.Destroy()
	i.logger.Log(logging.DebugLevel, "Rank %d inbox stopped", i.rank)
	return nil
}

// ServingLen returns the number of points held in the serving buffer. It must not be
// called while the service loop is running.
func (i *Inbox) ServingLen() int {
	return len(i.serving)
}
