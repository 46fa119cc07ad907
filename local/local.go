// Package local provides an in-process Communicator, connecting a group of ranks which all live
// in the same process through channels. It is useful for simulating a worker group and for
// testing code written against types.Communicator.
package local

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-sif/disttable/types"
)

const inboundBufferSize = 1024

// World is a group of in-process ranks
type World struct {
	comms   []*Comm
	gather  *rendezvous
	barrier *rendezvous
}

// NewWorld creates a World of size ranks
func NewWorld(size int) *World {
	if size <= 0 {
		panic(fmt.Sprintf("World size must be positive, got %d", size))
	}
	w := &World{
		comms:   make([]*Comm, size),
		gather:  &rendezvous{size: size},
		barrier: &rendezvous{size: size},
	}
	for i := range w.comms {
		w.comms[i] = &Comm{
			world:   w,
			rank:    i,
			inbound: make(chan *envelope, inboundBufferSize),
			done:    make(chan struct{}),
		}
	}
	return w
}

// Size returns the number of ranks in this World
func (w *World) Size() int {
	return len(w.comms)
}

// Comm returns the Communicator for rank
func (w *World) Comm(rank int) *Comm {
	return w.comms[rank]
}

// Close closes every Communicator in this World
func (w *World) Close() {
	for _, c := range w.comms {
		c.Close()
	}
}

// envelope is a message in flight to a rank, with the channel its answer travels back on
type envelope struct {
	ctx     context.Context
	request *types.PointRequest
	release *types.ReleaseRequest
	reply   chan *types.PointReply
	err     chan error
}

// Comm is one rank's view of a World, implementing types.Communicator
type Comm struct {
	requestsSent int64 // first, for 64-bit atomic alignment
	releasesSent int64
	world        *World
	rank         int
	inbound      chan *envelope
	handler      types.MailboxHandler
	serveOnce    sync.Once
	closeOnce    sync.Once
	done         chan struct{}
	dispatchWg   sync.WaitGroup
}

// Rank returns the rank of this Comm
func (c *Comm) Rank() int {
	return c.rank
}

// Size returns the number of ranks in the World
func (c *Comm) Size() int {
	return len(c.world.comms)
}

// Serve starts delivering inbound messages to handler, in the order they were sent
func (c *Comm) Serve(handler types.MailboxHandler) error {
	started := false
	c.serveOnce.Do(func() {
		started = true
		c.handler = handler
		c.dispatchWg.Add(1)
		go c.dispatch()
	})
	if !started {
		return fmt.Errorf("Rank %d is already serving", c.rank)
	}
	return nil
}

func (c *Comm) dispatch() {
	defer c.dispatchWg.Done()
	for {
		select {
		case <-c.done:
			return
		case env := <-c.inbound:
			if env.request != nil {
				reply, err := c.handler.HandlePointRequest(env.ctx, env.request)
				if err != nil {
					env.err <- err
				} else {
					env.reply <- reply
				}
			} else {
				env.err <- c.handler.HandleRelease(env.ctx, env.release)
			}
		}
	}
}

func (c *Comm) target(owner int) (*Comm, error) {
	if owner < 0 || owner >= len(c.world.comms) {
		return nil, fmt.Errorf("Rank %d is not a member of this World of size %d", owner, len(c.world.comms))
	}
	return c.world.comms[owner], nil
}

func (c *Comm) send(ctx context.Context, owner int, env *envelope) error {
	select {
	case <-c.done:
		return fmt.Errorf("Rank %d is closed", c.rank)
	default:
	}
	target, err := c.target(owner)
	if err != nil {
		return err
	}
	select {
	case target.inbound <- env:
		return nil
	case <-target.done:
		return fmt.Errorf("Rank %d is closed", owner)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestPoint sends req to owner and blocks until it answers
func (c *Comm) RequestPoint(ctx context.Context, owner int, req *types.PointRequest) (*types.PointReply, error) {
	env := &envelope{
		ctx:     ctx,
		request: req,
		reply:   make(chan *types.PointReply, 1),
		err:     make(chan error, 1),
	}
	if err := c.send(ctx, owner, env); err != nil {
		return nil, err
	}
	atomic.AddInt64(&c.requestsSent, 1)
	target := c.world.comms[owner]
	select {
	case reply := <-env.reply:
		return reply, nil
	case err := <-env.err:
		return nil, err
	case <-target.done:
		return nil, fmt.Errorf("Rank %d closed before replying", owner)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ReleasePoint sends an administrative release to owner and waits for it to be processed
func (c *Comm) ReleasePoint(ctx context.Context, owner int, req *types.ReleaseRequest) error {
	env := &envelope{
		ctx:     ctx,
		release: req,
		err:     make(chan error, 1),
	}
	if err := c.send(ctx, owner, env); err != nil {
		return err
	}
	atomic.AddInt64(&c.releasesSent, 1)
	target := c.world.comms[owner]
	select {
	case err := <-env.err:
		return err
	case <-target.done:
		return fmt.Errorf("Rank %d closed before processing release", owner)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AllGather exchanges one value per rank
func (c *Comm) AllGather(ctx context.Context, value int32) ([]int32, error) {
	return c.world.gather.join(ctx, c.rank, value)
}

// Barrier blocks until every rank has called Barrier
func (c *Comm) Barrier(ctx context.Context) error {
	_, err := c.world.barrier.join(ctx, c.rank, 0)
	return err
}

// RequestsSent returns the number of point requests this rank has sent
func (c *Comm) RequestsSent() int64 {
	return atomic.LoadInt64(&c.requestsSent)
}

// ReleasesSent returns the number of releases this rank has sent
func (c *Comm) ReleasesSent() int64 {
	return atomic.LoadInt64(&c.releasesSent)
}

// Close stops delivering messages to this rank
func (c *Comm) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	c.dispatchWg.Wait()
	return nil
}

// rendezvous is a reusable collective which completes once every rank has joined
type rendezvous struct {
	lock  sync.Mutex
	size  int
	round *round
}

// round is one instance of a collective
type round struct {
	joined []bool
	count  int
	values []int32
	done   chan struct{}
}

// join contributes value to the current round and blocks until every rank has joined.
// Joining twice in one round replaces the earlier value, and a rank whose ctx ends before
// the round completes withdraws its value.
func (r *rendezvous) join(ctx context.Context, rank int, value int32) ([]int32, error) {
	r.lock.Lock()
	if r.round == nil {
		r.round = &round{
			joined: make([]bool, r.size),
			values: make([]int32, r.size),
			done:   make(chan struct{}),
		}
	}
	current := r.round
	if !current.joined[rank] {
		current.joined[rank] = true
		current.count++
	}
	current.values[rank] = value
	if current.count == r.size {
		// start a fresh round for the next collective
		r.round = nil
		close(current.done)
	}
	r.lock.Unlock()
	select {
	case <-current.done:
		return current.result(), nil
	case <-ctx.Done():
		r.lock.Lock()
		defer r.lock.Unlock()
		if r.round != current {
			return current.result(), nil
		}
		current.joined[rank] = false
		current.count--
		current.values[rank] = 0
		return nil, ctx.Err()
	}
}

func (r *round) result() []int32 {
	res := make([]int32, len(r.values))
	copy(res, r.values)
	return res
}
