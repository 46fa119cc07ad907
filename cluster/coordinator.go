package cluster

import (
	"context"
	"fmt"
	"sync"

	pb "github.com/go-sif/disttable/internal/rpc"
)

// rendezvous is a reusable collective which completes once every rank of the group has
// joined the current round. Rank 0 hosts one for all-gathers and one for barriers.
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
	peers  []*pb.MPeerDescriptor
	done   chan struct{}
}

func createRendezvous(size int) *rendezvous {
	return &rendezvous{size: size}
}

// join contributes value (and the address of rank) to the current round, and blocks until
// every rank has contributed. A rank which joins twice in the same round, e.g. because it
// retried a call whose response was lost, replaces its earlier contribution. A rank whose
// ctx ends before the round completes withdraws its contribution.
func (r *rendezvous) join(ctx context.Context, rank int, value int32, peer *pb.MPeerDescriptor) (*round, error) {
	if rank < 0 || rank >= r.size {
		return nil, fmt.Errorf("Rank %d is not part of a group of %d", rank, r.size)
	}
	r.lock.Lock()
	if r.round == nil {
		r.round = &round{
			joined: make([]bool, r.size),
			values: make([]int32, r.size),
			peers:  make([]*pb.MPeerDescriptor, r.size),
			done:   make(chan struct{}),
		}
	}
	current := r.round
	if !current.joined[rank] {
		current.joined[rank] = true
		current.count++
	}
	current.values[rank] = value
	current.peers[rank] = peer
	if current.count == r.size {
		// start a fresh round for the next collective
		r.round = nil
		close(current.done)
	}
	r.lock.Unlock()
	select {
	case <-current.done:
		return current, nil
	case <-ctx.Done():
		r.lock.Lock()
		defer r.lock.Unlock()
		if r.round != current {
			// the round completed while we were giving up
			return current, nil
		}
		current.joined[rank] = false
		current.count--
		current.values[rank] = 0
		current.peers[rank] = nil
		return nil, ctx.Err()
	}
}
