package cluster

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-sif/disttable/errors"
	pb "github.com/go-sif/disttable/internal/rpc"
	"github.com/go-sif/disttable/logging"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func joinAll(t *testing.T, r *rendezvous, valueOf func(rank int) int32) []*round {
	rounds := make([]*round, r.size)
	var wg sync.WaitGroup
	for rank := 0; rank < r.size; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			res, err := r.join(context.Background(), rank, valueOf(rank), &pb.MPeerDescriptor{Rank: int32(rank)})
			require.Nil(t, err)
			rounds[rank] = res
		}(rank)
	}
	wg.Wait()
	return rounds
}

func TestRendezvousRounds(t *testing.T) {
	r := createRendezvous(3)
	rounds := joinAll(t, r, func(rank int) int32 { return int32(rank * 2) })
	for _, res := range rounds {
		require.Equal(t, []int32{0, 2, 4}, res.values)
		require.Len(t, res.peers, 3)
		require.Equal(t, int32(2), res.peers[2].Rank)
	}
	// a completed round does not leak into the next one
	rounds = joinAll(t, r, func(rank int) int32 { return int32(rank + 100) })
	for _, res := range rounds {
		require.Equal(t, []int32{100, 101, 102}, res.values)
	}
}

func TestRendezvousRetry(t *testing.T) {
	r := createRendezvous(2)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := r.join(ctx, 0, 1, nil)
	require.Equal(t, context.DeadlineExceeded, err)
	require.Equal(t, 0, r.round.count)

	// rank 1 arrives after rank 0 gave up, so it must wait for rank 0 to come back
	type result struct {
		res *round
		err error
	}
	joined := make(chan result, 1)
	go func() {
		res, err := r.join(context.Background(), 1, 9, nil)
		joined <- result{res, err}
	}()
	select {
	case <-joined:
		t.Fatal("round completed without rank 0")
	case <-time.After(50 * time.Millisecond):
	}

	res, err := r.join(context.Background(), 0, 7, nil)
	require.Nil(t, err)
	require.Equal(t, []int32{7, 9}, res.values)
	other := <-joined
	require.Nil(t, other.err)
	require.Equal(t, []int32{7, 9}, other.res.values)
}

func TestRendezvousInvalidRank(t *testing.T) {
	r := createRendezvous(2)
	_, err := r.join(context.Background(), 2, 0, nil)
	require.NotNil(t, err)
	_, err = r.join(context.Background(), -1, 0, nil)
	require.NotNil(t, err)
}

func TestCheckGroup(t *testing.T) {
	s := createClusterServer("group", 2, logging.NopLogger())
	require.Nil(t, s.checkGroup("group", 1))
	require.Nil(t, s.checkGroup("", 0))
	require.Equal(t, codes.FailedPrecondition, status.Code(s.checkGroup("other", 0)))
	require.Equal(t, codes.InvalidArgument, status.Code(s.checkGroup("group", 2)))
}

func TestToStatus(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{errors.OutOfRangeError{Index: 5, Size: 3}, codes.OutOfRange},
		{fmt.Errorf("wrapped: %w", errors.OutOfRangeError{Index: 5, Size: 3}), codes.OutOfRange},
		{context.Canceled, codes.Canceled},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{&errors.TransportError{Op: "serve", Rank: 1, Err: fmt.Errorf("stopped")}, codes.Unavailable},
		{fmt.Errorf("boom"), codes.Internal},
	}
	for _, c := range cases {
		require.Equal(t, c.code, status.Code(toStatus(c.err)), c.err.Error())
	}
}

func TestNodeOptionsDefaults(t *testing.T) {
	opts := &NodeOptions{Rank: 2, GroupSize: 3, CoordinatorHost: "example.com"}
	require.Nil(t, ensureDefaultNodeOptionsValues(opts))
	require.Equal(t, DefaultPort+2, opts.Port)
	require.Equal(t, DefaultPort, opts.CoordinatorPort)
	require.Equal(t, "0.0.0.0:1645", opts.connectionString())
	require.Equal(t, "example.com:1643", opts.coordinatorConnectionString())
	require.Empty(t, opts.GroupID)

	opts = &NodeOptions{Rank: 0, GroupSize: 1, CoordinatorHost: "127.0.0.1"}
	require.Nil(t, ensureDefaultNodeOptionsValues(opts))
	require.NotEmpty(t, opts.GroupID)

	require.NotNil(t, ensureDefaultNodeOptionsValues(&NodeOptions{GroupSize: 0, CoordinatorHost: "h"}))
	require.NotNil(t, ensureDefaultNodeOptionsValues(&NodeOptions{Rank: 3, GroupSize: 3, CoordinatorHost: "h"}))
	require.NotNil(t, ensureDefaultNodeOptionsValues(&NodeOptions{Rank: 0, GroupSize: 3}))
}
