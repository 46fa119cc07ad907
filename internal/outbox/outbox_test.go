package outbox

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-sif/disttable/errors"
	"github.com/go-sif/disttable/internal/directory"
	"github.com/go-sif/disttable/internal/inbox"
	"github.com/go-sif/disttable/internal/partition"
	"github.com/go-sif/disttable/internal/pcache"
	"github.com/go-sif/disttable/internal/shm"
	"github.com/go-sif/disttable/internal/stats"
	"github.com/go-sif/disttable/local"
	"github.com/go-sif/disttable/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type testRank struct {
	comm   *local.Comm
	part   *partition.Partition
	inbox  *inbox.Inbox
	outbox *Outbox
	stats  *stats.TableStatistics
}

// rankValues gives rank r the points {r*100 + i*2, r*100 + i*2 + 1} for i < numPoints
func rankValues(rank int, numPoints int) []float64 {
	values := make([]float64, 0, numPoints*2)
	for i := 0; i < numPoints; i++ {
		values = append(values, float64(rank*100+i*2), float64(rank*100+i*2+1))
	}
	return values
}

func createTestGroup(t *testing.T, size int, cacheSize int, shmDir string) ([]*testRank, func()) {
	world := local.NewWorld(size)
	ranks := make([]*testRank, size)
	var wg sync.WaitGroup
	for r := 0; r < size; r++ {
		part, err := partition.FromValues(2, rankValues(r, 4))
		require.Nil(t, err)
		ts, err := stats.New(r, nil)
		require.Nil(t, err)
		in := inbox.New(part, &inbox.Config{
			Rank:     r,
			Received: &pcache.LRUConfig{Size: cacheSize, Shards: 2},
			Stats:    ts,
		})
		in.Start()
		require.Nil(t, world.Comm(r).Serve(in))
		if shmDir != "" {
			_, err := shm.Publish(shmDir, r, part.NAttributes(), part.Values())
			require.Nil(t, err)
		}
		ranks[r] = &testRank{comm: world.Comm(r), part: part, inbox: in, stats: ts}
	}
	for r := 0; r < size; r++ {
		wg.Add(1)
		go func(tr *testRank) {
			defer wg.Done()
			dir, err := directory.Gather(context.Background(), tr.part.NEntries(), tr.comm)
			require.Nil(t, err)
			tr.outbox = New(tr.comm, tr.part, dir, tr.inbox.Received(), &Config{
				SharedMemoryDir: shmDir,
				Stats:           tr.stats,
			})
		}(ranks[r])
	}
	wg.Wait()
	return ranks, func() {
		for _, tr := range ranks {
			require.Nil(t, tr.inbox.Stop(context.Background()))
			require.Nil(t, tr.outbox.Close())
		}
		world.Close()
	}
}

func TestSelfGetSendsNothing(t *testing.T) {
	defer goleak.VerifyNone(t)
	ranks, cleanup := createTestGroup(t, 2, 8, "")
	defer cleanup()
	p, err := ranks[0].outbox.Get(context.Background(), 0, 3)
	require.Nil(t, err)
	require.Equal(t, types.Point{6, 7}, p)
	require.Nil(t, ranks[0].outbox.Release(context.Background(), 0, 3))
	require.EqualValues(t, 0, ranks[0].comm.RequestsSent())
	require.EqualValues(t, 0, ranks[0].comm.ReleasesSent())
	require.EqualValues(t, 1, ranks[0].stats.GetNumLocalGets())
}

func TestRepeatedRemoteGetSendsOneRequest(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	ranks, cleanup := createTestGroup(t, 2, 8, "")
	defer cleanup()
	for i := 0; i < 3; i++ {
		p, err := ranks[0].outbox.Get(ctx, 1, 2)
		require.Nil(t, err)
		require.Equal(t, types.Point{104, 105}, p)
	}
	require.EqualValues(t, 1, ranks[0].comm.RequestsSent())
	require.EqualValues(t, 2, ranks[0].stats.GetNumCacheHits())
	require.EqualValues(t, 1, ranks[1].stats.GetNumRequestsServed())
	for i := 0; i < 3; i++ {
		require.Nil(t, ranks[0].outbox.Release(ctx, 1, 2))
	}
	// retained by the cache, so the owner is not told
	require.EqualValues(t, 0, ranks[0].comm.ReleasesSent())
	_, err := ranks[0].outbox.Get(ctx, 1, 2)
	require.Nil(t, err)
	require.EqualValues(t, 1, ranks[0].comm.RequestsSent())
	require.Nil(t, ranks[0].outbox.Release(ctx, 1, 2))

	require.Nil(t, ranks[0].outbox.Purge(ctx))
	require.EqualValues(t, 1, ranks[0].comm.ReleasesSent())
}

func TestEvictionReleasesAtOwner(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	ranks, cleanup := createTestGroup(t, 2, 0, "")
	p, err := ranks[1].outbox.Get(ctx, 0, 1)
	require.Nil(t, err)
	require.Equal(t, types.Point{2, 3}, p)
	require.Nil(t, ranks[1].outbox.Release(ctx, 0, 1))
	require.EqualValues(t, 1, ranks[1].comm.ReleasesSent())
	require.NotNil(t, ranks[1].outbox.Release(ctx, 0, 1))

	// without retention, every Get after a Release asks the owner again
	_, err = ranks[1].outbox.Get(ctx, 0, 1)
	require.Nil(t, err)
	require.EqualValues(t, 2, ranks[1].comm.RequestsSent())
	require.Nil(t, ranks[1].outbox.Release(ctx, 0, 1))
	cleanup()
	require.Equal(t, 0, ranks[0].inbox.ServingLen())
	require.EqualValues(t, 2, ranks[0].stats.GetNumReleasesServed())
}

func TestCyclicRequestsComplete(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	ranks, cleanup := createTestGroup(t, 3, 0, "")
	defer cleanup()
	var wg sync.WaitGroup
	for r := range ranks {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			owner := (r + 1) % len(ranks)
			for i := 0; i < 4; i++ {
				p, err := ranks[r].outbox.Get(ctx, owner, i)
				require.Nil(t, err)
				require.Equal(t, types.Point{float64(owner*100 + i*2), float64(owner*100 + i*2 + 1)}, p)
				require.Nil(t, ranks[r].outbox.Release(ctx, owner, i))
			}
		}(r)
	}
	wg.Wait()
}

func TestConcurrentMissesShareARequest(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	ranks, cleanup := createTestGroup(t, 2, 8, "")
	defer cleanup()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := ranks[0].outbox.Get(ctx, 1, 0)
			require.Nil(t, err)
			require.Equal(t, types.Point{100, 101}, p)
		}()
	}
	wg.Wait()
	require.EqualValues(t, 16, ranks[0].inbox.Received().RefCount(types.PointID{Owner: 1, Index: 0}))
	// merged requests and the per-key fill lock may still let a straggler through, but never one per caller
	require.True(t, ranks[0].comm.RequestsSent() < 16)
}

func TestSharedMemoryFastPath(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	ranks, cleanup := createTestGroup(t, 2, 0, t.TempDir())
	defer cleanup()
	p, err := ranks[0].outbox.Get(ctx, 1, 3)
	require.Nil(t, err)
	require.Equal(t, types.Point{106, 107}, p)
	require.Nil(t, ranks[0].outbox.Release(ctx, 1, 3))
	require.EqualValues(t, 0, ranks[0].comm.RequestsSent())
	require.EqualValues(t, 0, ranks[0].comm.ReleasesSent())
	require.EqualValues(t, 1, ranks[0].stats.GetNumSharedMemoryHits())
}

func TestInvalidAddresses(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	ranks, cleanup := createTestGroup(t, 2, 8, "")
	defer cleanup()
	_, err := ranks[0].outbox.Get(ctx, 2, 0)
	require.Equal(t, errors.InvalidRankError{Rank: 2, Size: 2}, err)
	_, err = ranks[0].outbox.Get(ctx, -1, 0)
	require.IsType(t, errors.InvalidRankError{}, err)
	_, err = ranks[0].outbox.Get(ctx, 1, 4)
	require.Equal(t, errors.OutOfRangeError{Index: 4, Size: 4}, err)
	_, err = ranks[0].outbox.Get(ctx, 0, -1)
	require.IsType(t, errors.OutOfRangeError{}, err)
	require.NotNil(t, ranks[0].outbox.Release(ctx, 1, 0))
	require.EqualValues(t, 0, ranks[0].comm.RequestsSent())
}

// faultyComm answers every request with a canned reply or error
type faultyComm struct {
	reply *types.PointReply
	err   error
}

func (c *faultyComm) Rank() int {
	return 0
}

func (c *faultyComm) Size() int {
	return 2
}

func (c *faultyComm) Serve(handler types.MailboxHandler) error {
	return nil
}

func (c *faultyComm) Barrier(ctx context.Context) error {
	return nil
}

func (c *faultyComm) Close() error {
	return nil
}

func (c *faultyComm) AllGather(ctx context.Context, value int32) ([]int32, error) {
	return []int32{value, 4}, nil
}

func (c *faultyComm) RequestPoint(ctx context.Context, owner int, req *types.PointRequest) (*types.PointReply, error) {
	return c.reply, c.err
}

func (c *faultyComm) ReleasePoint(ctx context.Context, owner int, req *types.ReleaseRequest) error {
	return c.err
}

func createFaultyOutbox(t *testing.T, comm *faultyComm) *Outbox {
	return createOutbox(t, comm, &Config{RequestRateLimit: 1000})
}

// createOutbox creates an Outbox for rank 0 of a group of two ranks with four points each
func createOutbox(t *testing.T, comm types.Communicator, config *Config) *Outbox {
	part, err := partition.FromValues(2, rankValues(0, 4))
	require.Nil(t, err)
	dir, err := directory.FromCounts([]int32{4, 4})
	require.Nil(t, err)
	return New(comm, part, dir, pcache.NewLRU(&pcache.LRUConfig{}), config)
}

func TestTransportFailures(t *testing.T) {
	ctx := context.Background()
	cause := fmt.Errorf("connection reset")
	ob := createFaultyOutbox(t, &faultyComm{err: cause})
	_, err := ob.Get(ctx, 1, 0)
	var transportErr *errors.TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Equal(t, 1, transportErr.Rank)
	require.ErrorIs(t, err, cause)

	// replies must echo the request
	ob = createFaultyOutbox(t, &faultyComm{reply: &types.PointReply{OwnerRank: 1, PointID: 0, RequestID: 999, Values: []float64{1, 2}}})
	_, err = ob.Get(ctx, 1, 0)
	require.ErrorAs(t, err, &transportErr)

	ob = createFaultyOutbox(t, &faultyComm{reply: &types.PointReply{OwnerRank: 1, PointID: 0, RequestID: 1, Values: []float64{1}}})
	_, err = ob.Get(ctx, 1, 0)
	require.ErrorAs(t, err, &transportErr)

	ob = createFaultyOutbox(t, &faultyComm{reply: &types.PointReply{OwnerRank: 1, PointID: 0, RequestID: 1, Values: []float64{1, 2}}})
	p, err := ob.Get(ctx, 1, 0)
	require.Nil(t, err)
	require.Equal(t, types.Point{1, 2}, p)
}

func TestCancelledRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ob := createFaultyOutbox(t, &faultyComm{err: context.Canceled})
	_, err := ob.Get(ctx, 1, 0)
	require.ErrorIs(t, err, context.Canceled)
}

// blockingComm holds every request until gate is closed, recording how many were in flight
type blockingComm struct {
	faultyComm
	gate     chan struct{}
	started  chan int32
	lock     sync.Mutex
	calls    int
	inFlight int
	peak     int
}

func createBlockingComm() *blockingComm {
	return &blockingComm{gate: make(chan struct{}), started: make(chan int32, 16)}
}

func (c *blockingComm) RequestPoint(ctx context.Context, owner int, req *types.PointRequest) (*types.PointReply, error) {
	c.lock.Lock()
	c.calls++
	c.inFlight++
	if c.inFlight > c.peak {
		c.peak = c.inFlight
	}
	c.lock.Unlock()
	defer func() {
		c.lock.Lock()
		c.inFlight--
		c.lock.Unlock()
	}()
	c.started <- req.PointID
	select {
	case <-c.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &types.PointReply{
		OwnerRank: int32(owner),
		PointID:   req.PointID,
		RequestID: req.RequestID,
		Values:    []float64{float64(req.PointID), 1},
	}, nil
}

func (c *blockingComm) counts() (calls int, peak int) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.calls, c.peak
}

func TestOutstandingRequestsPerOwner(t *testing.T) {
	defer goleak.VerifyNone(t)
	for _, tc := range []struct {
		maxOutstanding int64
		peak           int
	}{
		{0, 1},
		{1, 1},
		{2, 2},
		{4, 4},
	} {
		comm := createBlockingComm()
		ob := createOutbox(t, comm, &Config{MaxOutstandingPerOwner: tc.maxOutstanding})
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				p, err := ob.Get(context.Background(), 1, i)
				require.Nil(t, err)
				require.Equal(t, types.Point{float64(i), 1}, p)
			}(i)
		}
		for i := 0; i < tc.peak; i++ {
			select {
			case <-comm.started:
			case <-time.After(time.Second):
				t.Fatalf("only %d of %d requests were sent", i, tc.peak)
			}
		}
		if tc.peak < 4 {
			select {
			case <-comm.started:
				t.Fatalf("more than %d requests in flight to one owner", tc.peak)
			case <-time.After(50 * time.Millisecond):
			}
		}
		close(comm.gate)
		wg.Wait()
		calls, peak := comm.counts()
		require.Equal(t, 4, calls)
		require.Equal(t, tc.peak, peak)
		require.Nil(t, ob.Close())
	}
}

func TestMergedRequestOutlivesCancelledCaller(t *testing.T) {
	defer goleak.VerifyNone(t)
	comm := createBlockingComm()
	ob := createOutbox(t, comm, &Config{})
	defer func() {
		require.Nil(t, ob.Close())
	}()

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := ob.Get(ctx, 1, 2)
		firstErr <- err
	}()
	<-comm.started
	cancel()
	err := <-firstErr
	var transportErr *errors.TransportError
	require.ErrorAs(t, err, &transportErr)
	require.ErrorIs(t, err, context.Canceled)

	// the request is still in flight, so a second caller joins it
	time.AfterFunc(50*time.Millisecond, func() {
		close(comm.gate)
	})
	p, err := ob.Get(context.Background(), 1, 2)
	require.Nil(t, err)
	require.Equal(t, types.Point{2, 1}, p)
	calls, _ := comm.counts()
	require.Equal(t, 1, calls)
}

func TestCloseAbandonsRequests(t *testing.T) {
	defer goleak.VerifyNone(t)
	comm := createBlockingComm()
	ob := createOutbox(t, comm, &Config{})
	done := make(chan error, 1)
	go func() {
		_, err := ob.Get(context.Background(), 1, 0)
		done <- err
	}()
	<-comm.started
	require.Nil(t, ob.Close())
	err := <-done
	require.ErrorIs(t, err, context.Canceled)
}
