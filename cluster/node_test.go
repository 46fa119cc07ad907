package cluster_test

import (
	"context"
	goerrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/go-sif/disttable"
	"github.com/go-sif/disttable/cluster"
	"github.com/go-sif/disttable/datasource/memory"
	"github.com/go-sif/disttable/errors"
	"github.com/go-sif/disttable/logging"
	dtesting "github.com/go-sif/disttable/testing"
	"github.com/go-sif/disttable/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type echoHandler struct {
	rank     int32
	lock     sync.Mutex
	released []int32
}

func (h *echoHandler) HandlePointRequest(ctx context.Context, req *types.PointRequest) (*types.PointReply, error) {
	if req.PointID < 0 || req.PointID >= 100 {
		return nil, errors.OutOfRangeError{Index: int(req.PointID), Size: 100}
	}
	return &types.PointReply{
		OwnerRank: h.rank,
		PointID:   req.PointID,
		RequestID: req.RequestID,
		Values:    []float64{float64(h.rank), float64(req.PointID)},
	}, nil
}

func (h *echoHandler) HandleRelease(ctx context.Context, req *types.ReleaseRequest) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.released = append(h.released, req.PointID)
	return nil
}

func createNodes(t *testing.T, size int) []*cluster.Node {
	nodes, err := dtesting.CreateLocalNodes(&cluster.NodeOptions{Logger: logging.NopLogger()}, size)
	require.Nil(t, err)
	return nodes
}

func closeNodes(t *testing.T, nodes []*cluster.Node) {
	for _, n := range nodes {
		require.Nil(t, n.Close())
	}
}

// allGather runs an AllGather on every node concurrently, where rank r contributes r*10
func allGather(t *testing.T, nodes []*cluster.Node) [][]int32 {
	results := make([][]int32, len(nodes))
	errs := make([]error, len(nodes))
	var wg sync.WaitGroup
	for r, n := range nodes {
		wg.Add(1)
		go func(r int, n *cluster.Node) {
			defer wg.Done()
			results[r], errs[r] = n.AllGather(context.Background(), int32(r*10))
		}(r, n)
	}
	wg.Wait()
	for _, err := range errs {
		require.Nil(t, err)
	}
	return results
}

func TestAllGatherAndBarrier(t *testing.T) {
	defer goleak.VerifyNone(t)
	nodes := createNodes(t, 3)
	defer closeNodes(t, nodes)
	for _, res := range allGather(t, nodes) {
		require.Equal(t, []int32{0, 10, 20}, res)
	}
	// a second all-gather reuses the peer connections
	for _, res := range allGather(t, nodes) {
		require.Equal(t, []int32{0, 10, 20}, res)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(nodes))
	for r, n := range nodes {
		wg.Add(1)
		go func(r int, n *cluster.Node) {
			defer wg.Done()
			for i := 0; i < 3 && errs[r] == nil; i++ {
				errs[r] = n.Barrier(context.Background())
			}
		}(r, n)
	}
	wg.Wait()
	for _, err := range errs {
		require.Nil(t, err)
	}
}

func TestBarrierTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)
	nodes := createNodes(t, 2)
	defer closeNodes(t, nodes)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := nodes[0].Barrier(ctx)
	require.NotNil(t, err)
	var transport *errors.TransportError
	require.True(t, goerrors.As(err, &transport))
}

func TestRequestAndRelease(t *testing.T) {
	defer goleak.VerifyNone(t)
	nodes := createNodes(t, 2)
	defer closeNodes(t, nodes)
	h := &echoHandler{rank: 1}
	require.Nil(t, nodes[1].Serve(h))
	require.Nil(t, nodes[0].Serve(&echoHandler{rank: 0}))

	ctx := context.Background()
	// peers are unknown before the first all-gather
	_, err := nodes[0].RequestPoint(ctx, 1, &types.PointRequest{PointID: 3})
	require.NotNil(t, err)
	allGather(t, nodes)

	reply, err := nodes[0].RequestPoint(ctx, 1, &types.PointRequest{RequesterRank: 0, PointID: 3, RequestID: 7})
	require.Nil(t, err)
	require.Equal(t, int32(1), reply.OwnerRank)
	require.Equal(t, uint64(7), reply.RequestID)
	require.Equal(t, []float64{1, 3}, reply.Values)

	_, err = nodes[0].RequestPoint(ctx, 1, &types.PointRequest{PointID: 100})
	require.NotNil(t, err)
	require.Equal(t, codes.OutOfRange, status.Code(goerrors.Unwrap(err)))

	_, err = nodes[0].RequestPoint(ctx, 2, &types.PointRequest{PointID: 1})
	require.NotNil(t, err)

	require.Nil(t, nodes[0].ReleasePoint(ctx, 1, &types.ReleaseRequest{RequesterRank: 0, PointID: 3}))
	require.Equal(t, []int32{3}, h.released)
}

func TestServeAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)
	nodes := createNodes(t, 1)
	require.Nil(t, nodes[0].Close())
	require.Nil(t, nodes[0].Close())
	require.NotNil(t, nodes[0].Serve(&echoHandler{}))
}

func TestStopGroup(t *testing.T) {
	defer goleak.VerifyNone(t)
	nodes := createNodes(t, 3)
	defer closeNodes(t, nodes)
	allGather(t, nodes)
	require.Nil(t, nodes[0].StopGroup(context.Background(), true))
	for _, n := range nodes[1:] {
		select {
		case <-n.StopRequested():
		case <-time.After(time.Second):
			t.Fatalf("rank %d was not asked to stop", n.Rank())
		}
	}
	select {
	case <-nodes[0].StopRequested():
		t.Fatal("rank 0 should not stop itself")
	default:
	}
}

func TestRequestStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	nodes := createNodes(t, 2)
	defer closeNodes(t, nodes)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.Nil(t, cluster.RequestStop(ctx, nodes[1].Addr(), true))
	select {
	case <-nodes[1].StopRequested():
	case <-time.After(time.Second):
		t.Fatal("rank 1 did not stop")
	}
}

func TestRemoteLogger(t *testing.T) {
	defer goleak.VerifyNone(t)
	nodes := createNodes(t, 2)
	defer closeNodes(t, nodes)
	logger := nodes[1].CreateRemoteLogger(logging.InfoLevel)
	logger.Log(logging.DebugLevel, "suppressed")
	logger.Log(logging.InfoLevel, "hello from rank %d", 1)
	logger.Log(logging.WarnLevel, "goodbye")
	require.Nil(t, logger.Close())
	// closing again has nothing to flush
	require.Nil(t, logger.Close())
}

func TestCreateNodeValidation(t *testing.T) {
	_, err := cluster.CreateNode(&cluster.NodeOptions{Rank: 0, GroupSize: 0, CoordinatorHost: "127.0.0.1"})
	require.NotNil(t, err)
	_, err = cluster.CreateNode(&cluster.NodeOptions{Rank: 2, GroupSize: 2, CoordinatorHost: "127.0.0.1"})
	require.NotNil(t, err)
}

func TestTableOverGRPC(t *testing.T) {
	defer goleak.VerifyNone(t)
	rows := make([][]float64, 10)
	for i := range rows {
		rows[i] = []float64{float64(i * 10), float64(i*10 + 1), float64(i*10 + 2)}
	}
	first, err := memory.CreateRowSource(rows[:5])
	require.Nil(t, err)
	second, err := memory.CreateRowSource(rows[5:])
	require.Nil(t, err)
	opts := &disttable.Options{Logger: logging.NopLogger()}
	g, err := dtesting.StartLocalGroup(context.Background(), opts, &cluster.NodeOptions{Logger: logging.NopLogger()}, first, second)
	require.Nil(t, err)

	err = g.Do(func(rank int, table *disttable.Table) error {
		if table.TotalEntries() != 10 || table.GroupSize() != 2 {
			return goerrors.New("unexpected directory")
		}
		ctx := context.Background()
		for owner := 0; owner < 2; owner++ {
			for i := 0; i < 5; i++ {
				p, err := table.Get(ctx, owner, i)
				if err != nil {
					return err
				}
				if !p.Equal(rows[owner*5+i]) {
					return goerrors.New("point does not match its source row")
				}
				if err := table.Release(ctx, owner, i); err != nil {
					return err
				}
			}
		}
		_, err := table.Get(ctx, 1-rank, 5)
		var outOfRange errors.OutOfRangeError
		if !goerrors.As(err, &outOfRange) {
			return goerrors.New("expected an out of range error")
		}
		return nil
	})
	require.Nil(t, err)
	require.Nil(t, g.Close(context.Background()))
}
