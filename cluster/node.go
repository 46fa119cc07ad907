// Package cluster connects the ranks of a disttable group over gRPC. Every rank runs a Node,
// which serves its mailbox to the other ranks and implements types.Communicator. Rank 0
// additionally coordinates the group: ranks discover each other through its all-gather, and
// it prints the logs which other ranks forward to it.
package cluster

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-sif/disttable/errors"
	pb "github.com/go-sif/disttable/internal/rpc"
	"github.com/go-sif/disttable/logging"
	"github.com/go-sif/disttable/types"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Node is one rank of a disttable group
type Node struct {
	epoch         int32 // accessed atomically
	opts          *NodeOptions
	logger        logging.Logger
	lis           net.Listener
	server        *grpc.Server
	serveDone     chan struct{}
	serveErr      error
	mailbox       *mailboxServer
	coordConn     *grpc.ClientConn
	clusterClient pb.ClusterServiceClient
	logClient     pb.LogServiceClient
	peerLock      sync.RWMutex
	peers         []*peerConn
	stopRequested chan struct{}
	stopOnce      sync.Once
	lifecycleLock sync.Mutex
	closed        bool
}

// peerConn is an open connection to another rank's mailbox
type peerConn struct {
	desc    *pb.MPeerDescriptor
	conn    *grpc.ClientConn
	mailbox pb.MailboxServiceClient
}

// CreateNode binds a Node to its address and starts serving. Rank 0 is ready to coordinate
// its group as soon as CreateNode returns.
func CreateNode(opts *NodeOptions) (*Node, error) {
	opts = CloneNodeOptions(opts)
	if err := ensureDefaultNodeOptionsValues(opts); err != nil {
		return nil, err
	}
	lis := opts.Listener
	if lis == nil {
		var err error
		lis, err = net.Listen("tcp", opts.connectionString())
		if err != nil {
			return nil, fmt.Errorf("failed to listen: %v", err)
		}
	}
	n := &Node{
		opts:          opts,
		logger:        opts.Logger,
		lis:           lis,
		server:        grpc.NewServer(),
		serveDone:     make(chan struct{}),
		mailbox:       createMailboxServer(),
		stopRequested: make(chan struct{}),
	}
	// register rpc handlers
	pb.RegisterMailboxServiceServer(n.server, n.mailbox)
	pb.RegisterLifecycleServiceServer(n.server, createLifecycleServer(n))
	if opts.Rank == 0 {
		pb.RegisterClusterServiceServer(n.server, createClusterServer(opts.GroupID, opts.GroupSize, n.logger))
		pb.RegisterLogServiceServer(n.server, createLogServer(logging.TraceLevel))
		n.logger.Log(logging.InfoLevel, "Starting disttable coordinator for %d ranks at %s", opts.GroupSize, n.Addr())
	}
	go func() {
		defer close(n.serveDone)
		if err := n.server.Serve(lis); err != nil {
			n.serveErr = err
		}
	}()
	// connect to rank 0
	conn, err := grpc.Dial(opts.coordinatorConnectionString(), grpc.WithInsecure())
	if err != nil {
		n.server.Stop()
		<-n.serveDone
		return nil, fmt.Errorf("fail to dial: %v", err)
	}
	n.coordConn = conn
	n.clusterClient = pb.NewClusterServiceClient(conn)
	n.logClient = pb.NewLogServiceClient(conn)
	return n, nil
}

// Addr returns the address this Node is serving on
func (n *Node) Addr() string {
	return n.lis.Addr().String()
}

// GroupID returns the group ID this Node presents to rank 0
func (n *Node) GroupID() string {
	return n.opts.GroupID
}

// Rank returns the rank of this Node
func (n *Node) Rank() int {
	return n.opts.Rank
}

// Size returns the number of ranks in this Node's group
func (n *Node) Size() int {
	return n.opts.GroupSize
}

// Serve starts routing point traffic addressed to this rank to handler
func (n *Node) Serve(handler types.MailboxHandler) error {
	n.lifecycleLock.Lock()
	defer n.lifecycleLock.Unlock()
	if n.closed {
		return fmt.Errorf("Node %d is closed", n.Rank())
	}
	n.mailbox.setHandler(handler)
	return nil
}

// withRetries calls fn until it succeeds, fails with an error other than codes.Unavailable,
// or has been tried JoinRetries times at one second intervals
func (n *Node) withRetries(ctx context.Context, fn func() error) error {
	for retries := 0; ; retries++ {
		err := fn()
		if err == nil {
			return nil
		}
		if status.Code(err) != codes.Unavailable || retries >= n.opts.JoinRetries-1 {
			return err
		}
		n.logger.Log(logging.DebugLevel, "Rank %d could not reach rank 0, retrying: %v", n.Rank(), err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			// Wait 1 second and try again (iterate)
		}
	}
}

// AllGather exchanges one value per rank through rank 0. The first AllGather also connects
// this Node to the mailbox of every other rank.
func (n *Node) AllGather(ctx context.Context, value int32) ([]int32, error) {
	ctx, cancel := context.WithTimeout(ctx, n.opts.JoinTimeout)
	defer cancel()
	req := &pb.MAllGatherRequest{
		GroupId: n.opts.GroupID,
		Rank:    int32(n.Rank()),
		Value:   value,
		Port:    int32(n.opts.Port),
		Host:    n.opts.Host,
	}
	var res *pb.MAllGatherResponse
	err := n.withRetries(ctx, func() error {
		var err error
		res, err = n.clusterClient.AllGather(ctx, req)
		return err
	})
	if err != nil {
		return nil, &errors.TransportError{Op: "all-gather", Rank: 0, Err: err}
	}
	if len(res.GetValues()) != n.Size() || len(res.GetPeers()) != n.Size() {
		err := fmt.Errorf("Received %d values and %d peers for a group of %d", len(res.GetValues()), len(res.GetPeers()), n.Size())
		return nil, &errors.TransportError{Op: "all-gather", Rank: 0, Err: err}
	}
	if err := n.connectPeers(ctx, res.GetPeers()); err != nil {
		return nil, err
	}
	return res.GetValues(), nil
}

// connectPeers dials the mailbox of every rank, unless that has happened already
func (n *Node) connectPeers(ctx context.Context, descs []*pb.MPeerDescriptor) error {
	n.peerLock.Lock()
	defer n.peerLock.Unlock()
	if n.peers != nil {
		return nil
	}
	for i, desc := range descs {
		if int(desc.GetRank()) != i {
			return fmt.Errorf("Peer descriptor %d describes rank %d", i, desc.GetRank())
		}
	}
	peers := make([]*peerConn, len(descs))
	g, gctx := errgroup.WithContext(ctx)
	for i, desc := range descs {
		i, desc := i, desc
		g.Go(func() error {
			dialCtx, cancel := context.WithTimeout(gctx, n.opts.RPCTimeout)
			defer cancel()
			addr := net.JoinHostPort(desc.GetHost(), strconv.Itoa(int(desc.GetPort())))
			conn, err := grpc.DialContext(dialCtx, addr, grpc.WithInsecure(), grpc.WithBlock())
			if err != nil {
				return &errors.TransportError{Op: "dial", Rank: i, Err: err}
			}
			peers[i] = &peerConn{desc: desc, conn: conn, mailbox: pb.NewMailboxServiceClient(conn)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, p := range peers {
			if p != nil {
				p.conn.Close()
			}
		}
		return err
	}
	n.peers = peers
	n.logger.Log(logging.DebugLevel, "Rank %d connected to %d peers", n.Rank(), len(peers))
	return nil
}

func (n *Node) peer(rank int) (*peerConn, error) {
	n.peerLock.RLock()
	defer n.peerLock.RUnlock()
	if rank < 0 || rank >= n.Size() {
		return nil, errors.InvalidRankError{Rank: rank, Size: n.Size()}
	}
	if n.peers == nil {
		return nil, fmt.Errorf("Rank %d has not discovered its peers", n.Rank())
	}
	return n.peers[rank], nil
}

// Barrier blocks until every rank of the group has called Barrier
func (n *Node) Barrier(ctx context.Context) error {
	epoch := atomic.AddInt32(&n.epoch, 1)
	_, err := n.clusterClient.Barrier(ctx, &pb.MBarrierRequest{
		GroupId: n.opts.GroupID,
		Rank:    int32(n.Rank()),
		Epoch:   epoch,
	})
	if err != nil {
		return &errors.TransportError{Op: "barrier", Rank: 0, Err: err}
	}
	return nil
}

// RequestPoint asks owner for one of its points, blocking until it replies
func (n *Node) RequestPoint(ctx context.Context, owner int, req *types.PointRequest) (*types.PointReply, error) {
	p, err := n.peer(owner)
	if err != nil {
		return nil, &errors.TransportError{Op: "request", Rank: owner, Err: err}
	}
	res, err := p.mailbox.RequestPoint(ctx, &pb.MPointRequest{
		RequesterRank: req.RequesterRank,
		PointId:       req.PointID,
		RequestId:     req.RequestID,
	})
	if err != nil {
		return nil, &errors.TransportError{Op: "request", Rank: owner, Err: err}
	}
	return &types.PointReply{
		OwnerRank: res.GetOwnerRank(),
		PointID:   res.GetPointId(),
		RequestID: res.GetRequestId(),
		Values:    res.GetValues(),
	}, nil
}

// ReleasePoint tells owner that this rank no longer needs a point it served
func (n *Node) ReleasePoint(ctx context.Context, owner int, req *types.ReleaseRequest) error {
	p, err := n.peer(owner)
	if err != nil {
		return &errors.TransportError{Op: "release", Rank: owner, Err: err}
	}
	_, err = p.mailbox.ReleasePoint(ctx, &pb.MReleaseRequest{
		RequesterRank: req.RequesterRank,
		PointId:       req.PointID,
	})
	if err != nil {
		return &errors.TransportError{Op: "release", Rank: owner, Err: err}
	}
	return nil
}

// StopRequested is closed once another rank has asked this Node to stop gracefully, or once
// this Node has stopped
func (n *Node) StopRequested() <-chan struct{} {
	return n.stopRequested
}

func (n *Node) requestStop() {
	n.stopOnce.Do(func() {
		close(n.stopRequested)
	})
}

// StopGroup asks every other rank to stop, gracefully or immediately
func (n *Node) StopGroup(ctx context.Context, graceful bool) error {
	n.peerLock.RLock()
	peers := n.peers
	n.peerLock.RUnlock()
	if peers == nil {
		return fmt.Errorf("Rank %d has not discovered its peers", n.Rank())
	}
	var g errgroup.Group
	for _, p := range peers {
		p := p
		if int(p.desc.GetRank()) == n.Rank() {
			continue
		}
		g.Go(func() error {
			return n.stopPeer(ctx, p.conn, int(p.desc.GetRank()), graceful)
		})
	}
	return g.Wait()
}

func (n *Node) stopPeer(ctx context.Context, conn *grpc.ClientConn, rank int, graceful bool) error {
	ctx, cancel := context.WithTimeout(ctx, n.opts.RPCTimeout)
	defer cancel()
	return requestStop(ctx, conn, int32(n.Rank()), rank, graceful)
}

// RequestStop asks the Node serving at target to stop, gracefully or immediately
func RequestStop(ctx context.Context, target string, graceful bool) error {
	conn, err := grpc.DialContext(ctx, target, grpc.WithInsecure(), grpc.WithBlock())
	if err != nil {
		return fmt.Errorf("fail to dial: %v", err)
	}
	defer conn.Close()
	return requestStop(ctx, conn, -1, -1, graceful)
}

func requestStop(ctx context.Context, conn *grpc.ClientConn, from int32, rank int, graceful bool) error {
	client := pb.NewLifecycleServiceClient(conn)
	req := &pb.MStopRequest{Rank: from}
	var err error
	if graceful {
		_, err = client.GracefulStop(ctx, req)
	} else {
		_, err = client.Stop(ctx, req)
	}
	if err != nil {
		return &errors.TransportError{Op: "stop", Rank: rank, Err: err}
	}
	return nil
}

// Stop the Node's server immediately. Close must still be called to release connections.
func (n *Node) Stop() error {
	n.server.Stop()
	n.requestStop()
	<-n.serveDone
	return n.serveErr
}

// Close stops serving once in-flight requests have completed, and closes every connection
func (n *Node) Close() error {
	n.lifecycleLock.Lock()
	defer n.lifecycleLock.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	n.server.GracefulStop()
	<-n.serveDone
	n.requestStop()
	var errs *multierror.Error
	if n.serveErr != nil {
		errs = multierror.Append(errs, n.serveErr)
	}
	n.peerLock.Lock()
	for _, p := range n.peers {
		if err := p.conn.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("Unable to close connection to rank %d: %w", p.desc.GetRank(), err))
		}
	}
	n.peers = nil
	n.peerLock.Unlock()
	if err := n.coordConn.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("Unable to close connection to rank 0: %w", err))
	}
	return errs.ErrorOrNil()
}
