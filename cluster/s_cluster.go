package cluster

import (
	"net"
	"time"

	pb "github.com/go-sif/disttable/internal/rpc"
	"github.com/go-sif/disttable/logging"
	"golang.org/x/net/context"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type clusterServer struct {
	groupID   string
	logger    logging.Logger
	allGather *rendezvous
	barrier   *rendezvous
}

// createClusterServer creates a new cluster server for a group of size ranks
func createClusterServer(groupID string, size int, logger logging.Logger) *clusterServer {
	return &clusterServer{
		groupID:   groupID,
		logger:    logger,
		allGather: createRendezvous(size),
		barrier:   createRendezvous(size),
	}
}

// checkGroup rejects ranks of other groups. Ranks which were not told the group ID are trusted.
func (s *clusterServer) checkGroup(groupID string, rank int32) error {
	if len(groupID) > 0 && groupID != s.groupID {
		return status.Errorf(codes.FailedPrecondition, "Rank %d belongs to group %q, not %q", rank, groupID, s.groupID)
	}
	if int(rank) < 0 || int(rank) >= s.allGather.size {
		return status.Errorf(codes.InvalidArgument, "Rank %d is not part of a group of %d", rank, s.allGather.size)
	}
	return nil
}

// AllGather collects one value and the mailbox address of every rank, answering each rank
// once all of them have called
func (s *clusterServer) AllGather(ctx context.Context, req *pb.MAllGatherRequest) (*pb.MAllGatherResponse, error) {
	if err := s.checkGroup(req.GetGroupId(), req.GetRank()); err != nil {
		return nil, err
	}
	host := req.GetHost()
	if ip := net.ParseIP(host); len(host) == 0 || (ip != nil && ip.IsUnspecified()) {
		// the rank listens on every interface, so reach it wherever it called from
		p, ok := peer.FromContext(ctx)
		if !ok {
			return nil, status.Errorf(codes.Internal, "Unable to fetch peer data for rank %d", req.GetRank())
		}
		tcpAddr, ok := p.Addr.(*net.TCPAddr)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "Rank %d is not using TCP", req.GetRank())
		}
		host = tcpAddr.IP.String()
	}
	desc := &pb.MPeerDescriptor{Rank: req.GetRank(), Host: host, Port: req.GetPort()}
	s.logger.Log(logging.DebugLevel, "Rank %d joined all-gather from %s:%d", desc.Rank, desc.Host, desc.Port)
	r, err := s.allGather.join(ctx, int(req.GetRank()), req.GetValue(), desc)
	if err != nil {
		return nil, contextStatus(err)
	}
	values := make([]int32, len(r.values))
	copy(values, r.values)
	return &pb.MAllGatherResponse{Values: values, Peers: r.peers}, nil
}

// Barrier answers each rank once all of them have called
func (s *clusterServer) Barrier(ctx context.Context, req *pb.MBarrierRequest) (*pb.MBarrierResponse, error) {
	if err := s.checkGroup(req.GetGroupId(), req.GetRank()); err != nil {
		return nil, err
	}
	if _, err := s.barrier.join(ctx, int(req.GetRank()), req.GetEpoch(), nil); err != nil {
		return nil, contextStatus(err)
	}
	return &pb.MBarrierResponse{Time: time.Now().Unix()}, nil
}

// contextStatus converts the error of a cancelled context into a gRPC status
func contextStatus(err error) error {
	switch err {
	case context.DeadlineExceeded:
		return status.Error(codes.DeadlineExceeded, err.Error())
	case context.Canceled:
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Unknown, err.Error())
	}
}
