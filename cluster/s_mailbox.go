package cluster

import (
	goerrors "errors"
	"sync"

	"github.com/go-sif/disttable/errors"
	pb "github.com/go-sif/disttable/internal/rpc"
	"github.com/go-sif/disttable/types"
	"golang.org/x/net/context"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// mailboxServer hands point traffic addressed to this rank to its MailboxHandler
type mailboxServer struct {
	lock    sync.RWMutex
	handler types.MailboxHandler
}

// createMailboxServer creates a mailboxServer which rejects traffic until a handler is set
func createMailboxServer() *mailboxServer {
	return &mailboxServer{}
}

func (s *mailboxServer) setHandler(handler types.MailboxHandler) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.handler = handler
}

func (s *mailboxServer) getHandler() (types.MailboxHandler, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.handler == nil {
		return nil, status.Error(codes.Unavailable, "Rank is not serving points yet")
	}
	return s.handler, nil
}

// RequestPoint blocks until this rank's handler has served the requested point
func (s *mailboxServer) RequestPoint(ctx context.Context, req *pb.MPointRequest) (*pb.MPointReply, error) {
	handler, err := s.getHandler()
	if err != nil {
		return nil, err
	}
	reply, err := handler.HandlePointRequest(ctx, &types.PointRequest{
		RequesterRank: req.GetRequesterRank(),
		PointID:       req.GetPointId(),
		RequestID:     req.GetRequestId(),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.MPointReply{
		OwnerRank: reply.OwnerRank,
		PointId:   reply.PointID,
		RequestId: reply.RequestID,
		Values:    reply.Values,
	}, nil
}

// ReleasePoint frees this rank's serving buffer entry for a previously served point
func (s *mailboxServer) ReleasePoint(ctx context.Context, req *pb.MReleaseRequest) (*pb.MReleaseResponse, error) {
	handler, err := s.getHandler()
	if err != nil {
		return nil, err
	}
	err = handler.HandleRelease(ctx, &types.ReleaseRequest{
		RequesterRank: req.GetRequesterRank(),
		PointID:       req.GetPointId(),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.MReleaseResponse{}, nil
}

// toStatus converts a handler error into a gRPC status the requester can interpret
func toStatus(err error) error {
	var outOfRange errors.OutOfRangeError
	var transport *errors.TransportError
	switch {
	case goerrors.As(err, &outOfRange):
		return status.Error(codes.OutOfRange, err.Error())
	case goerrors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case goerrors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case goerrors.As(err, &transport):
		// the handler has stopped serving
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
