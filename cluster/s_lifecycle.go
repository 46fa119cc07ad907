package cluster

import (
	"time"

	pb "github.com/go-sif/disttable/internal/rpc"
	"github.com/go-sif/disttable/logging"
	"golang.org/x/net/context"
)

type lifecycleServer struct {
	node *Node
}

// createLifecycleServer creates a new lifecycleServer
func createLifecycleServer(node *Node) *lifecycleServer {
	return &lifecycleServer{node: node}
}

// GracefulStop asks the application on this rank to shut down once it is ready, see Node.StopRequested
func (s *lifecycleServer) GracefulStop(ctx context.Context, req *pb.MStopRequest) (*pb.MStopResponse, error) {
	s.node.logger.Log(logging.InfoLevel, "Rank %d received request from rank %d to stop gracefully...", s.node.Rank(), req.GetRank())
	s.node.requestStop()
	return &pb.MStopResponse{Time: time.Now().Unix()}, nil
}

// Stop shuts this rank's server down immediately
func (s *lifecycleServer) Stop(ctx context.Context, req *pb.MStopRequest) (*pb.MStopResponse, error) {
	s.node.logger.Log(logging.InfoLevel, "Rank %d received request from rank %d to stop...", s.node.Rank(), req.GetRank())
	// we can't wait for the server to stop, because this counts as an open RPC
	go s.node.Stop()
	return &pb.MStopResponse{Time: time.Now().Unix()}, nil
}
