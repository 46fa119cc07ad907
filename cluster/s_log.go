package cluster

import (
	"io"
	"log"
	"time"

	pb "github.com/go-sif/disttable/internal/rpc"
	"github.com/go-sif/disttable/logging"
)

type logServer struct {
	minLevel int
}

// createLogServer creates a log server which prints messages at or above minLevel
func createLogServer(minLevel int) *logServer {
	return &logServer{minLevel: minLevel}
}

// Log messages to the console coming from other ranks
func (s *logServer) Log(stream pb.LogService_LogServer) error {
	var count int32
	for {
		message, err := stream.Recv()
		if err == io.EOF {
			// Then we're out of messages to print and no errors have occurred, so Ack
			return stream.SendAndClose(&pb.MLogMsgAck{Time: time.Now().Unix(), Count: count})
		} else if err != nil {
			return err
		}
		count++
		if int(message.GetLevel()) >= s.minLevel {
			log.Printf("%s: level [%s]: %s", message.GetSource(), logging.LogLevelToString(int(message.GetLevel())), message.GetMessage())
		}
	}
}
