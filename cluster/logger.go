package cluster

import (
	"context"
	"fmt"
	"sync"

	pb "github.com/go-sif/disttable/internal/rpc"
	"github.com/go-sif/disttable/logging"
)

// RemoteLogger forwards log messages to rank 0, which prints them on behalf of the group.
// Messages which cannot be forwarded are logged locally instead.
type RemoteLogger struct {
	lock     sync.Mutex
	node     *Node
	minLevel int
	source   string
	fallback logging.Logger
	stream   pb.LogService_LogClient
	cancel   context.CancelFunc
	sent     int32
}

// CreateRemoteLogger creates a RemoteLogger which forwards messages at or above minLevel
func (n *Node) CreateRemoteLogger(minLevel int) *RemoteLogger {
	return &RemoteLogger{
		node:     n,
		minLevel: minLevel,
		source:   fmt.Sprintf("rank %d", n.Rank()),
		fallback: n.logger,
	}
}

// Log forwards a message to rank 0
func (l *RemoteLogger) Log(level int, format string, args ...interface{}) {
	if level < l.minLevel {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.stream == nil {
		ctx, cancel := context.WithCancel(context.Background())
		stream, err := l.node.logClient.Log(ctx)
		if err != nil {
			cancel()
			l.fallback.Log(level, "%s", msg)
			return
		}
		l.stream, l.cancel = stream, cancel
		l.sent = 0
	}
	err := l.stream.Send(&pb.MLogMsg{Level: int32(level), Source: l.source, Message: msg})
	if err != nil {
		// reopen the stream for the next message
		l.cancel()
		l.stream, l.cancel = nil, nil
		l.fallback.Log(level, "%s", msg)
		return
	}
	l.sent++
}

// Close flushes forwarded messages, returning once rank 0 has acknowledged them
func (l *RemoteLogger) Close() error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.stream == nil {
		return nil
	}
	defer func() {
		l.cancel()
		l.stream, l.cancel = nil, nil
	}()
	ack, err := l.stream.CloseAndRecv()
	if err != nil {
		return fmt.Errorf("Unable to flush remote log: %v", err)
	}
	if ack.GetCount() != l.sent {
		l.fallback.Log(logging.WarnLevel, "Rank 0 acknowledged %d of %d forwarded log messages", ack.GetCount(), l.sent)
	}
	return nil
}
