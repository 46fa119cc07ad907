package disttable

import "time"

// RuntimeStatistics facilitates the retrieval of statistics about the point traffic of a Table
type RuntimeStatistics interface {
	// GetStartTime returns the time at which the Table was initialized
	GetStartTime() time.Time
	// GetRuntime returns the time elapsed since the Table was initialized
	GetRuntime() time.Duration
	// GetNumLocalGets returns the number of reads of points owned by this rank
	GetNumLocalGets() int64
	// GetNumCacheHits returns the number of remote reads answered by the receive buffer
	GetNumCacheHits() int64
	// GetNumSharedMemoryHits returns the number of remote reads answered by a peer's shared-memory segment
	GetNumSharedMemoryHits() int64
	// GetNumRequestsSent returns the number of point requests sent to peers
	GetNumRequestsSent() int64
	// GetNumRequestsServed returns the number of point requests answered for peers
	GetNumRequestsServed() int64
	// GetNumServingBufferHits returns the number of answered requests which reused the serving buffer
	GetNumServingBufferHits() int64
	// GetNumReleasesSent returns the number of release messages sent to peers
	GetNumReleasesSent() int64
	// GetNumReleasesServed returns the number of release messages received from peers
	GetNumReleasesServed() int64
}
