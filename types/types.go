package types

import (
	"context"
	"fmt"
)

// PointID globally identifies a point by the rank which owns it and its index within that rank's partition
type PointID struct {
	Owner int32 // Owner is the rank of the process which stores the point
	Index int32 // Index is the position of the point within the owner's partition
}

// String returns a string representation of this PointID
func (id PointID) String() string {
	return fmt.Sprintf("%d:%d", id.Owner, id.Index)
}

// Point is a fixed-length numeric vector. Points handed out by a table alias memory owned
// by the table and must not be modified; use Copy to obtain a private version.
type Point []float64

// Dim returns the number of attributes in this Point
func (p Point) Dim() int {
	return len(p)
}

// Copy returns a copy of this Point which does not alias the original
func (p Point) Copy() Point {
	if p == nil {
		return nil
	}
	res := make(Point, len(p))
	copy(res, p)
	return res
}

// Equal returns true iff both Points have identical attributes
func (p Point) Equal(other Point) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// A PointSource describes where the points of a partition come from
type PointSource interface {
	Load() (numAttributes int, values []float64, err error) // Load returns row-major point data, with len(values) a multiple of numAttributes
	String() string                                          // String returns a description of the source, for logging
}

// A Metric computes the distance between two Points of equal dimension
type Metric interface {
	Distance(a, b Point) float64 // Distance returns the distance between a and b
	Name() string                // Name returns the name of this Metric
}

// PointRequest asks the owner of a point to send it to the requester
type PointRequest struct {
	RequesterRank int32  // RequesterRank is the rank which wants the point
	PointID       int32  // PointID is the index of the point within the owner's partition
	RequestID     uint64 // RequestID correlates the reply with this request
}

// PointReply carries the attributes of a requested point back to the requester
type PointReply struct {
	OwnerRank int32     // OwnerRank is the rank which served the point
	PointID   int32     // PointID is the index of the point within the owner's partition
	RequestID uint64    // RequestID echoes the RequestID of the corresponding PointRequest
	Values    []float64 // Values contains the attributes of the point
}

// ReleaseRequest informs the owner of a point that the requester no longer needs a served copy of it
type ReleaseRequest struct {
	RequesterRank int32 // RequesterRank is the rank which held the point
	PointID       int32 // PointID is the index of the point within the owner's partition
}

// A MailboxHandler answers point traffic addressed to a rank
type MailboxHandler interface {
	HandlePointRequest(ctx context.Context, req *PointRequest) (*PointReply, error) // HandlePointRequest blocks until the point has been served
	HandleRelease(ctx context.Context, req *ReleaseRequest) error                   // HandleRelease frees the serving buffer for a previously served point
}

// A Communicator connects a rank to the other members of its worker group. Implementations
// must answer incoming requests concurrently with any blocked outgoing request, otherwise two
// ranks waiting on each other would deadlock.
type Communicator interface {
	// Rank returns the rank of this process, 0 <= Rank() < Size()
	Rank() int
	// Size returns the number of ranks in the group
	Size() int
	// Serve starts routing requests addressed to this rank to handler
	Serve(handler MailboxHandler) error
	// AllGather exchanges one value per rank, returning all values indexed by rank
	AllGather(ctx context.Context, value int32) ([]int32, error)
	// Barrier blocks until every rank has entered the barrier
	Barrier(ctx context.Context) error
	// RequestPoint sends req to owner and blocks until the owner replies
	RequestPoint(ctx context.Context, owner int, req *PointRequest) (*PointReply, error)
	// ReleasePoint sends an administrative release to owner
	ReleasePoint(ctx context.Context, owner int, req *ReleaseRequest) error
	// Close stops serving and releases all connections
	Close() error
}
