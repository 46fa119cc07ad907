package directory

import (
	"context"
	"fmt"

	"github.com/go-sif/disttable/errors"
	"github.com/go-sif/disttable/types"
)

// Directory is the replicated table of how many points each rank owns.
// Every rank holds an identical copy, built once by a collective exchange.
type Directory struct {
	counts  []int
	offsets []int
	total   int
}

// Gather performs the all-gather of localCount across the worker group of comm and
// builds a Directory from the result. It must be called by every rank.
func Gather(ctx context.Context, localCount int, comm types.Communicator) (*Directory, error) {
	if localCount < 0 || int64(localCount) > int64(^uint32(0)>>1) {
		return nil, fmt.Errorf("Local entry count %d cannot be exchanged", localCount)
	}
	counts, err := comm.AllGather(ctx, int32(localCount))
	if err != nil {
		return nil, fmt.Errorf("Unable to gather partition sizes: %w", err)
	}
	if len(counts) != comm.Size() {
		return nil, fmt.Errorf("All-gather returned %d counts for a group of %d", len(counts), comm.Size())
	}
	if int(counts[comm.Rank()]) != localCount {
		return nil, fmt.Errorf("All-gather reported %d entries for rank %d, which owns %d", counts[comm.Rank()], comm.Rank(), localCount)
	}
	return FromCounts(counts)
}

// FromCounts creates a Directory from per-rank entry counts
func FromCounts(counts []int32) (*Directory, error) {
	d := &Directory{
		counts:  make([]int, len(counts)),
		offsets: make([]int, len(counts)),
	}
	for r, c := range counts {
		if c < 0 {
			return nil, fmt.Errorf("Rank %d reported a negative entry count %d", r, c)
		}
		d.offsets[r] = d.total
		d.counts[r] = int(c)
		d.total += int(c)
	}
	return d, nil
}

// At returns the number of points owned by rank
func (d *Directory) At(rank int) (int, error) {
	if rank < 0 || rank >= len(d.counts) {
		return -1, errors.InvalidRankError{Rank: rank, Size: len(d.counts)}
	}
	return d.counts[rank], nil
}

// Offset returns the global position of the first point owned by rank
func (d *Directory) Offset(rank int) (int, error) {
	if rank < 0 || rank >= len(d.counts) {
		return -1, errors.InvalidRankError{Rank: rank, Size: len(d.counts)}
	}
	return d.offsets[rank], nil
}

// Locate maps a global position onto the PointID which holds it
func (d *Directory) Locate(global int) (types.PointID, error) {
	if global < 0 || global >= d.total {
		return types.PointID{}, errors.OutOfRangeError{Index: global, Size: d.total}
	}
	// ranks are few, a linear scan is fine
	for r := len(d.offsets) - 1; r >= 0; r-- {
		if d.counts[r] > 0 && global >= d.offsets[r] {
			return types.PointID{Owner: int32(r), Index: int32(global - d.offsets[r])}, nil
		}
	}
	return types.PointID{}, errors.OutOfRangeError{Index: global, Size: d.total}
}

// Size returns the number of ranks in the group
func (d *Directory) Size() int {
	return len(d.counts)
}

// Total returns the number of points across all ranks
func (d *Directory) Total() int {
	return d.total
}
