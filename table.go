package disttable

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/go-sif/disttable/errors"
	"github.com/go-sif/disttable/internal/directory"
	"github.com/go-sif/disttable/internal/inbox"
	"github.com/go-sif/disttable/internal/outbox"
	"github.com/go-sif/disttable/internal/partition"
	"github.com/go-sif/disttable/internal/pcache"
	"github.com/go-sif/disttable/internal/shm"
	"github.com/go-sif/disttable/internal/stats"
	"github.com/go-sif/disttable/logging"
	"github.com/go-sif/disttable/tree"
	"github.com/go-sif/disttable/types"
	"github.com/hashicorp/go-multierror"
)

type tableState = int32

const (
	uninitialized tableState = iota
	initializing
	ready
	closed
)

// Table is one rank's view of a point table partitioned across a group of ranks. Every
// rank owns one partition and can read points owned by any other rank.
type Table struct {
	state       int32 // accessed atomically
	opts        *Options
	logger      logging.Logger
	comm        types.Communicator
	rank        int
	partition   *partition.Partition
	directory   *directory.Directory
	inbox       *inbox.Inbox
	outbox      *outbox.Outbox
	publication *shm.Publication
	stats       *stats.TableStatistics
	treeLock    sync.RWMutex
	tree        *tree.Tree
}

// New creates an uninitialized Table
func New(opts *Options) *Table {
	if opts == nil {
		opts = &Options{}
	}
	opts = CloneOptions(opts)
	ensureDefaultOptionsValues(opts)
	return &Table{
		opts:      opts,
		logger:    opts.Logger,
		partition: partition.New(),
	}
}

func (t *Table) checkReady(op string) error {
	if atomic.LoadInt32(&t.state) != ready {
		return errors.UninitializedAccessError{Op: op}
	}
	return nil
}

// Init loads this rank's partition from source, starts answering requests from the other
// ranks of comm and exchanges partition sizes with them. Every rank of the group must
// call Init, and no rank may Get remote points until its own Init has returned.
func (t *Table) Init(ctx context.Context, source types.PointSource, comm types.Communicator) (err error) {
	if !atomic.CompareAndSwapInt32(&t.state, uninitialized, initializing) {
		return errors.DuplicateInitError{What: "Table"}
	}
	var cleanup []func() error
	defer func() {
		if err == nil {
			atomic.StoreInt32(&t.state, ready)
			return
		}
		for i := len(cleanup) - 1; i >= 0; i-- {
			if cerr := cleanup[i](); cerr != nil {
				t.logger.Log(logging.WarnLevel, "Unable to clean up after failed Init: %v", cerr)
			}
		}
		atomic.StoreInt32(&t.state, closed)
	}()

	t.comm = comm
	t.rank = comm.Rank()
	if err = t.partition.Init(source); err != nil {
		return err
	}
	t.logger.Log(logging.DebugLevel, "Rank %d loaded %d points of %d attributes from %s",
		t.rank, t.partition.NEntries(), t.partition.NAttributes(), source.String())
	t.stats, err = stats.New(t.rank, t.opts.Registerer)
	if err != nil {
		return fmt.Errorf("Unable to register metrics: %w", err)
	}
	cleanup = append(cleanup, func() error {
		t.stats.Unregister()
		return nil
	})
	if len(t.opts.SharedMemoryDir) > 0 {
		t.publication, err = shm.Publish(t.opts.SharedMemoryDir, t.rank, t.partition.NAttributes(), t.partition.Values())
		if err != nil {
			return err
		}
		cleanup = append(cleanup, t.publication.Close)
	}
	t.inbox = inbox.New(t.partition, &inbox.Config{
		Rank:      t.rank,
		QueueSize: t.opts.InboxQueueSize,
		Received:  &pcache.LRUConfig{Size: t.opts.retainedPoints(), Shards: t.opts.CacheShards},
		Stats:     t.stats,
		Logger:    t.logger,
	})
	t.inbox.Start()
	cleanup = append(cleanup, func() error {
		return t.inbox.Stop(context.Background())
	})
	if err = comm.Serve(t.inbox); err != nil {
		return err
	}
	t.directory, err = directory.Gather(ctx, t.partition.NEntries(), comm)
	if err != nil {
		return err
	}
	t.outbox = outbox.New(comm, t.partition, t.directory, t.inbox.Received(), &outbox.Config{
		MaxOutstandingPerOwner: t.opts.MaxOutstandingPerOwner,
		RequestRateLimit:       t.opts.RequestRateLimit,
		SharedMemoryDir:        t.opts.SharedMemoryDir,
		Stats:                  t.stats,
		Logger:                 t.logger,
	})
	t.logger.Log(logging.InfoLevel, "Rank %d of %d joined a table of %d points", t.rank, t.directory.Size(), t.directory.Total())
	return nil
}

// Get returns the point at index within the partition of owner. Points owned by other ranks
// stay borrowed until they are passed to Release. The result must not be modified.
func (t *Table) Get(ctx context.Context, owner int, index int) (types.Point, error) {
	if err := t.checkReady("Get"); err != nil {
		return nil, err
	}
	return t.outbox.Get(ctx, owner, index)
}

// Release returns a point obtained from Get
func (t *Table) Release(ctx context.Context, owner int, index int) error {
	if err := t.checkReady("Release"); err != nil {
		return err
	}
	return t.outbox.Release(ctx, owner, index)
}

// IndexData builds a spatial index over this rank's points, or over a uniform sample of
// them when sampleProbability < 1
func (t *Table) IndexData(metric types.Metric, sampleProbability float64) error {
	if err := t.checkReady("IndexData"); err != nil {
		return err
	}
	idx, err := t.opts.Builder.Build(t.partition, metric, &tree.BuildConf{
		Owner:             t.rank,
		LeafSize:          t.opts.LeafSize,
		SampleProbability: sampleProbability,
		Seed:              t.opts.Seed,
	})
	if err != nil {
		return err
	}
	if err := idx.Validate(); err != nil {
		return err
	}
	t.treeLock.Lock()
	t.tree = idx
	t.treeLock.Unlock()
	t.logger.Log(logging.DebugLevel, "Rank %d indexed %d of %d points into %d nodes under %s",
		t.rank, idx.NumPoints(), t.partition.NEntries(), idx.NumNodes(), metric.Name())
	return nil
}

// IsIndexed returns true iff IndexData has completed successfully
func (t *Table) IsIndexed() bool {
	t.treeLock.RLock()
	defer t.treeLock.RUnlock()
	return t.tree != nil
}

// GetTree returns the spatial index built by IndexData
func (t *Table) GetTree() (*tree.Tree, error) {
	t.treeLock.RLock()
	defer t.treeLock.RUnlock()
	if t.tree == nil {
		return nil, errors.UninitializedAccessError{Op: "GetTree"}
	}
	return t.tree, nil
}

// PrintTree writes a human-readable rendering of the spatial index to w
func (t *Table) PrintTree(w io.Writer) error {
	idx, err := t.GetTree()
	if err != nil {
		return err
	}
	return idx.Print(w)
}

// RankNEntries returns the number of points owned by rank
func (t *Table) RankNEntries(rank int) (int, error) {
	if err := t.checkReady("RankNEntries"); err != nil {
		return 0, err
	}
	n, err := t.directory.At(rank)
	if err != nil {
		t.logger.Log(logging.WarnLevel, "Rank %d queried the size of %v", t.rank, err)
		return 0, err
	}
	return n, nil
}

// LocalNEntries returns the number of points owned by this rank, or 0 before Init
func (t *Table) LocalNEntries() int {
	return t.partition.NEntries()
}

// NAttributes returns the number of attributes of every point, or 0 before Init
func (t *Table) NAttributes() int {
	return t.partition.NAttributes()
}

// TotalEntries returns the number of points across every rank, or 0 before Init
func (t *Table) TotalEntries() int {
	if t.checkReady("TotalEntries") != nil {
		return 0
	}
	return t.directory.Total()
}

// Rank returns the rank of this process within its group, or 0 before Init
func (t *Table) Rank() int {
	return t.rank
}

// GroupSize returns the number of ranks in the group, or 0 before Init
func (t *Table) GroupSize() int {
	if t.checkReady("GroupSize") != nil {
		return 0
	}
	return t.directory.Size()
}

// IsInitialized returns true iff Init has completed and Close has not been called
func (t *Table) IsInitialized() bool {
	return atomic.LoadInt32(&t.state) == ready
}

// Stats returns the point traffic statistics of this rank, or nil before Init
func (t *Table) Stats() RuntimeStatistics {
	if t.stats == nil {
		return nil
	}
	return t.stats
}

// Save writes this rank's partition to w using the configured serializer
func (t *Table) Save(w io.Writer) error {
	if err := t.checkReady("Save"); err != nil {
		return err
	}
	s, err := partition.SerializerFromName(t.opts.Serializer)
	if err != nil {
		return err
	}
	return t.partition.Save(w, s)
}

// SaveFile writes this rank's partition to a file, replacing it atomically
func (t *Table) SaveFile(path string) (err error) {
	if err := t.checkReady("SaveFile"); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp"))
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()
	if err = t.Save(f); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// Close releases borrowed points at their owners, waits until every rank of the group has
// reached Close, then stops serving and releases all resources. Every rank must call Close.
func (t *Table) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&t.state, ready, closed) {
		return nil
	}
	var errs *multierror.Error
	if err := t.outbox.Purge(ctx); err != nil {
		errs = multierror.Append(errs, err)
	}
	// peers may still be reading our points until they reach Close themselves
	if err := t.comm.Barrier(ctx); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("Unable to synchronize shutdown: %w", err))
	}
	if err := t.inbox.Stop(ctx); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := t.outbox.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if t.publication != nil {
		if err := t.publication.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := t.comm.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	t.stats.Unregister()
	t.logger.Log(logging.DebugLevel, "Rank %d closed its table after %s", t.rank, t.stats.GetRuntime())
	return errs.ErrorOrNil()
}
