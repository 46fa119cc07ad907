package disttable

import (
	"log"

	"github.com/go-sif/disttable/logging"
	"github.com/go-sif/disttable/tree"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultCacheSize is the number of unreferenced remote points a Table retains by default
	DefaultCacheSize = 4096
	// NoRetention disables the retention of remote points once they are released
	NoRetention = -1
)

// Options configures a Table
type Options struct {
	CacheSize              int                   // number of unreferenced remote points retained after Release. Defaults to DefaultCacheSize; NoRetention releases them at their owner immediately.
	CacheShards            int                   // number of independently locked shards of the receive buffer. Defaults to 16.
	MaxOutstandingPerOwner int64                 // bound on requests in flight to each owner. Defaults to 1, which serializes requests per owner.
	RequestRateLimit       float64               // outbound requests per second. Defaults to 0, which is unlimited.
	InboxQueueSize         int                   // number of incoming requests buffered ahead of the inbox service loop. Defaults to 128.
	LeafSize               int                   // maximum number of points per leaf of the spatial index. Defaults to tree.DefaultLeafSize.
	Seed                   int64                 // seeds the sampling of points when indexing a sample
	Builder                tree.Builder          // constructs the spatial index. Defaults to a tree.MidpointBuilder.
	Serializer             string                // name of the partition serializer used by Save ("lz4" or "zstd"). Defaults to "lz4".
	SharedMemoryDir        string                // directory where co-located ranks publish their partitions. Defaults to "", which disables the shared-memory fast path.
	LogLevel               string                // minimum level logged by the default Logger, e.g. "WARN". Defaults to "INFO".
	Logger                 logging.Logger        // receives log messages. Defaults to the standard library logger.
	Registerer             prometheus.Registerer // receives this Table's metrics. Defaults to nil, which disables them.
}

// CloneOptions makes a copy of an Options
func CloneOptions(opts *Options) *Options {
	return &Options{
		CacheSize:              opts.CacheSize,
		CacheShards:            opts.CacheShards,
		MaxOutstandingPerOwner: opts.MaxOutstandingPerOwner,
		RequestRateLimit:       opts.RequestRateLimit,
		InboxQueueSize:         opts.InboxQueueSize,
		LeafSize:               opts.LeafSize,
		Seed:                   opts.Seed,
		Builder:                opts.Builder,
		Serializer:             opts.Serializer,
		SharedMemoryDir:        opts.SharedMemoryDir,
		LogLevel:               opts.LogLevel,
		Logger:                 opts.Logger,
		Registerer:             opts.Registerer,
	}
}

func ensureDefaultOptionsValues(opts *Options) {
	if opts.CacheSize == 0 {
		opts.CacheSize = DefaultCacheSize
	} else if opts.CacheSize < 0 {
		opts.CacheSize = NoRetention
	}
	if opts.CacheShards == 0 {
		opts.CacheShards = 16
	}
	if opts.MaxOutstandingPerOwner == 0 {
		opts.MaxOutstandingPerOwner = 1
	}
	if opts.InboxQueueSize == 0 {
		opts.InboxQueueSize = 128
	}
	if opts.LeafSize == 0 {
		opts.LeafSize = tree.DefaultLeafSize
	}
	if opts.Builder == nil {
		opts.Builder = &tree.MidpointBuilder{}
	}
	if len(opts.Serializer) == 0 {
		opts.Serializer = "lz4"
	}
	if len(opts.LogLevel) == 0 {
		opts.LogLevel = logging.LogLevelToString(logging.InfoLevel)
	}
	if opts.Logger == nil {
		level, err := logging.ParseLevel(opts.LogLevel)
		if err != nil {
			log.Printf("WARNING: %v, logging at INFO", err)
			level = logging.InfoLevel
		}
		opts.Logger = logging.NewStdLogger(level)
	}
}

// retainedPoints is the receive buffer capacity implied by CacheSize
func (o *Options) retainedPoints() int {
	if o.CacheSize < 0 {
		return 0
	}
	return o.CacheSize
}
