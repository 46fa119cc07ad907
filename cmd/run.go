package cmd

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-sif/disttable"
	"github.com/go-sif/disttable/cluster"
	"github.com/go-sif/disttable/datasource"
	"github.com/go-sif/disttable/datasource/file"
	"github.com/go-sif/disttable/datasource/parser/dsv"
	"github.com/go-sif/disttable/datasource/parser/jsonl"
	"github.com/go-sif/disttable/datasource/parser/serialized"
	"github.com/go-sif/disttable/logging"
	"github.com/go-sif/disttable/metric"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// runConfig holds the configuration of the run command
type runConfig struct {
	// group
	Rank            int
	GroupSize       int
	Host            string
	Port            int
	CoordinatorHost string
	CoordinatorPort int
	GroupID         string
	JoinTimeout     time.Duration
	RemoteLog       bool

	// data
	Source      string
	Format      string
	Delimiter   string
	HeaderLines int
	Paths       []string

	// table
	CacheSize       int
	CacheShards     int
	MaxOutstanding  int64
	RateLimit       float64
	SharedMemoryDir string
	LogLevel        string

	// index
	Metric    string
	Sample    float64
	LeafSize  int
	Seed      int64
	PrintTree bool

	// output
	Save        string
	Serializer  string
	Scan        bool
	MetricsAddr string
	Hold        bool
}

func newRunCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	conf := &runConfig{}
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run one rank of a disttable group.",
		Long: `disttable run loads this rank's partition of a table, joins the group
coordinated by rank 0 and optionally indexes, scans and saves the table.

With --hold, the rank keeps serving its points until it is interrupted or
asked to stop by "disttable stop".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRank(cmd.Context(), conf, stdout)
		},
	}
	flags := runCmd.Flags()

	flags.IntVar(&conf.Rank, "rank", 0, "Rank of this process within its group. Rank 0 coordinates the group.")
	flags.IntVar(&conf.GroupSize, "group-size", 1, "Number of ranks in the group.")
	flags.StringVar(&conf.Host, "host", "0.0.0.0", "Host to serve points on.")
	flags.IntVar(&conf.Port, "port", 0, "Port to serve points on. Defaults to 1643 + rank.")
	flags.StringVar(&conf.CoordinatorHost, "coordinator-host", "127.0.0.1", "Host of rank 0.")
	flags.IntVar(&conf.CoordinatorPort, "coordinator-port", cluster.DefaultPort, "Port of rank 0.")
	flags.StringVar(&conf.GroupID, "group-id", "", "Identifies the group. Generated by rank 0 if empty.")
	flags.DurationVar(&conf.JoinTimeout, "join-timeout", 30*time.Second, "How long to wait for every rank to join.")
	flags.BoolVar(&conf.RemoteLog, "remote-log", false, "Forward log messages to rank 0.")

	flags.StringVar(&conf.Source, "source", "", "Glob matching the files of this rank's partition.")
	flags.StringVar(&conf.Format, "format", "dsv", "Format of the source files: dsv, jsonl, lz4 or zstd.")
	flags.StringVar(&conf.Delimiter, "delimiter", ",", "Delimiter of dsv files.")
	flags.IntVar(&conf.HeaderLines, "header-lines", 0, "Number of lines to skip at the start of each file.")
	flags.StringSliceVar(&conf.Paths, "paths", []string{}, "JSON paths of the attributes in jsonl files. Each line is an array if empty.")

	flags.IntVar(&conf.CacheSize, "cache-size", disttable.DefaultCacheSize, "Number of released remote points to retain. Negative disables retention.")
	flags.IntVar(&conf.CacheShards, "cache-shards", 16, "Number of shards of the receive buffer.")
	flags.Int64Var(&conf.MaxOutstanding, "max-outstanding", 1, "Requests in flight to each owner.")
	flags.Float64Var(&conf.RateLimit, "rate-limit", 0, "Outbound requests per second. 0 is unlimited.")
	flags.StringVar(&conf.SharedMemoryDir, "shm-dir", "", "Directory where co-located ranks share their partitions.")
	flags.StringVar(&conf.LogLevel, "log-level", "INFO", "Minimum level to log: TRACE, DEBUG, INFO, WARN or ERROR.")

	flags.StringVar(&conf.Metric, "metric", "euclidean", "Metric of the spatial index.")
	flags.Float64Var(&conf.Sample, "sample", 0, "Fraction of the partition to index, in (0, 1]. 0 skips indexing.")
	flags.IntVar(&conf.LeafSize, "leaf-size", 0, "Maximum number of points per leaf of the index.")
	flags.Int64Var(&conf.Seed, "seed", 0, "Seed for sampling.")
	flags.BoolVar(&conf.PrintTree, "print-tree", false, "Print the spatial index.")

	flags.StringVar(&conf.Save, "save", "", "File to save this rank's partition to.")
	flags.StringVar(&conf.Serializer, "serializer", "lz4", "Serializer used by --save: lz4 or zstd.")
	flags.BoolVar(&conf.Scan, "scan", false, "Read every point of the table once.")
	flags.StringVar(&conf.MetricsAddr, "metrics-addr", "", "Address to serve Prometheus metrics on.")
	flags.BoolVar(&conf.Hold, "hold", false, "Keep serving until interrupted or stopped.")

	return runCmd
}

// parser returns the Parser for the configured source format
func (c *runConfig) parser() (datasource.Parser, error) {
	switch c.Format {
	case "dsv":
		delim := []rune(c.Delimiter)
		if len(delim) != 1 {
			return nil, fmt.Errorf("delimiter %q must be a single character", c.Delimiter)
		}
		return dsv.CreateParser(&dsv.ParserConf{HeaderLines: c.HeaderLines, Delimiter: delim[0]}), nil
	case "jsonl":
		return jsonl.CreateParser(&jsonl.ParserConf{HeaderLines: c.HeaderLines, Paths: c.Paths}), nil
	case "lz4", "zstd":
		return serialized.CreateParser(c.Format)
	default:
		return nil, fmt.Errorf("unknown format %q", c.Format)
	}
}

func (c *runConfig) nodeOptions(logger logging.Logger) *cluster.NodeOptions {
	return &cluster.NodeOptions{
		Rank:            c.Rank,
		GroupSize:       c.GroupSize,
		Host:            c.Host,
		Port:            c.Port,
		CoordinatorHost: c.CoordinatorHost,
		CoordinatorPort: c.CoordinatorPort,
		GroupID:         c.GroupID,
		JoinTimeout:     c.JoinTimeout,
		Logger:          logger,
	}
}

func (c *runConfig) tableOptions(logger logging.Logger, reg prometheus.Registerer) *disttable.Options {
	return &disttable.Options{
		CacheSize:              c.CacheSize,
		CacheShards:            c.CacheShards,
		MaxOutstandingPerOwner: c.MaxOutstanding,
		RequestRateLimit:       c.RateLimit,
		LeafSize:               c.LeafSize,
		Seed:                   c.Seed,
		Serializer:             c.Serializer,
		SharedMemoryDir:        c.SharedMemoryDir,
		Logger:                 logger,
		Registerer:             reg,
	}
}

// runRank runs one rank of a group from start to finish
func runRank(ctx context.Context, conf *runConfig, stdout io.Writer) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(conf.Source) == 0 {
		return errors.New("--source is required")
	}
	level, err := logging.ParseLevel(conf.LogLevel)
	if err != nil {
		return err
	}
	parser, err := conf.parser()
	if err != nil {
		return err
	}
	source := file.CreateSource(conf.Source, parser)
	var logger logging.Logger = logging.NewStdLogger(level)
	node, err := cluster.CreateNode(conf.nodeOptions(logger))
	if err != nil {
		return errors.Wrap(err, "starting node")
	}
	if conf.RemoteLog && conf.Rank != 0 {
		remote := node.CreateRemoteLogger(level)
		defer func() {
			if cerr := remote.Close(); cerr != nil {
				logger.Log(logging.DebugLevel, "Unable to flush remote log: %v", cerr)
			}
		}()
		logger = remote
	}

	reg := prometheus.NewRegistry()
	if len(conf.MetricsAddr) > 0 {
		stopMetrics, err := serveMetrics(conf.MetricsAddr, reg, logger)
		if err != nil {
			node.Close()
			return err
		}
		defer stopMetrics()
	}

	table := disttable.New(conf.tableOptions(logger, reg))
	if err := table.Init(ctx, source, node); err != nil {
		node.Close()
		return errors.Wrap(err, "initializing table")
	}
	defer func() {
		if cerr := table.Close(context.Background()); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "closing table")
		}
	}()
	fmt.Fprintf(stdout, "rank %d of %d: %d local points, %d total, %d attributes\n",
		table.Rank(), table.GroupSize(), table.LocalNEntries(), table.TotalEntries(), table.NAttributes())

	if conf.Sample > 0 {
		m, err := metric.FromName(conf.Metric)
		if err != nil {
			return err
		}
		if err := table.IndexData(m, conf.Sample); err != nil {
			return errors.Wrap(err, "indexing table")
		}
		if conf.PrintTree {
			if err := table.PrintTree(stdout); err != nil {
				return err
			}
		}
	}
	if conf.Scan {
		if err := scanTable(ctx, table); err != nil {
			return errors.Wrap(err, "scanning table")
		}
	}
	if len(conf.Save) > 0 {
		if err := table.SaveFile(conf.Save); err != nil {
			return errors.Wrapf(err, "saving partition to %s", conf.Save)
		}
	}
	if conf.Hold {
		hold(ctx, node, logger)
	}
	printStats(stdout, table.Rank(), table.Stats())
	return nil
}

// scanTable reads every point of the table once, in order of owner and index
func scanTable(ctx context.Context, table *disttable.Table) error {
	for owner := 0; owner < table.GroupSize(); owner++ {
		n, err := table.RankNEntries(owner)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if _, err := table.Get(ctx, owner, i); err != nil {
				return err
			}
			if err := table.Release(ctx, owner, i); err != nil {
				return err
			}
		}
	}
	return nil
}

// hold blocks until the process is interrupted, another rank asks this one to stop, or ctx is done
func hold(ctx context.Context, node *cluster.Node, logger logging.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	defer signal.Stop(c)
	logger.Log(logging.InfoLevel, "Rank %d serving on %s until stopped", node.Rank(), node.Addr())
	select {
	case sig := <-c:
		logger.Log(logging.InfoLevel, "Received %s; shutting down...", sig.String())
	case <-node.StopRequested():
		logger.Log(logging.InfoLevel, "Rank %d was asked to stop; shutting down...", node.Rank())
	case <-ctx.Done():
	}
}

// serveMetrics serves the metrics registered on reg at addr/metrics
func serveMetrics(addr string, reg *prometheus.Registry, logger logging.Logger) (func(), error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "listening for metrics")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
			logger.Log(logging.WarnLevel, "Metrics server failed: %v", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}

func printStats(w io.Writer, rank int, stats disttable.RuntimeStatistics) {
	fmt.Fprintf(w, "rank %d: %d local gets, %d cache hits, %d shared-memory hits, %d requests sent, %d served, %d releases sent, %d served\n",
		rank,
		stats.GetNumLocalGets(),
		stats.GetNumCacheHits(),
		stats.GetNumSharedMemoryHits(),
		stats.GetNumRequestsSent(),
		stats.GetNumRequestsServed(),
		stats.GetNumReleasesSent(),
		stats.GetNumReleasesServed(),
	)
}
