package stats

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "disttable"

// TableStatistics counts the point traffic of one rank's table
type TableStatistics struct {
	// accessed atomically, kept first for 64-bit alignment
	localGets         int64
	cacheHits         int64
	shmHits           int64
	requestsSent      int64
	requestsServed    int64
	servingBufferHits int64
	releasesSent      int64
	releasesServed    int64

	startTime  time.Time
	collectors *collectors
	reg        prometheus.Registerer
}

type collectors struct {
	gets           *prometheus.CounterVec
	served         *prometheus.CounterVec
	releases       *prometheus.CounterVec
	requestLatency prometheus.Histogram
}

// New creates TableStatistics for a rank. If reg is non-nil, Prometheus collectors
// labelled with the rank are registered on it.
func New(rank int, reg prometheus.Registerer) (*TableStatistics, error) {
	ts := &TableStatistics{startTime: time.Now()}
	if reg == nil {
		return ts, nil
	}
	labels := prometheus.Labels{"rank": strconv.Itoa(rank)}
	c := &collectors{
		gets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "gets_total",
			Help:        "Point reads, by where the point was found",
			ConstLabels: labels,
		}, []string{"source"}),
		served: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "requests_served_total",
			Help:        "Point requests answered by the inbox, by whether the serving buffer already held the point",
			ConstLabels: labels,
		}, []string{"buffer"}),
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "releases_total",
			Help:        "Release messages, by direction",
			ConstLabels: labels,
		}, []string{"direction"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   metricsNamespace,
			Name:        "request_latency_seconds",
			Help:        "Round-trip latency of remote point requests",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.00005, 4, 10),
		}),
	}
	all := []prometheus.Collector{c.gets, c.served, c.releases, c.requestLatency}
	for i, collector := range all {
		if err := reg.Register(collector); err != nil {
			for _, registered := range all[:i] {
				reg.Unregister(registered)
			}
			return nil, err
		}
	}
	ts.collectors = c
	ts.reg = reg
	return ts, nil
}

// Unregister removes this rank's collectors from the registry they were registered on.
// Counters keep counting afterwards.
func (ts *TableStatistics) Unregister() {
	if ts.reg == nil {
		return
	}
	c := ts.collectors
	for _, collector := range []prometheus.Collector{c.gets, c.served, c.releases, c.requestLatency} {
		ts.reg.Unregister(collector)
	}
	ts.reg = nil
}

// RecordLocalGet counts a read of a point owned by this rank
func (ts *TableStatistics) RecordLocalGet() {
	atomic.AddInt64(&ts.localGets, 1)
	if ts.collectors != nil {
		ts.collectors.gets.WithLabelValues("local").Inc()
	}
}

// RecordCacheHit counts a read answered by the receive buffer
func (ts *TableStatistics) RecordCacheHit() {
	atomic.AddInt64(&ts.cacheHits, 1)
	if ts.collectors != nil {
		ts.collectors.gets.WithLabelValues("cache").Inc()
	}
}

// RecordShmHit counts a read answered by a peer's shared-memory segment
func (ts *TableStatistics) RecordShmHit() {
	atomic.AddInt64(&ts.shmHits, 1)
	if ts.collectors != nil {
		ts.collectors.gets.WithLabelValues("shm").Inc()
	}
}

// RecordRequest counts a point request sent to a peer, and its round-trip time
func (ts *TableStatistics) RecordRequest(latency time.Duration) {
	atomic.AddInt64(&ts.requestsSent, 1)
	if ts.collectors != nil {
		ts.collectors.gets.WithLabelValues("remote").Inc()
		ts.collectors.requestLatency.Observe(latency.Seconds())
	}
}

// RecordServed counts a point request answered for a peer
func (ts *TableStatistics) RecordServed(bufferHit bool) {
	atomic.AddInt64(&ts.requestsServed, 1)
	label := "miss"
	if bufferHit {
		atomic.AddInt64(&ts.servingBufferHits, 1)
		label = "hit"
	}
	if ts.collectors != nil {
		ts.collectors.served.WithLabelValues(label).Inc()
	}
}

// RecordReleaseSent counts a release message sent to a peer
func (ts *TableStatistics) RecordReleaseSent() {
	atomic.AddInt64(&ts.releasesSent, 1)
	if ts.collectors != nil {
		ts.collectors.releases.WithLabelValues("sent").Inc()
	}
}

// RecordReleaseServed counts a release message received from a peer
func (ts *TableStatistics) RecordReleaseServed() {
	atomic.AddInt64(&ts.releasesServed, 1)
	if ts.collectors != nil {
		ts.collectors.releases.WithLabelValues("served").Inc()
	}
}

// GetStartTime returns the time at which statistics tracking began
func (ts *TableStatistics) GetStartTime() time.Time {
	return ts.startTime
}

// GetRuntime returns the time elapsed since statistics tracking began
func (ts *TableStatistics) GetRuntime() time.Duration {
	return time.Since(ts.startTime)
}

// GetNumLocalGets returns the number of reads of points owned by this rank
func (ts *TableStatistics) GetNumLocalGets() int64 {
	return atomic.LoadInt64(&ts.localGets)
}

// GetNumCacheHits returns the number of reads answered by the receive buffer
func (ts *TableStatistics) GetNumCacheHits() int64 {
	return atomic.LoadInt64(&ts.cacheHits)
}

// GetNumSharedMemoryHits returns the number of reads answered by shared memory
func (ts *TableStatistics) GetNumSharedMemoryHits() int64 {
	return atomic.LoadInt64(&ts.shmHits)
}

// GetNumRequestsSent returns the number of point requests sent to peers
func (ts *TableStatistics) GetNumRequestsSent() int64 {
	return atomic.LoadInt64(&ts.requestsSent)
}

// GetNumRequestsServed returns the number of point requests answered for peers
func (ts *TableStatistics) GetNumRequestsServed() int64 {
	return atomic.LoadInt64(&ts.requestsServed)
}

// GetNumServingBufferHits returns the number of served requests which reused the serving buffer
func (ts *TableStatistics) GetNumServingBufferHits() int64 {
	return atomic.LoadInt64(&ts.servingBufferHits)
}

// GetNumReleasesSent returns the number of release messages sent to peers
func (ts *TableStatistics) GetNumReleasesSent() int64 {
	return atomic.LoadInt64(&ts.releasesSent)
}

// GetNumReleasesServed returns the number of release messages received from peers
func (ts *TableStatistics) GetNumReleasesServed() int64 {
	return atomic.LoadInt64(&ts.releasesServed)
}
