package ringlog

import (
	"sync"
	"time"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ringMetrics mirrors the shape of the teacher WAL's walMetrics: one
// struct of prometheus collectors built once per Registry, passed down to
// every Log it owns. Latency histograms are kept outside prometheus
// (HdrHistogram, like the rest of the corpus's bench tooling expects)
// since the design doesn't need a -quantiles summary per scrape, just a
// point-in-time distribution snapshot on demand.
type ringMetrics struct {
	appends          prometheus.Counter
	commits          prometheus.Counter
	bytesWritten     prometheus.Counter
	entriesEvicted   prometheus.Counter
	entriesDelivered prometheus.Counter
	entryBytesRead   prometheus.Counter
	abandonedTails   prometheus.Counter
	ringUtilization  *prometheus.GaugeVec

	mu            sync.Mutex
	appendLatency *hdrhistogram.Histogram
	readLatency   *hdrhistogram.Histogram
}

func newRingMetrics(reg prometheus.Registerer) *ringMetrics {
	return &ringMetrics{
		appends: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ringlog_appends_total",
			Help: "Number of WriteTail calls that appended to an entry.",
		}),
		commits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ringlog_commits_total",
			Help: "Number of calls to WriteTailComplete that advanced tail.",
		}),
		bytesWritten: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ringlog_bytes_written_total",
			Help: "Payload bytes appended via WriteTail, before framing overhead.",
		}),
		entriesEvicted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ringlog_entries_evicted_total",
			Help: "Number of entries dropped from the head to make room for a write.",
		}),
		entriesDelivered: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ringlog_entries_delivered_total",
			Help: "Number of entries fully delivered to readers via ReadHeadSuccess.",
		}),
		entryBytesRead: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ringlog_entry_bytes_read_total",
			Help: "Payload bytes delivered via ReadHead.",
		}),
		abandonedTails: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ringlog_abandoned_tails_total",
			Help: "Number of in-progress tail entries discarded by a failed commit.",
		}),
		ringUtilization: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "ringlog_ring_utilization_ratio",
			Help: "Fraction of each log's usable ring capacity currently occupied.",
		}, []string{"log"}),
		appendLatency: hdrhistogram.New(1, int64(10*time.Second), 3),
		readLatency:   hdrhistogram.New(1, int64(10*time.Second), 3),
	}
}

func (m *ringMetrics) observeAppend(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.appendLatency.RecordValue(d.Nanoseconds())
}

func (m *ringMetrics) observeRead(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.readLatency.RecordValue(d.Nanoseconds())
}

// latencySnapshot returns copies of the current append/read histograms,
// safe to hand to a reporter without racing further RecordValue calls.
func (m *ringMetrics) latencySnapshot() (append_, read *hdrhistogram.Histogram) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return hdrhistogram.Import(m.appendLatency.Export()), hdrhistogram.Import(m.readLatency.Export())
}
