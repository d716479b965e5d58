package loadgen

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// SafeHistogram is a thread-safe latency histogram. Values are recorded in
// microseconds, from 1us to 10 minutes at 3 significant figures.
type SafeHistogram struct {
	hist *hdrhistogram.Histogram
	mu   sync.Mutex
}

func NewSafeHistogram() *SafeHistogram {
	h := hdrhistogram.New(1, int64(10*time.Minute/time.Microsecond), 3)
	return &SafeHistogram{hist: h}
}

// Record adds one operation latency.
func (h *SafeHistogram) Record(d time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.RecordValue(d.Microseconds())
}

// Quantile returns the latency at quantile q (0-100).
func (h *SafeHistogram) Quantile(q float64) time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return time.Duration(h.hist.ValueAtQuantile(q)) * time.Microsecond
}

func (h *SafeHistogram) Mean() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return time.Duration(h.hist.Mean()) * time.Microsecond
}

func (h *SafeHistogram) Max() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return time.Duration(h.hist.Max()) * time.Microsecond
}

// Report aggregates the outcomes of one pool run.
type Report struct {
	Outcomes []Outcome

	// Elapsed is the wall-clock span of the whole pool, first issue to
	// last completion.
	Elapsed time.Duration

	Success int
	Fail    int

	// TotalBytes sums the payload bytes of successful transfers.
	TotalBytes int64

	// AvgTime is the mean per-operation latency over successful
	// operations, in seconds.
	AvgTime float64

	// Throughput is TotalBytes divided by the longest single worker
	// elapsed time, in bytes per second. The slowest worker defines when
	// the pool's transfer completed.
	Throughput float64

	P50 time.Duration
	P95 time.Duration
	P99 time.Duration
}

// BuildReport folds outcomes into aggregate figures. Latency statistics
// cover only successful operations, matching how the per-operation average
// is reported.
func BuildReport(outcomes []Outcome, elapsed time.Duration) *Report {
	r := &Report{Outcomes: outcomes, Elapsed: elapsed}

	hist := NewSafeHistogram()
	var (
		latencySum time.Duration
		maxElapsed time.Duration
	)

	for _, out := range outcomes {
		if out.Elapsed > maxElapsed {
			maxElapsed = out.Elapsed
		}
		if !out.Success {
			r.Fail++
			continue
		}
		r.Success++
		r.TotalBytes += out.Bytes
		latencySum += out.Elapsed
		if err := hist.Record(out.Elapsed); err != nil {
			// Out-of-range for the histogram; the sum still counts it.
			continue
		}
	}

	if r.Success > 0 {
		r.AvgTime = latencySum.Seconds() / float64(r.Success)
		r.P50 = hist.Quantile(50)
		r.P95 = hist.Quantile(95)
		r.P99 = hist.Quantile(99)
	}
	if maxElapsed > 0 {
		r.Throughput = float64(r.TotalBytes) / maxElapsed.Seconds()
	}
	return r
}
