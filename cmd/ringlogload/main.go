// Command ringlogload is a synthetic load generator for a ring log
// registry: it paces append/commit/peek/ack cycles against a
// rate.Limiter, records round-trip latencies, and prints a statistical
// summary on exit.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"time"

	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/stat"

	"github.com/menhirsys/ringlog"
)

func main() {
	var (
		ratePerSec  = flag.Float64("rate", 200, "append/commit cycles per second")
		duration    = flag.Duration("duration", 5*time.Second, "how long to run")
		payloadSize = flag.Int("payload", 64, "payload size in bytes per cycle")
		partition   = flag.Int64("partition-size", 1<<20, "total ring partition size in bytes")
	)
	flag.Parse()

	dir, err := os.MkdirTemp("", "ringlogload")
	if err != nil {
		fatalf("%v", err)
	}
	defer os.RemoveAll(dir)

	cfg := ringlog.Config{
		Dir:           dir,
		Logs:          []ringlog.LogSpec{{Name: "load"}},
		PartitionSize: *partition,
		FillerByte:    0xFF,
	}

	reg := ringlog.NewRegistry(cfg)
	if err := reg.Init(); err != nil {
		fatalf("init: %v", err)
	}
	defer reg.Deinit()

	limiter := rate.NewLimiter(rate.Limit(*ratePerSec), 1)
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	payload := make([]byte, *payloadSize)
	rng := rand.New(rand.NewSource(1))
	rng.Read(payload)

	var writeLatencies, readLatencies []float64
	var cycles int

	for {
		if err := limiter.Wait(ctx); err != nil {
			break // deadline reached
		}

		start := time.Now()
		if err := reg.WriteTail("load", payload); err != nil {
			fatalf("write_tail: %v", err)
		}
		if err := reg.WriteTailComplete("load"); err != nil {
			fatalf("write_tail_complete: %v", err)
		}
		writeLatencies = append(writeLatencies, time.Since(start).Seconds()*1e6)

		start = time.Now()
		drainOne(reg, "load")
		readLatencies = append(readLatencies, time.Since(start).Seconds()*1e6)

		cycles++
	}

	report("append+commit", writeLatencies)
	report("peek+ack", readLatencies)
	fmt.Printf("cycles: %d\n", cycles)
}

// drainOne peeks and acknowledges exactly one entry, fragmenting the read
// in small chunks the way a real consumer reading into a fixed buffer
// would.
func drainOne(reg *ringlog.Registry, name string) {
	if !reg.HasUnread(name) {
		return
	}
	buf := make([]byte, 16)
	var cursor int
	for {
		n, err := reg.ReadHead(name, buf, &cursor)
		if err != nil {
			fatalf("read_head: %v", err)
		}
		if n == 0 {
			break
		}
	}
	if err := reg.ReadHeadSuccess(name); err != nil {
		fatalf("read_head_success: %v", err)
	}
}

func report(label string, samples []float64) {
	if len(samples) == 0 {
		fmt.Printf("%s: no samples\n", label)
		return
	}
	mean, std := stat.MeanStdDev(samples, nil)
	sorted := sortedCopy(samples)
	p50 := stat.Quantile(0.50, stat.Empirical, sorted, nil)
	p99 := stat.Quantile(0.99, stat.Empirical, sorted, nil)
	fmt.Printf("%s: n=%d mean=%.1fus stddev=%.1fus p50=%.1fus p99=%.1fus\n",
		label, len(samples), mean, std, p50, p99)
}

// sortedCopy returns xs sorted ascending, as stat.Quantile requires.
func sortedCopy(xs []float64) []float64 {
	out := append([]float64(nil), xs...)
	sort.Float64s(out)
	return out
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ringlogload: "+format+"\n", args...)
	os.Exit(1)
}
