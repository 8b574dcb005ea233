// Soak test runner for long-duration filter testing.
//
// This tool drives a kinematic Tracker with a synthetic constant-acceleration
// trajectory and noisy measurements, and watches for non-finite estimates,
// covariance divergence and memory growth over extended periods.
//
// Usage:
//
//	go run ./cmd/soak -duration 1h
//	go run ./cmd/soak -duration 10m -rate 100 -noise 0.2 -log-level debug
//
// Exposes pprof endpoint at :6060 for live profiling:
//
//	curl http://localhost:6060/debug/pprof/heap > heap.pprof
//	go tool pprof heap.pprof
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"net/http"
	_ "net/http/pprof" // Enable pprof endpoints
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/pion/logging"
	"gonum.org/v1/gonum/mat"

	"github.com/thesyncim/kinematic/pkg/kinematic"
	"github.com/thesyncim/kinematic/pkg/kinematic/testutil"
)

const (
	statusInterval = time.Minute
	maxHeapMB      = 100

	// maxGapTicks is how many tick intervals may pass between updates
	// before the tracker rejects the step as a gap.
	maxGapTicks = 5
)

// SoakResult contains the results of a soak test run.
type SoakResult struct {
	Duration         time.Duration
	TotalUpdates     int
	RejectedUpdates  int
	Resets           int
	LastPositionErr  float64
	PeakPositionErr  float64
	PeakHeapMB       float64
	TotalGCCycles    uint32
	SuspiciousEvents int
	Status           string
}

// finish marks a run that accepted no updates as failed.
func (r SoakResult) finish() SoakResult {
	if r.TotalUpdates == 0 {
		r.Status = "FAIL"
	}
	return r
}

type soakConfig struct {
	duration       time.Duration
	rate           float64
	noise          float64
	seed           uint64
	resetThreshold float64
}

func main() {
	duration := flag.Duration("duration", time.Hour, "Test duration (e.g., 10m, 1h, 24h)")
	rate := flag.Float64("rate", 50, "Measurement rate in Hz")
	noise := flag.Float64("noise", 0.5, "Measurement noise standard deviation")
	seed := flag.Uint64("seed", 1, "Noise seed")
	resetThreshold := flag.Float64("reset-threshold", 1e6, "Reset the tracker when the covariance norm exceeds this")
	pprofPort := flag.Int("pprof-port", 6060, "Port for pprof HTTP server")
	logLevel := flag.String("log-level", "info", "Log level: disabled, error, warn, info, debug, trace")
	flag.Parse()

	loggerFactory := logging.NewDefaultLoggerFactory()
	loggerFactory.DefaultLogLevel = parseLogLevel(*logLevel)
	log := loggerFactory.NewLogger("soak")

	fmt.Printf("Kinematic Filter Soak Test Runner\n")
	fmt.Printf("=================================\n")
	fmt.Printf("Duration: %v\n", *duration)
	fmt.Printf("Rate:     %.1f Hz\n", *rate)
	fmt.Printf("Noise:    %.3f\n", *noise)
	fmt.Printf("Pprof:    http://localhost:%d/debug/pprof/\n", *pprofPort)
	fmt.Printf("\n")

	if _, err := tickInterval(*rate); err != nil {
		log.Errorf("%v", err)
		os.Exit(2)
	}

	go func() {
		addr := fmt.Sprintf(":%d", *pprofPort)
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Warnf("pprof server failed: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Infof("received %v, shutting down gracefully", sig)
		cancel()
	}()

	result := runSoakTest(ctx, soakConfig{
		duration:       *duration,
		rate:           *rate,
		noise:          *noise,
		seed:           *seed,
		resetThreshold: *resetThreshold,
	}, loggerFactory)

	printSummary(result)

	if result.Status == "PASS" {
		os.Exit(0)
	}
	os.Exit(1)
}

func runSoakTest(ctx context.Context, cfg soakConfig, loggerFactory logging.LoggerFactory) SoakResult {
	log := loggerFactory.NewLogger("soak")

	interval, err := tickInterval(cfg.rate)
	if err != nil {
		log.Errorf("%v", err)
		return SoakResult{Status: "FAIL"}
	}

	trajectory := testutil.Trajectory{
		Velocity:     [3]float64{1, -0.5, 0.25},
		Acceleration: [3]float64{0.01, 0, -0.005},
	}
	sensor := testutil.NewSensor(cfg.noise, cfg.noise, cfg.seed)
	acceleration := mat.NewVecDense(kinematic.ControlDim, trajectory.Acceleration[:])

	config := kinematic.DefaultTrackerConfig()
	config.Filter.LoggerFactory = loggerFactory
	config.MaxTimeStep = maxGapTicks * interval

	prior := func(t float64) (*mat.VecDense, *mat.Dense) {
		s := trajectory.StateAt(t)
		return mat.NewVecDense(kinematic.StateDim, s[:]), kinematic.IdentityMatrix()
	}

	startTime := time.Now()
	state, cov := prior(0)
	// nil clock: dt comes from the monotonic clock.
	tracker, err := kinematic.NewTracker(state, cov, config, nil)
	if err != nil {
		log.Errorf("failed to create tracker: %v", err)
		return SoakResult{Status: "FAIL"}
	}

	result := SoakResult{Status: "PASS"}
	var memStats runtime.MemStats
	lastStatusTime := startTime

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Infof("[%s] starting soak test", formatDuration(0))

	for {
		select {
		case <-ctx.Done():
			result.Duration = time.Since(startTime)
			return result.finish()

		case now := <-ticker.C:
			elapsed := now.Sub(startTime)
			if elapsed >= cfg.duration {
				result.Duration = elapsed
				return result.finish()
			}

			truth := trajectory.StateAt(elapsed.Seconds())
			measured := sensor.Measure(truth)
			estimate, err := tracker.Update(mat.NewVecDense(kinematic.StateDim, measured[:]), acceleration)
			if err != nil {
				result.RejectedUpdates++
				log.Debugf("[%s] update rejected: %v", formatDuration(elapsed), err)
				state, cov := prior(elapsed.Seconds())
				if err := tracker.Reset(state, cov); err != nil {
					log.Errorf("[%s] reset failed: %v", formatDuration(elapsed), err)
					result.Status = "FAIL"
					return result.finish()
				}
				result.Resets++
				continue
			}
			result.TotalUpdates++

			posErr := positionError(estimate, truth)
			result.LastPositionErr = posErr
			if math.IsNaN(posErr) || math.IsInf(posErr, 0) {
				log.Errorf("[%s] non-finite estimate: %v", formatDuration(elapsed), mat.Formatted(estimate.T()))
				result.SuspiciousEvents++
				result.Status = "FAIL"
			} else if posErr > result.PeakPositionErr {
				result.PeakPositionErr = posErr
			}

			if norm := mat.Norm(tracker.Covariance(), math.Inf(1)); norm > cfg.resetThreshold {
				log.Debugf("[%s] covariance norm %.3g above threshold, resetting", formatDuration(elapsed), norm)
				state, cov := prior(elapsed.Seconds())
				if err := tracker.Reset(state, cov); err != nil {
					log.Errorf("[%s] reset failed: %v", formatDuration(elapsed), err)
					result.Status = "FAIL"
					return result.finish()
				}
				result.Resets++
			}

			if now.Sub(lastStatusTime) >= statusInterval {
				lastStatusTime = now
				runtime.ReadMemStats(&memStats)

				heapMB := float64(memStats.HeapAlloc) / (1024 * 1024)
				if heapMB > result.PeakHeapMB {
					result.PeakHeapMB = heapMB
				}
				result.TotalGCCycles = memStats.NumGC

				log.Infof("[%s] updates: %d, resets: %d, position error: %.3f, heap: %.2f MB, gc: %d",
					formatDuration(elapsed),
					result.TotalUpdates,
					result.Resets,
					posErr,
					heapMB,
					memStats.NumGC)

				if heapMB > maxHeapMB {
					log.Errorf("[%s] memory limit exceeded: %.2f MB", formatDuration(elapsed), heapMB)
					result.Status = "FAIL"
				}
			}
		}
	}
}

// tickInterval converts a measurement rate in Hz into a ticker period.
func tickInterval(rate float64) (time.Duration, error) {
	if !(rate > 0) || math.IsInf(rate, 1) {
		return 0, fmt.Errorf("rate must be positive and finite, got %v", rate)
	}
	period := float64(time.Second) / rate
	if period >= math.MaxInt64/maxGapTicks {
		return 0, fmt.Errorf("rate %v Hz is too low", rate)
	}
	interval := time.Duration(period)
	if interval < 1 {
		return 0, fmt.Errorf("rate %v Hz is too high: tick interval below 1ns", rate)
	}
	return interval, nil
}

// positionError is the Euclidean distance between estimated and true position.
func positionError(estimate mat.Vector, truth [6]float64) float64 {
	var sum float64
	for _, axis := range kinematic.Axes {
		d := estimate.AtVec(axis.PositionIndex()) - truth[axis.PositionIndex()]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func parseLogLevel(s string) logging.LogLevel {
	switch strings.ToLower(s) {
	case "disabled":
		return logging.LogLevelDisabled
	case "error":
		return logging.LogLevelError
	case "warn":
		return logging.LogLevelWarn
	case "debug":
		return logging.LogLevelDebug
	case "trace":
		return logging.LogLevelTrace
	default:
		return logging.LogLevelInfo
	}
}

func printSummary(result SoakResult) {
	fmt.Printf("\n")
	fmt.Printf("Soak Test Complete\n")
	fmt.Printf("==================\n")
	fmt.Printf("Duration:          %v\n", result.Duration.Round(time.Second))
	fmt.Printf("Total updates:     %d\n", result.TotalUpdates)
	fmt.Printf("Rejected updates:  %d\n", result.RejectedUpdates)
	fmt.Printf("Resets:            %d\n", result.Resets)
	fmt.Printf("Last pos. error:   %.3f\n", result.LastPositionErr)
	fmt.Printf("Peak pos. error:   %.3f\n", result.PeakPositionErr)
	fmt.Printf("Peak HeapAlloc:    %.2f MB\n", result.PeakHeapMB)
	fmt.Printf("Total GC cycles:   %d\n", result.TotalGCCycles)
	fmt.Printf("Suspicious events: %d\n", result.SuspiciousEvents)
	fmt.Printf("Status:            %s\n", result.Status)
	fmt.Printf("\n")

	fmt.Printf("Pass Criteria:\n")
	fmt.Printf("  - No panics:            %s\n", checkMark(true))
	fmt.Printf("  - Updates accepted:     %s\n", checkMark(result.TotalUpdates > 0))
	fmt.Printf("  - Peak memory < %d MB: %s\n", maxHeapMB, checkMark(result.PeakHeapMB < maxHeapMB))
	fmt.Printf("  - No non-finite output: %s\n", checkMark(result.SuspiciousEvents == 0))
}

func formatDuration(d time.Duration) string {
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func checkMark(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}
