// Command pitload drives a running PIT API with a Zipf-skewed search mix and
// writes per-request samples (CSV) and a summary (JSON).
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/spacetime/pit-api/internal/core/config"
	"github.com/spacetime/pit-api/internal/core/httpclient"
	"github.com/spacetime/pit-api/internal/logger"
)

type loadConfig struct {
	Target      string
	Datasets    []string
	Concurrency int
	Duration    time.Duration
	ZipfS       float64
	ZipfV       float64
	Probes      int
	Out         string
	Timeout     time.Duration
}

type sample struct {
	At      time.Time
	Latency time.Duration
	Status  int
	Total   string
	Err     string
	Probe   int
}

type summary struct {
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	DurationSec   float64   `json:"duration_sec"`
	Total         int64     `json:"total"`
	Success       int64     `json:"success"`
	Errors        int64     `json:"errors"`
	ThroughputRPS float64   `json:"throughput_rps"`
	P50Ms         float64   `json:"p50_ms"`
	P95Ms         float64   `json:"p95_ms"`
	P99Ms         float64   `json:"p99_ms"`
	Concurrency   int       `json:"concurrency"`
	ZipfS         float64   `json:"zipf_s"`
	ZipfV         float64   `json:"zipf_v"`
	Probes        int       `json:"probes"`
	Target        string    `json:"target"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "pitload",
		Usage: "Generate search load against a PIT API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "target", Value: "http://localhost:3001/search", Usage: "search endpoint URL"},
			&cli.StringFlag{Name: "datasets", Usage: "datasets used by hot probes, comma separated"},
			&cli.IntFlag{Name: "concurrency", Value: 16, Usage: "concurrent workers"},
			&cli.DurationFlag{Name: "duration", Value: 60 * time.Second, Usage: "test duration"},
			&cli.Float64Flag{Name: "zipf-s", Value: 1.3, Usage: "Zipf parameter s (>1)"},
			&cli.Float64Flag{Name: "zipf-v", Value: 1.0, Usage: "Zipf parameter v (>=1)"},
			&cli.IntFlag{Name: "probes", Value: 128, Usage: "distinct searches in the pool"},
			&cli.StringFlag{Name: "out", Value: "results/pitload", Usage: "output file prefix"},
			&cli.DurationFlag{Name: "timeout", Value: 10 * time.Second, Usage: "per-request timeout"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			var datasets []string
			for d := range strings.SplitSeq(c.String("datasets"), ",") {
				if d = strings.TrimSpace(d); d != "" {
					datasets = append(datasets, d)
				}
			}
			return run(ctx, loadConfig{
				Target:      c.String("target"),
				Datasets:    datasets,
				Concurrency: c.Int("concurrency"),
				Duration:    c.Duration("duration"),
				ZipfS:       c.Float64("zipf-s"),
				ZipfV:       c.Float64("zipf-v"),
				Probes:      c.Int("probes"),
				Out:         c.String("out"),
				Timeout:     c.Duration("timeout"),
			})
		},
	}
	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg loadConfig) error {
	env := config.FromEnv()
	log := logger.New(logger.Config{Level: env.LogLevel, Console: true, Component: "pitload"}, os.Stderr)

	if cfg.Concurrency <= 0 || cfg.Probes <= 0 {
		return fmt.Errorf("concurrency and probes must be positive")
	}
	if cfg.ZipfS <= 1 || cfg.ZipfV < 1 {
		return fmt.Errorf("zipf: need s > 1 and v >= 1")
	}
	target, err := url.Parse(cfg.Target)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
		return fmt.Errorf("bad target %q", cfg.Target)
	}

	seed := time.Now().UnixNano()
	probes := makeProbes(cfg.Probes, cfg.Datasets, rand.New(rand.NewSource(seed)))
	imax := uint64(len(probes)) - 1

	if err := os.MkdirAll(filepath.Dir(cfg.Out), 0o750); err != nil {
		return fmt.Errorf("mkdir results: %w", err)
	}
	prefix := fmt.Sprintf("%s_%s", cfg.Out, time.Now().UTC().Format("20060102_150405Z"))
	csvPath, jsonPath := prefix+"_samples.csv", prefix+"_summary.json"
	csvFile, err := os.Create(filepath.Clean(csvPath))
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer func() { _ = csvFile.Close() }()

	client := httpclient.NewOutbound(cfg.Timeout, cfg.Concurrency)

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	samples := make(chan sample, 4096)
	done := make(chan summary, 1)
	go collect(samples, csv.NewWriter(csvFile), log, done)

	start := time.Now()
	log.Info("load start", "target", cfg.Target, "duration", cfg.Duration,
		"concurrency", cfg.Concurrency, "zipf_s", cfg.ZipfS, "zipf_v", cfg.ZipfV, "probes", len(probes))

	var wg sync.WaitGroup
	for id := range cfg.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			zipf := rand.NewZipf(rand.New(rand.NewSource(seed+int64(id)+1)), cfg.ZipfS, cfg.ZipfV, imax)
			for ctx.Err() == nil {
				idx := int(zipf.Uint64())
				s := fire(ctx, client, *target, probes[idx])
				s.Probe = idx
				select {
				case samples <- s:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	wg.Wait()
	close(samples)

	sum := <-done
	end := time.Now()
	sum.Start, sum.End = start.UTC(), end.UTC()
	sum.DurationSec = end.Sub(start).Seconds()
	if sum.DurationSec > 0 {
		sum.ThroughputRPS = float64(sum.Total) / sum.DurationSec
	}
	sum.Concurrency, sum.ZipfS, sum.ZipfV = cfg.Concurrency, cfg.ZipfS, cfg.ZipfV
	sum.Probes, sum.Target = len(probes), cfg.Target

	if err := writeSummary(jsonPath, sum); err != nil {
		return err
	}
	log.Info("load done", "total", sum.Total, "success", sum.Success, "errors", sum.Errors,
		"rps", fmt.Sprintf("%.2f", sum.ThroughputRPS),
		"p50_ms", sum.P50Ms, "p95_ms", sum.P95Ms, "p99_ms", sum.P99Ms)
	log.Info("results written", "summary", jsonPath, "samples", csvPath)
	return nil
}

func fire(ctx context.Context, client *http.Client, target url.URL, p probe) sample {
	target.RawQuery = p.values().Encode()
	s := sample{At: time.Now()}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		s.Err = err.Error()
		return s
	}
	req.Header.Set("Accept", "application/geo+json")
	resp, err := client.Do(req)
	s.Latency = time.Since(s.At)
	if err != nil {
		s.Err = err.Error()
		return s
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	s.Status = resp.StatusCode
	s.Total = resp.Header.Get("X-Total-Count")
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.Err = "status=" + strconv.Itoa(resp.StatusCode)
	}
	return s
}

// collect drains samples into w and reports the aggregate once the channel closes.
func collect(in <-chan sample, w *csv.Writer, log *slog.Logger, out chan<- summary) {
	_ = w.Write([]string{"timestamp", "latency_ms", "status", "total", "error", "probe"})
	var sum summary
	lat := make([]float64, 0, 1<<16)
	for s := range in {
		sum.Total++
		ms := float64(s.Latency.Microseconds()) / 1000.0
		if s.Err == "" {
			sum.Success++
			lat = append(lat, ms)
		} else {
			sum.Errors++
		}
		_ = w.Write([]string{
			s.At.UTC().Format(time.RFC3339Nano),
			fmt.Sprintf("%.3f", ms),
			strconv.Itoa(s.Status),
			s.Total,
			s.Err,
			strconv.Itoa(s.Probe),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		log.Error("csv flush", "err", err)
	}
	sort.Float64s(lat)
	sum.P50Ms = percentile(lat, 50)
	sum.P95Ms = percentile(lat, 95)
	sum.P99Ms = percentile(lat, 99)
	out <- sum
}

func writeSummary(path string, s summary) error {
	// NaN percentiles (no successes) are not valid JSON.
	for _, p := range []*float64{&s.P50Ms, &s.P95Ms, &s.P99Ms} {
		if math.IsNaN(*p) {
			*p = 0
		}
	}
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("open summary: %w", err)
	}
	defer func() { _ = f.Close() }()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
