// Package main provides a performance benchmarking tool for the aicomp CLI.
// It generates synthetic scan payloads of increasing size, then measures how long
// ingestion and composition charting take against a fresh SQLite store,
// running each query multiple times, treating the first successful run as cold and averaging the rest as warm,
// generating CSV output for performance analysis and documentation.
//
// Prerequisites:
// - aicomp binary installed and available in PATH
//
// Usage: go run benchmark/main.go [work-dir]
//
//	work-dir: Directory where payloads and databases are written
package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/roy-sema/cto-tool-sub001/schema"
)

// BenchmarkResult holds the result of a benchmark scenario.
type BenchmarkResult struct {
	Scenario   string
	Snapshots  int
	IngestTime string
	ColdTime   string
	WarmTime   string
}

// Scenario describes the size of one synthetic organization.
type Scenario struct {
	Name  string
	Repos int
	Days  int
	Files int
	Units int
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	WorkDir    string
	Timeout    time.Duration
	QueryRuns  int
	Scenarios  []Scenario
	ChartSince string
}

func main() {
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %s [work-dir]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		WorkDir:    os.Args[1],
		Timeout:    5 * time.Minute,
		QueryRuns:  4,
		ChartSince: "90 days ago",
		Scenarios: []Scenario{
			{Name: "small", Repos: 3, Days: 14, Files: 20, Units: 5},
			{Name: "medium", Repos: 10, Days: 30, Files: 100, Units: 8},
			{Name: "large", Repos: 25, Days: 60, Files: 400, Units: 10},
		},
	}

	if err := checkPrerequisites(config); err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	results := runBenchmarks(config)

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(results)
}

// checkPrerequisites verifies that the aicomp binary exists and the work dir is writable
func checkPrerequisites(config BenchmarkConfig) error {
	if _, err := exec.LookPath("aicomp"); err != nil {
		return fmt.Errorf("aicomp binary not found in PATH")
	}
	return os.MkdirAll(config.WorkDir, 0o755)
}

// runBenchmarks executes every scenario in order
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d scenarios, %v timeout, %d query runs\n",
		len(config.Scenarios), config.Timeout, config.QueryRuns)

	for _, sc := range config.Scenarios {
		fmt.Printf("Benchmarking %s (%d repos x %d days x %d files)\n", sc.Name, sc.Repos, sc.Days, sc.Files)
		result, err := runScenario(config, sc)
		if err != nil {
			fmt.Printf("  Scenario %s failed: %v\n", sc.Name, err)
			continue
		}
		results = append(results, result)
	}

	return results
}

// runScenario writes payloads for one scenario, ingests them and times the composition query
func runScenario(config BenchmarkConfig, sc Scenario) (BenchmarkResult, error) {
	dir := filepath.Join(config.WorkDir, sc.Name)
	if err := os.RemoveAll(dir); err != nil {
		return BenchmarkResult{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return BenchmarkResult{}, err
	}

	env := []string{
		"AICOMP_DB_BACKEND=sqlite",
		"AICOMP_DB_CONNECT=" + filepath.Join(dir, "aicomp.db"),
	}

	paths, err := writePayloads(dir, sc)
	if err != nil {
		return BenchmarkResult{}, err
	}

	for r := range sc.Repos {
		if _, err := runCommand(config, env, "repo", "register", "bench", repoName(r)); err != nil {
			return BenchmarkResult{}, fmt.Errorf("register: %w", err)
		}
	}

	ingestTime := "TIMEOUT"
	if elapsed, err := runCommand(config, env, append([]string{"ingest"}, paths...)...); err == nil {
		ingestTime = fmt.Sprintf("%.3fs", elapsed)
	}

	var times []float64
	for range config.QueryRuns {
		elapsed, err := runCommand(config, env, "composition", "--org", "bench", "--since", config.ChartSince, "--output", "json")
		if err == nil {
			times = append(times, elapsed)
		}
	}

	coldTime, warmTime := "TIMEOUT", "TIMEOUT"
	if len(times) > 0 {
		coldTime = fmt.Sprintf("%.3fs", times[0])
	}
	if len(times) > 1 {
		var sum float64
		for _, t := range times[1:] {
			sum += t
		}
		warmTime = fmt.Sprintf("%.3fs", sum/float64(len(times)-1))
	}

	fmt.Printf("  Ingest: %s, Cold query: %s, Warm query average: %s\n", ingestTime, coldTime, warmTime)

	return BenchmarkResult{
		Scenario:   sc.Name,
		Snapshots:  len(paths),
		IngestTime: ingestTime,
		ColdTime:   coldTime,
		WarmTime:   warmTime,
	}, nil
}

func repoName(i int) string {
	return fmt.Sprintf("service-%02d", i)
}

// writePayloads writes one full scan per repository and day.
// Labels rotate so each repository lands near a third of each kind.
func writePayloads(dir string, sc Scenario) ([]string, error) {
	labels := []schema.Label{schema.HumanLabel, schema.AIPureLabel, schema.AIBlendedLabel}
	start := time.Now().UTC().AddDate(0, 0, -sc.Days)

	var paths []string
	for r := range sc.Repos {
		for d := range sc.Days {
			req := schema.IngestRequest{
				Organization: "bench",
				Repository:   repoName(r),
				CommitSHA:    fmt.Sprintf("%04x%04x", r, d),
				Kind:         schema.FullScan,
				CapturedAt:   start.AddDate(0, 0, d),
			}
			for f := range sc.Files {
				file := schema.IngestFile{Path: fmt.Sprintf("pkg/mod%03d/file%03d.go", f%17, f)}
				for u := range sc.Units {
					label := labels[(r+f+u+d)%len(labels)]
					unit := schema.IngestUnit{
						ContentHash: fmt.Sprintf("%d-%d-%d-%d", r, f, u, (d+u)/7),
						LineCount:   int64(10 + u),
						Label:       label,
					}
					if label.IsAI() {
						unit.AILines = unit.LineCount
					}
					file.Units = append(file.Units, unit)
				}
				req.Files = append(req.Files, file)
			}

			raw, err := json.Marshal(req)
			if err != nil {
				return nil, err
			}
			path := filepath.Join(dir, fmt.Sprintf("%s-%03d.json", req.Repository, d))
			if err := os.WriteFile(path, raw, 0o644); err != nil {
				return nil, err
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// runCommand executes aicomp with a timeout and returns the elapsed seconds
func runCommand(config BenchmarkConfig, env []string, args ...string) (float64, error) {
	start := time.Now()

	cmd := exec.Command("aicomp", args...)
	cmd.Env = append(os.Environ(), env...)

	done := make(chan error, 1)
	var output []byte

	go func() {
		var err error
		output, err = cmd.CombinedOutput()
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return 0, fmt.Errorf("%s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(output)))
		}
		return time.Since(start).Seconds(), nil
	case <-time.After(config.Timeout):
		_ = cmd.Process.Kill()
		return 0, fmt.Errorf("%s: timed out after %v", strings.Join(args, " "), config.Timeout)
	}
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("/tmp/aicomp_benchmark_%s.csv", timestamp)

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"scenario", "snapshots", "ingest_time", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, result := range results {
		record := []string{result.Scenario, fmt.Sprint(result.Snapshots), result.IngestTime, result.ColdTime, result.WarmTime}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, result := range results {
		fmt.Printf("  %-8s (%4d snapshots): Ingest: %s, Cold: %s, Warm: %s\n",
			result.Scenario, result.Snapshots, result.IngestTime, result.ColdTime, result.WarmTime)
	}
}
