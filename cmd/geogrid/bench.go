package main

import (
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/kass/go-geogrid/pkg/geogrid"
	"github.com/kass/go-geogrid/pkg/models"
	"github.com/kass/go-geogrid/pkg/tileindex"
)

var benchCmd = &cobra.Command{
	Use:   "bench <grid.gob>",
	Short: "Measure concurrent lookups against a grid",
	Long: `Run random lookups from a pool of workers. Query types: get (tile value
reads), box (tile index box queries), nearest (nearest populated tiles).`,
	Args: cobra.ExactArgs(1),
	RunE: runBench,
}

var (
	benchType    string
	benchQueries int
	benchWorkers int
	benchBoxSize float64
	benchK       int
)

func init() {
	benchCmd.Flags().StringVarP(&benchType, "type", "t", "get", "Query type: get, box or nearest")
	benchCmd.Flags().IntVarP(&benchQueries, "queries", "q", 10000, "Number of queries to run")
	benchCmd.Flags().IntVarP(&benchWorkers, "workers", "w", runtime.NumCPU(), "Number of worker goroutines")
	benchCmd.Flags().Float64Var(&benchBoxSize, "box-size", 0.1, "Box size as a fraction of the grid extent")
	benchCmd.Flags().IntVar(&benchK, "k", 10, "Number of nearest tiles")

	rootCmd.AddCommand(benchCmd)
}

// BenchmarkResult summarises one benchmark run.
type BenchmarkResult struct {
	QueryType     string
	TotalQueries  int
	TotalDuration time.Duration
	AvgDuration   time.Duration
	QueriesPerSec float64
	MinDuration   time.Duration
	MaxDuration   time.Duration
	TotalResults  int64
	AvgResults    float64
}

// queryFunc runs one random query and returns the number of results.
type queryFunc func(r *rand.Rand) (int, error)

func randomLocation(r *rand.Rand, rect models.BoundingBox) models.Location {
	return models.Location{
		Lat: rect.BottomLeft.Lat + r.Float64()*(rect.TopRight.Lat-rect.BottomLeft.Lat),
		Lon: rect.BottomLeft.Lon + r.Float64()*(rect.TopRight.Lon-rect.BottomLeft.Lon),
	}
}

func benchQuery(g *geogrid.Grid, kind string) (queryFunc, error) {
	rect := g.Rect()
	switch kind {
	case "get":
		return func(r *rand.Rand) (int, error) {
			if g.Get(randomLocation(r, rect)) != g.Default() {
				return 1, nil
			}
			return 0, nil
		}, nil
	}

	idx, err := tileindex.Build(g)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "box":
		dLat := benchBoxSize * (rect.TopRight.Lat - rect.BottomLeft.Lat)
		dLon := benchBoxSize * (rect.TopRight.Lon - rect.BottomLeft.Lon)
		return func(r *rand.Rand) (int, error) {
			bl := randomLocation(r, rect)
			tiles, err := idx.QueryBox(models.BoundingBox{
				BottomLeft: bl,
				TopRight:   models.Location{Lat: bl.Lat + dLat, Lon: bl.Lon + dLon},
			})
			return len(tiles), err
		}, nil
	case "nearest":
		return func(r *rand.Rand) (int, error) {
			return len(idx.Nearest(randomLocation(r, rect), benchK)), nil
		}, nil
	}
	return nil, fmt.Errorf("unknown query type %q", kind)
}

func runBenchmark(kind string, numQueries, workers int, query queryFunc) BenchmarkResult {
	var (
		totalResults atomic.Int64
		completed    atomic.Int64
		minDuration  = time.Hour
		maxDuration  time.Duration
		totalDur     time.Duration
		mu           sync.Mutex
	)

	startTime := time.Now()

	// Worker pool
	queryCh := make(chan int, numQueries)
	var wg sync.WaitGroup

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(seed uint64) {
			defer wg.Done()
			r := rand.New(rand.NewPCG(seed, uint64(startTime.UnixNano())))

			for range queryCh {
				queryStart := time.Now()
				n, err := query(r)
				queryDuration := time.Since(queryStart)
				if err != nil {
					continue
				}
				totalResults.Add(int64(n))
				completed.Add(1)

				mu.Lock()
				totalDur += queryDuration
				minDuration = min(minDuration, queryDuration)
				maxDuration = max(maxDuration, queryDuration)
				mu.Unlock()
			}
		}(uint64(w))
	}

	for i := 0; i < numQueries; i++ {
		queryCh <- i
	}
	close(queryCh)

	wg.Wait()
	totalDuration := time.Since(startTime)

	result := BenchmarkResult{
		QueryType:     kind,
		TotalQueries:  int(completed.Load()),
		TotalDuration: totalDuration,
		QueriesPerSec: float64(completed.Load()) / totalDuration.Seconds(),
		MinDuration:   minDuration,
		MaxDuration:   maxDuration,
		TotalResults:  totalResults.Load(),
	}
	if c := completed.Load(); c > 0 {
		result.AvgDuration = totalDur / time.Duration(c)
		result.AvgResults = float64(result.TotalResults) / float64(c)
	} else {
		result.MinDuration = 0
	}
	return result
}

func runBench(cmd *cobra.Command, args []string) error {
	if benchQueries <= 0 || benchWorkers <= 0 {
		return fmt.Errorf("queries and workers must be positive")
	}
	g, err := loadGrid(args[0])
	if err != nil {
		return err
	}
	query, err := benchQuery(g, benchType)
	if err != nil {
		return err
	}

	result := runBenchmark(benchType, benchQueries, benchWorkers, query)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== Benchmark Results ===")
	fmt.Fprintf(out, "Query Type: %s\n", result.QueryType)
	fmt.Fprintf(out, "Total Queries: %d\n", result.TotalQueries)
	fmt.Fprintf(out, "Total Duration: %v\n", result.TotalDuration)
	fmt.Fprintf(out, "Average Duration: %v\n", result.AvgDuration)
	fmt.Fprintf(out, "Queries/Second: %.2f\n", result.QueriesPerSec)
	fmt.Fprintf(out, "Min Duration: %v\n", result.MinDuration)
	fmt.Fprintf(out, "Max Duration: %v\n", result.MaxDuration)
	fmt.Fprintf(out, "Total Results: %d\n", result.TotalResults)
	fmt.Fprintf(out, "Avg Results/Query: %.2f\n", result.AvgResults)
	fmt.Fprintf(out, "Workers Used: %d\n", benchWorkers)
	return nil
}
