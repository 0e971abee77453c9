package tuple

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dTS/cmd/util"
	"github.com/ValentinKolb/dTS/lib/tuple"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for a dTS switch or replica",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix  = "__test"
	perfNumThreads = 10
	perfKeySpread  = 100
	perfSkip       = make([]string, 0)

	// latency timers per benchmark
	perfTimers = gometrics.NewRegistry()
)

// perfPercentiles are the latency percentiles printed per benchmark
var perfPercentiles = []float64{0.5, 0.95, 0.99}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. out,copy)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if dimension < 1 {
		return fmt.Errorf("perf needs tuples with at least one element, dimension is %d", dimension)
	}
	return nil
}

// benchmark is one named operation of the performance test
type benchmark struct {
	name string
	// setup runs once before the timed loop, op is timed
	setup func(keys []string)
	op    func(ctx context.Context, key string) error
}

func run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	fmt.Println("Performance testing tool for dTS")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	fill := func(keys []string) {
		for _, k := range keys {
			if err := rpcTupleSpace.Out(ctx, perfTuple(k)); err != nil {
				log.Printf("(setup) - error inserting tuple: %v\n", err)
			}
		}
	}

	benchmarks := []benchmark{
		{
			name: "out",
			op: func(ctx context.Context, key string) error {
				return rpcTupleSpace.Out(ctx, perfTuple(key))
			},
		},
		{
			name:  "copy",
			setup: fill,
			op: func(ctx context.Context, key string) error {
				_, err := rpcTupleSpace.Copy(ctx, perfTemplate(key))
				return err
			},
		},
		{
			name:  "copy-all",
			setup: fill,
			op: func(ctx context.Context, key string) error {
				_, err := rpcTupleSpace.CopyAll(ctx, perfTemplate(key))
				return err
			},
		},
		{
			name: "out+in",
			op: func(ctx context.Context, key string) error {
				if err := rpcTupleSpace.Out(ctx, perfTuple(key)); err != nil {
					return err
				}
				_, err := rpcTupleSpace.In(ctx, perfTemplate(key))
				return err
			},
		},
		{
			name: "size",
			op: func(ctx context.Context, _ string) error {
				_, err := rpcTupleSpace.Size(ctx)
				return err
			},
		},
	}

	// Create results map
	results := make(map[string]testing.BenchmarkResult)

	for _, bm := range benchmarks {
		timer := gometrics.GetOrRegisterTimer(bm.name, perfTimers)

		result := testing.Benchmark(func(b *testing.B) {
			if shouldSkip(bm.name) {
				return
			}

			keys := getKeys(bm.name)
			if bm.setup != nil {
				bm.setup(keys)
			}

			// cleanup
			b.Cleanup(func() {
				for _, k := range keys {
					if _, err := rpcTupleSpace.InAll(ctx, perfTemplate(k)); err != nil {
						log.Printf("(%s) - error removing tuples: %v\n", bm.name, err)
					}
				}
			})

			b.SetParallelism(perfNumThreads)
			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				counter := 0
				for pb.Next() {
					start := time.Now()
					if err := bm.op(ctx, keys[counter%len(keys)]); err != nil {
						log.Printf("(%s) - error: %v\n", bm.name, err)
					}
					timer.UpdateSince(start)
					counter++
				}
			})
		})

		results[bm.name] = result
		printResult(bm.name, result, timer)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return err
		}
		fmt.Printf("results written to %s\n", csvPath)
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// getKeys creates the test keys of one benchmark
func getKeys(prefix string) []string {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}
	return keys
}

// perfTuple returns a tuple of the configured dimension with the given key
func perfTuple(key string) *tuple.Tuple {
	values := make([]string, dimension)
	values[0] = key
	for i := 1; i < dimension; i++ {
		values[i] = "value"
	}
	t, err := tuple.Strings(values...)
	if err != nil {
		panic(err)
	}
	return t
}

// perfTemplate returns a template matching every tuple with the given key
func perfTemplate(key string) *tuple.Tuple {
	t, err := tuple.New(dimension)
	if err != nil {
		panic(err)
	}
	t.Set(0, key)
	return t
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult, timer gometrics.Timer) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	snapshot := timer.Snapshot()
	ps := snapshot.Percentiles(perfPercentiles)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50=%s p95=%s p99=%s\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec,
		time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(ps[2]))
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	config := util.GetClientConfig()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50", "P95", "P99", "Skipped",
		"Endpoint", "TimeoutSec", "RetryCount", "Dimension", "Serializer", "Transport",
		"Threads", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	// Write test results
	for _, test := range names {
		result := results[test]
		ps := gometrics.GetOrRegisterTimer(test, perfTimers).Snapshot().Percentiles(perfPercentiles)

		var nsPerOp, opsPerSec float64
		skipped := "true"
		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			time.Duration(ps[0]).String(),
			time.Duration(ps[1]).String(),
			time.Duration(ps[2]).String(),
			skipped,
			config.Endpoint,
			strconv.Itoa(config.Transport.TimeoutSecond),
			strconv.Itoa(config.RetryCount),
			strconv.Itoa(config.Dimension),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
