// Command simbench benchmarks retrieval quality over synthetic clustered
// datasets.
//
// For every dataset x distance metric combination it populates a table,
// builds an exact index, evaluates recall/precision/mAP at the configured
// k values and writes one run record to the results directory (and
// optionally DynamoDB). Each query set is the indexed records themselves,
// with every record's own row excluded from its neighbors.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/hupe1980/simtable"
	"github.com/hupe1980/simtable/codec"
	"github.com/hupe1980/simtable/distance"
	"github.com/hupe1980/simtable/results"
	"github.com/hupe1980/simtable/retrieval"
	"github.com/hupe1980/simtable/testutil"
)

// payload is the opaque per-record data stored alongside each embedding.
type payload struct {
	Class   int64 `json:"class"`
	Ordinal int   `json:"ordinal"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "simbench:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := simtable.NewTextLogger(level)

	metrics := make([]distance.Metric, 0, len(cfg.Metrics))
	for _, name := range cfg.Metrics {
		m, err := distance.ParseMetric(name)
		if err != nil {
			return err
		}
		metrics = append(metrics, m)
	}

	writer, err := buildWriter(ctx, cfg)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "benchmark starting",
		"version", cfg.Version,
		"datasets", len(cfg.Datasets),
		"metrics", cfg.Metrics,
		"ks", cfg.Ks,
		"seed", cfg.Seed,
	)

	for _, ds := range cfg.Datasets {
		for _, metric := range metrics {
			rec, err := runOne(ctx, cfg, ds, metric, logger)
			if err != nil {
				return fmt.Errorf("run %s/%s: %w", ds.Name, metric, err)
			}
			if err := writer.Write(ctx, rec); err != nil {
				return err
			}
			logger.InfoContext(ctx, "run completed",
				"run", rec.Name,
				"table_size", rec.TableSize,
				"build_seconds", rec.BuildSeconds,
				"eval_seconds", rec.EvalSeconds,
			)
		}
	}

	if err := writer.Flush(ctx); err != nil {
		return err
	}

	logger.InfoContext(ctx, "benchmark finished", "output", filepath.Join(cfg.Output, cfg.Version))
	return nil
}

func runOne(ctx context.Context, cfg Config, ds DatasetConfig, metric distance.Metric, logger *simtable.Logger) (results.Run, error) {
	rng := testutil.NewRNG(cfg.Seed)
	vectors, labels := rng.ClusteredVectors(ds.Classes, ds.PerClass, ds.Dim, ds.Spread)

	ix, err := simtable.New(
		simtable.WithMetric(metric),
		simtable.WithLogger(logger),
	)
	if err != nil {
		return results.Run{}, err
	}

	for i, vec := range vectors {
		data, err := codec.Default.Marshal(payload{Class: labels[i], Ordinal: i})
		if err != nil {
			return results.Run{}, err
		}
		ix.Add(vec, labels[i], data)
	}

	buildStart := time.Now()
	if err := ix.BuildIndex(ctx); err != nil {
		return results.Run{}, err
	}
	buildElapsed := time.Since(buildStart)

	evalMetrics, kMax, err := buildMetrics(cfg.Ks, ix.ClassCounts())
	if err != nil {
		return results.Run{}, err
	}

	evalStart := time.Now()
	scores, err := ix.EvaluateRetrieval(ctx, vectors, labels, kMax, evalMetrics, true)
	if err != nil {
		return results.Run{}, err
	}
	evalElapsed := time.Since(evalStart)

	name := fmt.Sprintf("%s_%s", ds.Name, metric)

	if cfg.Snapshots {
		dir := filepath.Join(cfg.Output, cfg.Version, name, "table")
		if err := ix.Save(ctx, dir); err != nil {
			return results.Run{}, err
		}
	}

	return results.Run{
		Name:         name,
		Dataset:      ds.Name,
		Metric:       metric.String(),
		TableSize:    ix.Size(),
		Seed:         cfg.Seed,
		Scores:       scores,
		BuildSeconds: buildElapsed.Seconds(),
		EvalSeconds:  evalElapsed.Seconds(),
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// buildMetrics creates the full recall/precision/mAP grid and returns the
// largest k, which bounds the neighbor search depth.
func buildMetrics(ks []int, classCounts map[int64]int) ([]retrieval.Metric, int, error) {
	metrics := make([]retrieval.Metric, 0, len(ks)*3)
	kMax := 0

	for _, k := range ks {
		recall, err := retrieval.NewRecallAtK(k)
		if err != nil {
			return nil, 0, err
		}
		precision, err := retrieval.NewPrecisionAtK(k)
		if err != nil {
			return nil, 0, err
		}
		mAP, err := retrieval.NewMAPAtK(k, classCounts)
		if err != nil {
			return nil, 0, err
		}
		metrics = append(metrics, recall, precision, mAP)

		if k > kMax {
			kMax = k
		}
	}
	return metrics, kMax, nil
}

func buildWriter(ctx context.Context, cfg Config) (results.Writer, error) {
	dir := results.NewDirWriter(cfg.Output, cfg.Version)
	if cfg.DDBTable == "" {
		return dir, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	ddb := results.NewDynamoWriter(dynamodb.NewFromConfig(awsCfg), cfg.DDBTable)

	return results.MultiWriter{dir, ddb}, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
