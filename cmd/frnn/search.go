package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/hupe1980/frnn"
	"github.com/hupe1980/frnn/distance"
	"github.com/hupe1980/frnn/pointio"
	"github.com/hupe1980/frnn/testutil"
)

// summary describes one search run.
type summary struct {
	Points, Queries, Batches int
	Cells                    int64
	Neighbors                int
	BuildTime, SearchTime    time.Duration
	Counts                   []float64
	Verified                 bool
}

func (s *summary) print(w io.Writer) {
	fmt.Fprintf(w, "points:     %d in %d batches (%d cells)\n", s.Points, s.Batches, s.Cells)
	fmt.Fprintf(w, "queries:    %d\n", s.Queries)
	fmt.Fprintf(w, "neighbors:  %d\n", s.Neighbors)
	if len(s.Counts) > 0 {
		sorted := slices.Clone(s.Counts)
		slices.Sort(sorted)
		mean, std := stat.MeanStdDev(sorted, nil)
		fmt.Fprintf(w, "per query:  mean %.2f, std %.2f, median %.0f, p99 %.0f, max %.0f\n",
			mean, std,
			stat.Quantile(0.5, stat.Empirical, sorted, nil),
			stat.Quantile(0.99, stat.Empirical, sorted, nil),
			floats.Max(sorted))
	}
	fmt.Fprintf(w, "build:      %v\n", s.BuildTime)
	fmt.Fprintf(w, "search:     %v\n", s.SearchTime)
	if s.Verified {
		fmt.Fprintln(w, "verify:     ok")
	}
}

// searchCommand dispatches on the configured coordinate precision.
func searchCommand(ctx context.Context, cfg *Config, opts []frnn.Option, w io.Writer) error {
	prec, err := frnn.ParsePrecision(cfg.Precision)
	if err != nil {
		return err
	}
	if prec == frnn.Float64 {
		return searchPrecision[float64](ctx, cfg, opts, w)
	}
	return searchPrecision[float32](ctx, cfg, opts, w)
}

func searchPrecision[T frnn.Float](ctx context.Context, cfg *Config, opts []frnn.Option, w io.Writer) error {
	width, err := frnn.ParseIndexWidth(cfg.IndexWidth)
	if err != nil {
		return err
	}

	var s *summary
	if width == frnn.IndexInt32 {
		s, err = runSearch[T, int32](ctx, cfg, opts)
	} else {
		s, err = runSearch[T, int64](ctx, cfg, opts)
	}
	if err != nil {
		return err
	}
	s.print(w)
	return nil
}

func runSearch[T frnn.Float, I frnn.Integer](ctx context.Context, cfg *Config, opts []frnn.Option) (*summary, error) {
	points, err := readPoints[T](cfg.Points, cfg.NumBatches)
	if err != nil {
		return nil, err
	}
	queries := points
	if cfg.Queries != cfg.Points {
		queries, err = readPoints[T](cfg.Queries, points.NumBatches())
		if err != nil {
			return nil, err
		}
	}
	metric, err := frnn.ParseMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	idx, err := frnn.NewIndex[T]().
		Radius(cfg.Radius).
		SizeFactor(cfg.SizeFactor).
		MaxTableSize(cfg.MaxTableSize).
		Build(ctx, points, opts...)
	if err != nil {
		return nil, err
	}
	buildTime := time.Since(start)

	start = time.Now()
	res, err := frnn.FixedRadiusSearch[T, I](ctx, points.Coords, queries.Coords, cfg.Radius,
		points.RowSplits, queries.RowSplits, idx.Table(), metric, cfg.IgnoreQueryPoint, cfg.ReturnDistances, opts...)
	if err != nil {
		return nil, err
	}

	s := &summary{
		Points:     points.Len(),
		Queries:    queries.Len(),
		Batches:    idx.NumBatches(),
		Cells:      idx.Table().NumCells(),
		Neighbors:  res.Len(),
		BuildTime:  buildTime,
		SearchTime: time.Since(start),
		Counts:     make([]float64, res.NumQueries()),
	}
	rs := res.NeighborsRowSplits()
	for q := range s.Counts {
		s.Counts[q] = float64(rs[q+1] - rs[q])
	}

	if cfg.Verify {
		tol := tolerance[T](cfg.Radius)
		want := testutil.BruteForce(points.Coords, queries.Coords, points.Splits(), queries.Splits(),
			cfg.Radius+tol, metric, cfg.IgnoreQueryPoint)
		if err := testutil.Verify(want, rs, res.NeighborsIndex(), distance.Threshold(metric, cfg.Radius-tol)); err != nil {
			return nil, fmt.Errorf("verify: %w", err)
		}
		s.Verified = true
	}

	if cfg.Output != "" {
		if err := writeNeighbors(cfg.Output, res); err != nil {
			return nil, err
		}
	}

	if cfg.Snapshot != "" {
		if err := saveSnapshot(ctx, cfg, idx, opts); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// tolerance is the radius band in which float rounding may flip membership.
func tolerance[T frnn.Float](radius float64) float64 {
	var zero T
	if _, ok := any(zero).(float32); ok {
		return radius * 1e-5
	}
	return radius * 1e-12
}

func readPoints[T frnn.Float](path string, numBatches int) (frnn.PointSet[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return frnn.PointSet[T]{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return frnn.PointSet[T]{}, err
	}
	return pointio.ReadPoints[T](f, info.Size(), numBatches)
}

func writeNeighbors[T frnn.Float, I frnn.Integer](path string, res *frnn.Result[T, I]) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := pointio.WriteNeighbors(f, res, pointio.Codec("zstd")); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func saveSnapshot[T frnn.Float](ctx context.Context, cfg *Config, idx *frnn.SpatialIndex[T], opts []frnn.Option) error {
	c, err := frnn.ParseCompression(cfg.Compression)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	return frnn.SaveIndex(ctx, store, cfg.Snapshot, idx, append(slices.Clip(opts), frnn.WithCompression(c))...)
}
