// Command frnn runs batched fixed-radius neighbor searches over point clouds
// stored as Parquet files.
//
// Usage:
//
//	frnn generate -n 100000 -batches 4 -out points.parquet
//	frnn search -points points.parquet -radius 0.2 -out neighbors.parquet -verify
//	frnn inspect -snapshot cloud.frnn
//
// Every search flag can also be set through FRNN_* environment variables or
// a .env file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/frnn"
	"github.com/hupe1980/frnn/pointio"
	"github.com/hupe1980/frnn/prommetrics"
	"github.com/hupe1980/frnn/resource"
	"github.com/hupe1980/frnn/testutil"
)

var errUsage = errors.New("usage: frnn <generate|search|inspect> [flags]")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "frnn:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "generate":
		return generate(args[1:], stdout)
	case "search", "inspect":
		cfg, err := LoadConfig(args[1:])
		if err != nil {
			return err
		}
		if args[0] == "inspect" {
			return inspect(ctx, &cfg, stdout)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		opts, shutdown, err := setup(&cfg)
		if err != nil {
			return err
		}
		defer shutdown()
		return searchCommand(ctx, &cfg, opts, stdout)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

// setup turns cfg into frnn options and starts the metrics endpoint if one
// is configured.
func setup(cfg *Config) ([]frnn.Option, func(), error) {
	logger := cfg.Logger()
	opts := []frnn.Option{
		frnn.WithLogger(logger),
		frnn.WithWorkers(cfg.Workers),
	}
	if cfg.MemoryLimit > 0 || cfg.IOLimit > 0 {
		opts = append(opts, frnn.WithResourceController(resource.NewController(resource.Config{
			MemoryLimitBytes:   cfg.MemoryLimit,
			MaxWorkers:         int64(cfg.Workers),
			IOLimitBytesPerSec: cfg.IOLimit,
		})))
	}
	if cfg.MetricsAddr == "" {
		return opts, func() {}, nil
	}

	reg := prometheus.NewRegistry()
	collector, err := prommetrics.New(reg, "frnn")
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, frnn.WithMetricsCollector(collector))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", cfg.MetricsAddr)

	return opts, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// generate writes a random batched point cloud.
func generate(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	n := fs.Int("n", 10000, "Number of points")
	batches := fs.Int("batches", 1, "Number of batches")
	clusters := fs.Int("clusters", 0, "Number of Gaussian clusters (0: uniform)")
	extent := fs.Float64("extent", 10, "Side of the bounding cube")
	sigma := fs.Float64("sigma", 0.5, "Cluster standard deviation")
	seed := fs.Int64("seed", 42, "Random seed")
	out := fs.String("out", "points.parquet", "Output file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *n < 0 || *batches < 1 {
		return fmt.Errorf("%w: need n >= 0 and batches >= 1", errUsage)
	}

	rng := testutil.NewRNG(*seed)
	var coords []float64
	if *clusters > 0 {
		coords = testutil.ClusteredPoints[float64](rng, *n, *clusters, *extent, *sigma)
	} else {
		coords = testutil.UniformPoints[float64](rng, *n, *extent)
	}
	ps := frnn.NewPointSet(coords, rng.BatchSplits(*n, *batches))

	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	if err := pointio.WritePoints(f, ps, pointio.Codec("zstd")); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "wrote %d points in %d batches to %s\n", *n, *batches, *out)
	return nil
}

// inspect prints the metadata of a stored snapshot.
func inspect(ctx context.Context, cfg *Config, stdout io.Writer) error {
	if cfg.Snapshot == "" {
		return fmt.Errorf("%w: inspect needs -snapshot", errUsage)
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	prec, err := frnn.ParsePrecision(cfg.Precision)
	if err != nil {
		return err
	}
	var (
		id              string
		radius          float64
		points, batches int
		cells           int64
	)
	if prec == frnn.Float64 {
		idx, err := frnn.LoadIndex[float64](ctx, store, cfg.Snapshot)
		if err != nil {
			return err
		}
		id, radius, points, batches, cells = idx.ID().String(), idx.Radius(), idx.NumPoints(), idx.NumBatches(), idx.Table().NumCells()
	} else {
		idx, err := frnn.LoadIndex[float32](ctx, store, cfg.Snapshot)
		if err != nil {
			return err
		}
		id, radius, points, batches, cells = idx.ID().String(), idx.Radius(), idx.NumPoints(), idx.NumBatches(), idx.Table().NumCells()
	}

	fmt.Fprintf(stdout, "id:       %s\n", id)
	fmt.Fprintf(stdout, "radius:   %g\n", radius)
	fmt.Fprintf(stdout, "points:   %d\n", points)
	fmt.Fprintf(stdout, "batches:  %d\n", batches)
	fmt.Fprintf(stdout, "cells:    %d\n", cells)
	return nil
}
