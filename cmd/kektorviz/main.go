package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sanonone/kektorviz/pkg/embeddings"
	"github.com/sanonone/kektorviz/pkg/metrics"
	"github.com/sanonone/kektorviz/pkg/pipeline"
	"github.com/sanonone/kektorviz/pkg/projector"
	"github.com/sanonone/kektorviz/pkg/table"
)

const usage = `usage: kektorviz <command> [flags]

commands:
  embed    add an embedding column to a CSV of texts
  reduce   project the embeddings to a few axes and score local density

run "kektorviz <command> -h" for the flags of a command
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	// A missing .env is not an error: the environment may already be set.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch args[0] {
	case "reduce":
		err = reduceCmd(args[1:], stdout, stderr)
	case "embed":
		err = embedCmd(ctx, args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "kektorviz: unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	if err == flag.ErrHelp {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "kektorviz %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func setupLogger(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// loadConfig reads the -config file, if any. Flags given explicitly on the
// command line override values from the file.
func loadConfig(fs *flag.FlagSet, path string, apply func(name string, cfg *pipeline.Config)) (pipeline.Config, error) {
	cfg, err := pipeline.LoadConfig(path)
	if err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) { apply(f.Name, &cfg) })
	return cfg, nil
}

func reduceCmd(args []string, stdout, stderr io.Writer) error {
	def := pipeline.DefaultConfig()
	fs := flag.NewFlagSet("reduce", flag.ContinueOnError)
	fs.SetOutput(stderr)

	input := fs.String("input", "", "input CSV with an embedding column (.zst for compressed)")
	output := fs.String("output", "", "output CSV path (.zst for compressed)")
	configPath := fs.String("config", "", "optional YAML configuration file")
	metricsFile := fs.String("metrics-file", "", "write Prometheus metrics to this textfile")
	verbose := fs.Bool("v", false, "enable debug logging")

	vectorColumn := fs.String("vector-column", def.VectorColumn, "name of the embedding column")
	dims := fs.Int("dims", def.Projector.Dims, "number of output axes")
	neighbors := fs.Int("neighbors", def.Projector.Neighbors, "near neighbors per point")
	mnRatio := fs.Float64("mn-ratio", def.Projector.MidNearRatio, "mid-near pairs per near pair")
	fpRatio := fs.Float64("fp-ratio", def.Projector.FarPairRatio, "far pairs per near pair")
	initMethod := fs.String("init", string(def.Projector.Init), "initial layout: pca or random")
	seed := fs.Uint64("seed", def.Projector.Seed, "random seed")
	workers := fs.Int("workers", 0, "parallel workers for neighbor search (0 = all CPUs)")
	k := fs.Int("k-density", def.Density.K, "neighbors used for the density estimate")
	low := fs.Float64("low-percentile", def.Density.LowPercentile, "density mapped to 0 (fraction in [0, 1])")
	high := fs.Float64("high-percentile", def.Density.HighPercentile, "density mapped to 1 (fraction in [0, 1])")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" || *output == "" {
		return fmt.Errorf("-input and -output are required")
	}
	setupLogger(stderr, *verbose)

	cfg, err := loadConfig(fs, *configPath, func(name string, cfg *pipeline.Config) {
		switch name {
		case "vector-column":
			cfg.VectorColumn = *vectorColumn
		case "dims":
			cfg.Projector.Dims = *dims
		case "neighbors":
			cfg.Projector.Neighbors = *neighbors
		case "mn-ratio":
			cfg.Projector.MidNearRatio = *mnRatio
		case "fp-ratio":
			cfg.Projector.FarPairRatio = *fpRatio
		case "init":
			cfg.Projector.Init = projector.InitMethod(*initMethod)
		case "seed":
			cfg.Projector.Seed = *seed
		case "workers":
			cfg.Projector.Workers = *workers
			cfg.Density.Workers = *workers
		case "k-density":
			cfg.Density.K = *k
		case "low-percentile":
			cfg.Density.LowPercentile = *low
		case "high-percentile":
			cfg.Density.HighPercentile = *high
		}
	})
	if err != nil {
		return err
	}

	tbl, err := table.ReadFile(*input, table.ReadOptions{VectorColumns: []string{cfg.VectorColumn}})
	if err != nil {
		return err
	}
	slog.Info("[CLI] Loaded input", "path", *input, "rows", tbl.Len())

	out, report, err := pipeline.Run(tbl, cfg)
	writeMetrics(*metricsFile)
	if err != nil {
		return err
	}

	if err := table.WriteFile(*output, out); err != nil {
		return err
	}

	d := report.Density
	fmt.Fprintf(stdout, "wrote %d rows to %s\n", out.Len(), *output)
	fmt.Fprintf(stdout, "density: min %.4f max %.4f mean %.4f\n", d.Min, d.Max, d.Mean)
	fmt.Fprintf(stdout, "percentile window: low %.6g high %.6g\n", d.Low, d.High)
	if d.Degenerate {
		fmt.Fprintln(stdout, "warning: density was uniform, every point scored neutral")
	}
	return nil
}

func embedCmd(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	def := pipeline.DefaultConfig()
	fs := flag.NewFlagSet("embed", flag.ContinueOnError)
	fs.SetOutput(stderr)

	input := fs.String("input", "", "input CSV with a text column (.zst for compressed)")
	output := fs.String("output", "", "output CSV path (.zst for compressed)")
	configPath := fs.String("config", "", "optional YAML configuration file")
	metricsFile := fs.String("metrics-file", "", "write Prometheus metrics to this textfile")
	verbose := fs.Bool("v", false, "enable debug logging")

	textColumn := fs.String("text-column", def.Embed.TextColumn, "name of the text column")
	vectorColumn := fs.String("vector-column", def.VectorColumn, "name of the embedding column to add")
	embedderType := fs.String("embedder", def.Embed.Embedder.Type, "embedding backend: ollama or openai")
	url := fs.String("url", def.Embed.Embedder.URL, "embedding endpoint")
	model := fs.String("model", def.Embed.Embedder.Model, "embedding model")
	batchSize := fs.Int("batch-size", def.Embed.BatchSize, "texts per request")
	rps := fs.Float64("rps", 0, "maximum requests per second (0 = unlimited)")
	timeout := fs.Duration("timeout", def.Embed.Embedder.Timeout, "timeout per request")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" || *output == "" {
		return fmt.Errorf("-input and -output are required")
	}
	setupLogger(stderr, *verbose)

	cfg, err := loadConfig(fs, *configPath, func(name string, cfg *pipeline.Config) {
		switch name {
		case "text-column":
			cfg.Embed.TextColumn = *textColumn
		case "vector-column":
			cfg.VectorColumn = *vectorColumn
		case "embedder":
			cfg.Embed.Embedder.Type = *embedderType
		case "url":
			cfg.Embed.Embedder.URL = *url
		case "model":
			cfg.Embed.Embedder.Model = *model
		case "batch-size":
			cfg.Embed.BatchSize = *batchSize
		case "rps":
			cfg.Embed.Embedder.RequestsPerSecond = *rps
		case "timeout":
			cfg.Embed.Embedder.Timeout = *timeout
		}
	})
	if err != nil {
		return err
	}
	if cfg.Embed.Embedder.APIKey == "" {
		cfg.Embed.Embedder.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	embedder, err := embeddings.New(cfg.Embed.Embedder)
	if err != nil {
		return err
	}

	tbl, err := table.ReadFile(*input, table.ReadOptions{})
	if err != nil {
		return err
	}
	slog.Info("[CLI] Loaded input", "path", *input, "rows", tbl.Len())

	out, err := pipeline.Embed(ctx, tbl, cfg.Embed, cfg.VectorColumn, embedder)
	writeMetrics(*metricsFile)
	if err != nil {
		return err
	}
	if err := table.WriteFile(*output, out); err != nil {
		return err
	}

	emb, _ := out.Column(cfg.VectorColumn)
	fmt.Fprintf(stdout, "wrote %d rows with %d-dimensional embeddings to %s\n", out.Len(), emb.Dim(), *output)
	return nil
}

func writeMetrics(path string) {
	if path == "" {
		return
	}
	if err := metrics.WriteTextfile(path); err != nil {
		slog.Warn("[CLI] Failed to write metrics textfile", "path", path, "error", err)
	}
}
