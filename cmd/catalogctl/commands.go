package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AlamKhalidDev/product-search/internal/app"
	"github.com/AlamKhalidDev/product-search/internal/catalog"
	"github.com/AlamKhalidDev/product-search/internal/config"
	"github.com/AlamKhalidDev/product-search/internal/event"
	"github.com/AlamKhalidDev/product-search/internal/service"
	pkgkafka "github.com/AlamKhalidDev/product-search/pkg/kafka"
	"github.com/AlamKhalidDev/product-search/pkg/logger"
)

const publishBatch = 500

type options struct {
	jsonOutput bool
	logLevel   string
}

// env holds what every command needs once configuration is loaded.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
	opts   *options
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "catalogctl",
		Short: "Load product catalogs and manage the search index",
		Long: `catalogctl stages Shopify CSV exports, rebuilds the product search
index and publishes catalog change events. Connection settings come from the
same environment variables as the search service.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&opts.jsonOutput, "json", "j", false, "Output as JSON")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override LOG_LEVEL")

	root.AddCommand(
		newVersionCmd(opts),
		newLoadCmd(opts),
		newReindexCmd(opts),
		newDropIndexCmd(opts),
		newPublishCmd(opts),
		newSeedCmd(opts),
	)
	return root
}

func setup(cmd *cobra.Command, opts *options) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.LogLevel
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	return &env{
		cfg:    cfg,
		logger: logger.NewWithWriter("catalogctl", level, cmd.ErrOrStderr()),
		out:    cmd.OutOrStdout(),
		opts:   opts,
	}, nil
}

func (e *env) print(v any, format string, args ...any) error {
	if e.opts.jsonOutput {
		enc := json.NewEncoder(e.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintf(e.out, format+"\n", args...)
	return err
}

func newVersionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := &env{out: cmd.OutOrStdout(), opts: opts}
			return e.print(map[string]string{"version": version, "commit": commit, "date": buildDate},
				"catalogctl %s (%s, %s)", version, commit, buildDate)
		},
	}
}

type loadResult struct {
	Parsed  int      `json:"parsed"`
	Skipped []string `json:"skipped,omitempty"`
	Staged  int64    `json:"staged"`
	Indexed int      `json:"indexed"`
}

func newLoadCmd(opts *options) *cobra.Command {
	var skipIndex bool
	cmd := &cobra.Command{
		Use:   "load <export.csv>",
		Short: "Stage a CSV export and rebuild the search index from it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			parsed, err := catalog.NewParser().ParseFile(args[0])
			if err != nil {
				return err
			}
			res := loadResult{Parsed: len(parsed.Products)}
			for _, s := range parsed.Skipped {
				e.logger.Warn("skipped catalog row", slog.Int("line", s.Line), slog.String("error", s.Err.Error()))
				res.Skipped = append(res.Skipped, s.Error())
			}

			// Index from the staging store when there is one, the file otherwise.
			e.cfg.CatalogCSVPath = args[0]
			cat, err := app.OpenCatalog(ctx, e.cfg, e.logger)
			if err != nil {
				return err
			}
			defer cat.Close()
			if cat.Store != nil {
				if res.Staged, err = cat.Store.Replace(ctx, parsed.Products); err != nil {
					return err
				}
			}

			if !skipIndex {
				svc, closeEngine, err := newService(e, cat.Source())
				if err != nil {
					return err
				}
				defer closeEngine()
				if res.Indexed, err = svc.Reindex(ctx); err != nil {
					return err
				}
			}

			return e.print(res, "parsed %d products (%d skipped), staged %d, indexed %d",
				res.Parsed, len(res.Skipped), res.Staged, res.Indexed)
		},
	}
	cmd.Flags().BoolVar(&skipIndex, "skip-index", false, "Only stage the export")
	return cmd
}

func newReindexCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Recreate the search index from the configured catalog source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			cat, err := app.OpenCatalog(cmd.Context(), e.cfg, e.logger)
			if err != nil {
				return err
			}
			defer cat.Close()

			svc, closeEngine, err := newService(e, cat.Source())
			if err != nil {
				return err
			}
			defer closeEngine()

			start := time.Now()
			n, err := svc.Reindex(cmd.Context())
			if err != nil {
				return err
			}
			return e.print(map[string]any{"indexed": n, "took_ms": time.Since(start).Milliseconds()},
				"indexed %d products in %s", n, time.Since(start).Round(time.Millisecond))
		},
	}
}

func newDropIndexCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "drop-index",
		Short: "Delete the search index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			svc, closeEngine, err := newService(e, nil)
			if err != nil {
				return err
			}
			defer closeEngine()

			if err := svc.DropIndex(cmd.Context()); err != nil {
				return err
			}
			return e.print(map[string]bool{"dropped": true}, "search index dropped")
		},
	}
}

func newPublishCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <export.csv>",
		Short: "Publish every product of a CSV export as an upsert event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			parsed, err := catalog.NewParser().ParseFile(args[0])
			if err != nil {
				return err
			}

			producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(e.cfg.KafkaBrokers), e.logger)
			defer producer.Close()

			n, err := publish(cmd, producer, parsed)
			if err != nil {
				return err
			}
			return e.print(map[string]any{"published": n, "topic": event.TopicProductEvents},
				"published %d events to %s", n, event.TopicProductEvents)
		},
	}
}

func newSeedCmd(opts *options) *cobra.Command {
	var (
		count int
		seed  uint64
		out   string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate a synthetic catalog as a Shopify CSV export",
		Long: `seed writes a reproducible synthetic catalog that "catalogctl load" and
"catalogctl publish" accept. The same --seed always yields the same products.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count <= 0 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}
			products := catalog.NewGenerator(seed).Generate(count)

			if out == "" {
				return catalog.WriteCSV(cmd.OutOrStdout(), products)
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := catalog.WriteCSV(f, products); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			e := &env{out: cmd.OutOrStdout(), opts: opts}
			return e.print(map[string]any{"generated": count, "path": out},
				"wrote %d products to %s", count, out)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 10000, "Number of products")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "Random seed")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	return cmd
}

type publisher interface {
	Publish(ctx context.Context, topic string, events ...*pkgkafka.Event) error
}

func publish(cmd *cobra.Command, p publisher, parsed *catalog.ParseResult) (int, error) {
	batch := make([]*pkgkafka.Event, 0, publishBatch)
	sent := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.Publish(cmd.Context(), event.TopicProductEvents, batch...); err != nil {
			return fmt.Errorf("publish events: %w", err)
		}
		sent += len(batch)
		batch = batch[:0]
		return nil
	}

	for i := range parsed.Products {
		input := service.InputFromProduct(&parsed.Products[i])
		ev, err := event.NewUpsertedEvent("catalogctl", &input)
		if err != nil {
			return sent, err
		}
		batch = append(batch, ev)
		if len(batch) == publishBatch {
			if err := flush(); err != nil {
				return sent, err
			}
		}
	}
	return sent, flush()
}

func newService(e *env, source service.CatalogSource) (*service.SearchService, func(), error) {
	eng, err := app.NewEngine(e.cfg, e.logger)
	if err != nil {
		return nil, nil, err
	}
	// Bulk loads are not bounded by the per-request engine timeout.
	svc := service.NewSearchService(eng, source, 10*time.Minute, e.logger)
	return svc, func() { _ = eng.Close() }, nil
}
