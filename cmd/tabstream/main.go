package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tabstream/tabstream/pkg/config"
	"github.com/tabstream/tabstream/pkg/logger"
	"github.com/tabstream/tabstream/pkg/obsmetrics"
	"github.com/tabstream/tabstream/pkg/pipeline"
	"github.com/tabstream/tabstream/pkg/xlsx"
)

var (
	version     = "0.1.0"
	metricsAddr string
)

func main() {
	root := &cobra.Command{
		Use:   "tabstream",
		Short: "tabstream - streaming CSV/TSV/XLSX tabular parser",
		Long:  "tabstream parses large CSV, TSV, and XLSX files as a bounded, cancellable stream of row or schema-typed columnar batches.",
	}
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090) while the stream runs; disabled if empty")

	root.AddCommand(
		newParseCmd(),
		newColumnarCmd(),
		newXlsxCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withMetrics registers collector against a private Prometheus registry,
// optionally serving it over HTTP at metricsAddr for the duration of work,
// then unregisters and shuts the server down.
func withMetrics(collector prometheus.Collector, work func() error) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collector); err != nil {
		return err
	}
	defer reg.Unregister(collector)

	if metricsAddr == "" {
		return work()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Get().Warn("metrics server exited", zap.Error(err))
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	return work()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tabstream v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newParseCmd() *cobra.Command {
	var configFile string
	var delimiter, quote string
	var hasHeader, useMmap, profile, jsonOut bool
	var batchSize int

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Stream a CSV/TSV file as row batches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.LoadCsvOptions(configFile)
			if err != nil {
				return err
			}
			applyDelimiterQuote(&opts, delimiter, quote)
			if cmd.Flags().Changed("headers") {
				opts.HasHeader = hasHeader
			}
			if cmd.Flags().Changed("batch-size") {
				opts.BatchSize = batchSize
			}
			opts.UseMmap = opts.UseMmap || useMmap
			opts.Profile = opts.Profile || profile

			p, err := pipeline.NewCSVRowPipeline(args[0], opts)
			if err != nil {
				return err
			}
			defer p.Close()

			return runRowStream(p, jsonOut)
		},
	}

	addCommonFlags(cmd, &configFile, &delimiter, &quote, &hasHeader, &useMmap, &profile, &jsonOut)
	cmd.Flags().IntVar(&batchSize, "batch-size", 10_000, "Rows per delivered batch")
	return cmd
}

func newColumnarCmd() *cobra.Command {
	var configFile string
	var delimiter, quote string
	var hasHeader, useMmap, profile, jsonOut bool
	var selectCols []string

	cmd := &cobra.Command{
		Use:   "columnar <file>",
		Short: "Stream a CSV/TSV file as schema-typed columnar batches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.LoadColumnarOptions(configFile)
			if err != nil {
				return err
			}
			applyDelimiterQuote(&opts.CsvOptions, delimiter, quote)
			if cmd.Flags().Changed("headers") {
				opts.HasHeader = hasHeader
			}
			if len(selectCols) > 0 {
				opts.Select = selectCols
			}
			opts.UseMmap = opts.UseMmap || useMmap
			opts.Profile = opts.Profile || profile

			p, err := pipeline.NewCSVColumnarPipeline(args[0], opts)
			if err != nil {
				return err
			}
			defer p.Close()

			return runColumnarStream(p, jsonOut)
		},
	}

	addCommonFlags(cmd, &configFile, &delimiter, &quote, &hasHeader, &useMmap, &profile, &jsonOut)
	cmd.Flags().StringSliceVar(&selectCols, "select", nil, "Comma-separated list of columns to project")
	return cmd
}

func newXlsxCmd() *cobra.Command {
	var configFile string
	var sheetIndex int
	var sheetName string
	var hasHeader, columnar, jsonOut bool
	var selectCols []string

	cmd := &cobra.Command{
		Use:   "xlsx <file>",
		Short: "Stream one worksheet of an XLSX file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if columnar {
				opts, err := config.LoadXlsxColumnarOptions(configFile)
				if err != nil {
					return err
				}
				applySheetSelection(&opts.XlsxOptions, cmd, sheetIndex, sheetName)
				if cmd.Flags().Changed("headers") {
					opts.HasHeader = hasHeader
				}
				if len(selectCols) > 0 {
					opts.Select = selectCols
				}
				p, err := xlsx.NewColumnarPipeline(args[0], opts)
				if err != nil {
					return err
				}
				defer p.Close()
				return runXlsxColumnarStream(p, jsonOut)
			}

			opts, err := config.LoadXlsxOptions(configFile)
			if err != nil {
				return err
			}
			applySheetSelection(&opts, cmd, sheetIndex, sheetName)
			if cmd.Flags().Changed("headers") {
				opts.HasHeader = hasHeader
			}
			p, err := xlsx.NewRowPipeline(args[0], opts)
			if err != nil {
				return err
			}
			defer p.Close()
			return runXlsxRowStream(p, jsonOut)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "Path to a YAML options file")
	cmd.Flags().IntVar(&sheetIndex, "sheet-index", 1, "1-based worksheet index")
	cmd.Flags().StringVar(&sheetName, "sheet-name", "", "Worksheet name (overrides --sheet-index)")
	cmd.Flags().BoolVar(&hasHeader, "headers", true, "First row is a header row")
	cmd.Flags().BoolVar(&columnar, "columnar", false, "Emit schema-typed columnar batches instead of rows")
	cmd.Flags().StringSliceVar(&selectCols, "select", nil, "Comma-separated list of columns to project (columnar mode only)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit newline-delimited JSON instead of a human-readable dump")
	return cmd
}

func addCommonFlags(cmd *cobra.Command, configFile, delimiter, quote *string, hasHeader, useMmap, profile, jsonOut *bool) {
	cmd.Flags().StringVar(configFile, "config", "", "Path to a YAML options file")
	cmd.Flags().StringVar(delimiter, "delimiter", "", "Field delimiter byte (default from config, usually ',')")
	cmd.Flags().StringVar(quote, "quote", "", "Quote byte (default from config, usually '\"')")
	cmd.Flags().BoolVar(hasHeader, "headers", false, "First row is a header row")
	cmd.Flags().BoolVar(useMmap, "mmap", false, "Memory-map the input file instead of buffering reads")
	cmd.Flags().BoolVar(profile, "profile", false, "Record per-stage timing metrics")
	cmd.Flags().BoolVar(jsonOut, "json", false, "Emit newline-delimited JSON instead of a human-readable dump")
}

func applyDelimiterQuote(opts *config.CsvOptions, delimiter, quote string) {
	if delimiter != "" {
		opts.Delimiter = delimiter[0]
	}
	if quote != "" {
		opts.Quote = quote[0]
	}
}

func applySheetSelection(opts *config.XlsxOptions, cmd *cobra.Command, sheetIndex int, sheetName string) {
	if sheetName != "" {
		opts.SheetName = sheetName
		opts.SheetIndex = 0
		return
	}
	if cmd.Flags().Changed("sheet-index") {
		opts.SheetIndex = sheetIndex
	}
}

func runRowStream(p *pipeline.Pipeline, jsonOut bool) error {
	start := time.Now()
	p.Start()

	return withMetrics(obsmetrics.NewCollector("parse", p.MetricsSource()), func() error {
		var rows uint64
		for {
			msg := p.Next()
			switch msg.Kind {
			case pipeline.KindBatch:
				for _, row := range msg.Row.Rows {
					rows++
					if jsonOut {
						printJSONRow(row)
					} else {
						fmt.Println(row)
					}
				}
			case pipeline.KindDone:
				logStreamComplete(rows, start)
				return nil
			case pipeline.KindCancelled:
				return nil
			case pipeline.KindError:
				return msg.Err
			}
		}
	})
}

func runColumnarStream(p *pipeline.Pipeline, jsonOut bool) error {
	start := time.Now()
	p.Start()

	return withMetrics(obsmetrics.NewCollector("columnar", p.MetricsSource()), func() error {
		var rows uint64
		for {
			msg := p.Next()
			switch msg.Kind {
			case pipeline.KindBatch:
				rows += uint64(msg.Columnar.Rows)
				printColumnarBatch(msg.Columnar.Headers, msg.Columnar.Rows, jsonOut)
			case pipeline.KindDone:
				logStreamComplete(rows, start)
				return nil
			case pipeline.KindCancelled:
				return nil
			case pipeline.KindError:
				return msg.Err
			}
		}
	})
}

func runXlsxRowStream(p *xlsx.Pipeline, jsonOut bool) error {
	start := time.Now()
	p.Start()

	return withMetrics(obsmetrics.NewCollector("xlsx", p.MetricsSource()), func() error {
		var rows uint64
		for {
			msg := p.Next()
			switch msg.Kind {
			case pipeline.KindBatch:
				for _, row := range msg.Row.Rows {
					rows++
					if jsonOut {
						printJSONRow(row)
					} else {
						fmt.Println(row)
					}
				}
			case pipeline.KindDone:
				logStreamComplete(rows, start)
				return nil
			case pipeline.KindCancelled:
				return nil
			case pipeline.KindError:
				return msg.Err
			}
		}
	})
}

func runXlsxColumnarStream(p *xlsx.Pipeline, jsonOut bool) error {
	start := time.Now()
	p.Start()

	return withMetrics(obsmetrics.NewCollector("xlsx-columnar", p.MetricsSource()), func() error {
		var rows uint64
		for {
			msg := p.Next()
			switch msg.Kind {
			case pipeline.KindBatch:
				rows += uint64(msg.Columnar.Rows)
				printColumnarBatch(msg.Columnar.Headers, msg.Columnar.Rows, jsonOut)
			case pipeline.KindDone:
				logStreamComplete(rows, start)
				return nil
			case pipeline.KindCancelled:
				return nil
			case pipeline.KindError:
				return msg.Err
			}
		}
	})
}

func printJSONRow(row []string) {
	b, err := gojson.Marshal(row)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Println(string(b))
}

func printColumnarBatch(headers []string, rows int, jsonOut bool) {
	if jsonOut {
		b, err := gojson.Marshal(map[string]interface{}{"headers": headers, "rows": rows})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		fmt.Println(string(b))
		return
	}
	fmt.Printf("batch: %d rows, columns %v\n", rows, headers)
}

func logStreamComplete(rows uint64, start time.Time) {
	duration := time.Since(start)
	logger.Get().Info("stream complete",
		zap.Uint64("rows", rows),
		zap.Duration("duration", duration),
		zap.Float64("rows_per_second", float64(rows)/duration.Seconds()))
}
