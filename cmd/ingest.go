package main

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/ibimina/ingest-core/internal/adapter"
	"github.com/ibimina/ingest-core/internal/model"
	"github.com/ibimina/ingest-core/internal/store"
)

var (
	ingestType     string
	ingestWorkers  int
	ingestEncoding string
	ingestSkipRows int
	ingestSave     bool
	ingestAppend   bool
	ingestOrg      string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Parse a delimited statement export line by line",
	Long:  "Reads a statement export from disk, auto-detects an adapter per line, and prints one parse result per line as JSON. Lines no adapter recognizes are reported as failures, not skipped silently.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reg, err := initRegistry()
		if err != nil {
			return err
		}

		typ := adapter.Type(ingestType)
		if ingestType != "" && !typ.Valid() {
			return eris.Errorf("unknown adapter type %q (want statement or sms)", ingestType)
		}

		var sink store.TransactionStore
		if ingestSave {
			if ingestOrg == "" {
				return eris.New("--save requires --org")
			}
			sink, err = store.NewPostgres(ctx, store.Options{
				ConnString: cfg.Storage.DatabaseURL,
				Table:      cfg.Storage.TransactionsTable,
				AppendOnly: ingestAppend,
			})
			if err != nil {
				return err
			}
			defer sink.Close()
		}

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open %s", args[0])
		}
		defer f.Close()

		var reader io.Reader = f
		if ingestEncoding != "" {
			enc, err := htmlindex.Get(ingestEncoding)
			if err != nil {
				return eris.Wrapf(err, "unsupported encoding %q", ingestEncoding)
			}
			reader = enc.NewDecoder().Reader(f)
		}

		type line struct {
			num  int
			text string
		}

		lines := make(chan line)
		results := make(chan model.ParseResult)

		var parsed, failed atomic.Int64

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			defer close(lines)
			scanner := bufio.NewScanner(reader)
			num := 0
			for scanner.Scan() {
				num++
				if num <= ingestSkipRows {
					continue
				}
				text := scanner.Text()
				if text == "" {
					continue
				}
				select {
				case lines <- line{num: num, text: text}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return eris.Wrap(scanner.Err(), "read input")
		})

		workers := ingestWorkers
		if workers <= 0 {
			workers = 4
		}
		wg, _ := errgroup.WithContext(gctx)
		for range workers {
			wg.Go(func() error {
				for l := range lines {
					result := reg.AutoParse(l.text, typ)
					if result.Success {
						parsed.Add(1)
					} else {
						failed.Add(1)
						zap.L().Debug("line failed to parse",
							zap.Int("line", l.num),
							zap.String("error", result.Error),
						)
					}
					select {
					case results <- result:
					case <-gctx.Done():
						return gctx.Err()
					}
				}
				return nil
			})
		}
		go func() {
			_ = wg.Wait()
			close(results)
		}()

		var collected []model.ParseResult
		enc := json.NewEncoder(os.Stdout)
		for result := range results {
			if err := enc.Encode(result); err != nil {
				return eris.Wrap(err, "encode result")
			}
			if sink != nil && result.Success {
				collected = append(collected, result)
			}
		}

		if err := g.Wait(); err != nil {
			return err
		}
		if err := wg.Wait(); err != nil {
			return err
		}

		var saved int64
		if sink != nil {
			saved, err = sink.SaveBatch(ctx, ingestOrg, ingestType, collected)
			if err != nil {
				return err
			}
		}

		zap.L().Info("ingest complete",
			zap.Int64("parsed", parsed.Load()),
			zap.Int64("failed", failed.Load()),
			zap.Int64("saved", saved),
		)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestType, "type", "statement", "adapter type to try: statement or sms")
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 4, "concurrent parse workers")
	ingestCmd.Flags().StringVar(&ingestEncoding, "encoding", "", "decode the input from this charset (e.g. windows-1252)")
	ingestCmd.Flags().IntVar(&ingestSkipRows, "skip-rows", 1, "header rows to skip")
	ingestCmd.Flags().BoolVar(&ingestSave, "save", false, "upsert parsed transactions into the configured database")
	ingestCmd.Flags().BoolVar(&ingestAppend, "append", false, "with --save, COPY straight into the table instead of upserting; only for backfills free of duplicates")
	ingestCmd.Flags().StringVar(&ingestOrg, "org", "", "organization id to attribute saved transactions to")
	rootCmd.AddCommand(ingestCmd)
}
