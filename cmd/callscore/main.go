package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"speech-analytics-go/internal/config"
	"speech-analytics-go/internal/dataset"
	"speech-analytics-go/internal/history"
	"speech-analytics-go/internal/logger"
	"speech-analytics-go/internal/narrator"
	"speech-analytics-go/internal/observe"
	"speech-analytics-go/internal/pipeline"
	"speech-analytics-go/internal/types"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "callscore",
		Short:        "Score recorded conversations and compare them with past runs",
		SilenceUsage: true,
	}
	root.AddCommand(newAnalyzeCmd(), newHistoryCmd())
	return root
}

func newAnalyzeCmd() *cobra.Command {
	var segmentsPath, key, reportPath string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a transcript (.json or .xlsx segments) and append it to history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.NewWithOptions(conf.Env, conf.LogLevel, os.Stderr)

			segs, err := readSegments(segmentsPath)
			if err != nil {
				return err
			}
			store, closer, err := conf.OpenHistory()
			if err != nil {
				return err
			}
			defer closer.Close()

			eng := pipeline.NewEngine(store)
			eng.Config = conf.Scoring
			eng.Narrator = narrator.FromEnv()
			eng.Observer = observe.NewLogObserver(log.Entry)

			res, err := eng.Run(cmd.Context(), pipeline.Request{Key: key, Segments: segs})
			if err != nil {
				return err
			}
			log.WithFields(logger.AnalysisFields(res)).Info("analysis completed")
			if reportPath != "" {
				if err := dataset.WriteReport(reportPath, res); err != nil {
					return err
				}
				log.WithField("path", reportPath).Info("report written")
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&segmentsPath, "segments", "", "path to segments (.json array or .xlsx sheet)")
	cmd.Flags().StringVar(&key, "key", pipeline.DefaultKey, "comparison key")
	cmd.Flags().StringVar(&reportPath, "report", "", "optional .xlsx report output")
	_ = cmd.MarkFlagRequired("segments")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	hist := &cobra.Command{Use: "history", Short: "Inspect stored analyses"}

	var key, out string
	export := &cobra.Command{
		Use:   "export",
		Short: "Export the history of one comparison key to .xlsx",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := config.Load()
			if err != nil {
				return err
			}
			store, closer, err := conf.OpenHistory()
			if err != nil {
				return err
			}
			defer closer.Close()
			key := pipeline.NormalizeKey(key)
			recs, err := store.Fetch(cmd.Context(), key)
			if err != nil {
				return &types.HistoryUnavailableError{Op: "fetch", Key: key, Err: err}
			}
			if err := dataset.ExportHistory(out, key, recs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d records to %s\n", len(recs), out)
			return nil
		},
	}
	export.Flags().StringVar(&key, "key", pipeline.DefaultKey, "comparison key")
	export.Flags().StringVar(&out, "out", "history.xlsx", "output workbook")

	keys := &cobra.Command{
		Use:   "keys",
		Short: "List the comparison keys that have stored analyses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := config.Load()
			if err != nil {
				return err
			}
			store, closer, err := conf.OpenHistory()
			if err != nil {
				return err
			}
			defer closer.Close()
			l, ok := store.(history.Lister)
			if !ok {
				return history.ErrNotListable
			}
			ks, err := l.Keys(cmd.Context())
			if err != nil {
				return &types.HistoryUnavailableError{Op: "keys", Err: err}
			}
			for _, k := range ks {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
	hist.AddCommand(export, keys)
	return hist
}

func readSegments(path string) ([]types.Segment, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return dataset.LoadSegments(path)
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var segs []types.Segment
		if err := json.Unmarshal(data, &segs); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return segs, nil
	}
	return nil, fmt.Errorf("unsupported segments file %q (want .json or .xlsx)", path)
}
