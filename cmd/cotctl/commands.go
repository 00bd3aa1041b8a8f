package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cotpulse/internal/config"
	"cotpulse/internal/dataprocessing"
	"cotpulse/internal/exporter"
	"cotpulse/pkg/contracts/domain"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cotctl",
		Short:         "Inspect Commitments of Traders files",
		Version:       config.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newParseCmd(), newExportCmd(), newOverviewCmd())
	return root
}

type parseOptions struct {
	json  bool
	query string
	focus []string
}

func newParseCmd() *cobra.Command {
	var opts parseOptions
	cmd := &cobra.Command{
		Use:   "parse positions|history FILE...",
		Short: "Parse files and print the detected records",
		Example: `  cotctl parse positions report.csv
  cotctl parse history weekly.xlsx --json
  cotctl parse positions a.csv b.html --q gold`,
		Args:      cobra.MinimumNArgs(2),
		ValidArgs: []string{string(domain.DatasetPositions), string(domain.DatasetHistory)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := datasetArg(args[0])
			if err != nil {
				return err
			}
			results, err := parseFiles(cmd.Context(), kind, args[1:], opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.json {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			for _, res := range results {
				if err := printResult(out, res); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "print records as JSON")
	cmd.Flags().StringVar(&opts.query, "q", "", "keep only assets whose name contains this text")
	cmd.Flags().StringSliceVar(&opts.focus, "focus", nil, "keep only assets matching these symbols")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		outPath string
		sortKey string
		desc    bool
		noBOM   bool
	)
	cmd := &cobra.Command{
		Use:   "export positions|history FILE",
		Short: "Convert a file to the normalized CSV export",
		Example: `  cotctl export positions report.xlsx --out positions.csv --sort net
  cotctl export history weekly.html --out history.csv`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := datasetArg(args[0])
			if err != nil {
				return err
			}
			res, err := parseFile(kind, args[1], parseOptions{})
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = string(kind) + "-export.csv"
			}

			opts := exporter.WriteOptions{BOMPrefix: !noBOM}
			err = exporter.WriteFile(outPath, func(w io.Writer) error {
				if kind == domain.DatasetHistory {
					return exporter.ExportSeries(w, res.History, opts)
				}
				records := res.Positions
				if sortKey != "" {
					if records, err = dataprocessing.SortSnapshot(records, sortKey, desc); err != nil {
						return fmt.Errorf("sort must be one of: %s", strings.Join(dataprocessing.SortKeys, ", "))
					}
				}
				return exporter.ExportSnapshot(w, records, opts)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s\n", res.Count, outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default <dataset>-export.csv)")
	cmd.Flags().StringVar(&sortKey, "sort", "", "sort positions by "+strings.Join(dataprocessing.SortKeys, ", "))
	cmd.Flags().BoolVar(&desc, "desc", false, "sort descending")
	cmd.Flags().BoolVar(&noBOM, "no-bom", false, "omit the UTF-8 byte order mark")
	return cmd
}

func newOverviewCmd() *cobra.Command {
	var focus []string
	cmd := &cobra.Command{
		Use:   "overview FILE",
		Short: "Summarize a positions file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := parseFile(domain.DatasetPositions, args[0], parseOptions{focus: focus})
			if err != nil {
				return err
			}
			ov := dataprocessing.Overview(res.Positions)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "Assets\t%d\n", ov.TotalCount)
			fmt.Fprintf(tw, "Bullish\t%d\n", ov.Bullish)
			fmt.Fprintf(tw, "Bearish\t%d\n", ov.Bearish)
			if ov.MostActive != "" {
				fmt.Fprintf(tw, "Most active\t%s (%s)\n", ov.MostActive, ov.ActiveChange)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringSliceVar(&focus, "focus", nil, "keep only assets matching these symbols")
	return cmd
}

func datasetArg(arg string) (domain.DatasetKind, error) {
	kind := domain.DatasetKind(strings.ToLower(arg))
	if !kind.Valid() {
		return "", fmt.Errorf("unknown dataset %q: want positions or history", arg)
	}
	return kind, nil
}

// fileResult is the parse of one input file.
type fileResult struct {
	File      string                  `json:"file"`
	Dataset   domain.DatasetKind      `json:"dataset"`
	Count     int                     `json:"count"`
	Positions []domain.SnapshotRecord `json:"positions,omitempty"`
	History   []domain.SeriesRecord   `json:"history,omitempty"`
}

// parseFiles parses every path concurrently and returns the results in
// argument order.
func parseFiles(ctx context.Context, kind domain.DatasetKind, paths []string, opts parseOptions) ([]fileResult, error) {
	results := make([]fileResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := parseFile(kind, path, opts)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func parseFile(kind domain.DatasetKind, path string, opts parseOptions) (fileResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return fileResult{}, err
	}
	text, err := dataprocessing.DecodeUpload(filepath.Base(path), content)
	if err != nil {
		return fileResult{}, fmt.Errorf("%s: %w", path, err)
	}

	res := fileResult{File: path, Dataset: kind}
	focus := dataprocessing.NewFocus(opts.focus)
	switch kind {
	case domain.DatasetPositions:
		res.Positions = dataprocessing.Search(focus.Snapshot(dataprocessing.ParseSnapshot(text)), opts.query)
		res.Count = len(res.Positions)
	case domain.DatasetHistory:
		res.History = dataprocessing.SearchSeries(focus.Series(dataprocessing.ParseSeries(text)), opts.query)
		res.Count = len(res.History)
	}
	return res, nil
}

func printResult(w io.Writer, res fileResult) error {
	fmt.Fprintf(w, "%s: %d %s records\n", res.File, res.Count, res.Dataset)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	switch res.Dataset {
	case domain.DatasetPositions:
		fmt.Fprintln(tw, "COMMODITY\tNET\tCHANGE\tLONG\tSHORT")
		for _, r := range res.Positions {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Commodity, r.NetPositions, r.NetChange, r.LongPositions, r.ShortPositions)
		}
	case domain.DatasetHistory:
		fmt.Fprintln(tw, "COMMODITY\tWEEKS\tLATEST")
		for _, r := range res.History {
			latest := ""
			if len(r.Weeks) > 0 {
				latest = r.Weeks[0].Label + " " + r.Weeks[0].Raw
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\n", r.Commodity, len(r.Weeks), latest)
		}
	}
	return tw.Flush()
}
