package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alfredjeanlab/lngraph/internal/config"
	"github.com/alfredjeanlab/lngraph/internal/model"
	"github.com/alfredjeanlab/lngraph/internal/source"
	"github.com/alfredjeanlab/lngraph/internal/ui"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <src>",
	Short: "Decode a graph document and print a summary",
	Long: `Decode a describegraph JSON document from a file, "-" for stdin,
an http(s):// URL or an s3://bucket/key object.

With --json the canonical re-encoded graph is printed instead.`,
	GroupID: "local",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadGraph(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			data, err := model.Encode(g)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(append(data, '\n'))
			return err
		}
		printGraphSummary(os.Stdout, g)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:     "stats <src>...",
	Short:   "Print aggregate statistics for one or more graph documents",
	GroupID: "local",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := loadStats(cmd.Context(), args)
		if err != nil {
			return err
		}
		if len(results) == 1 {
			if jsonOutput {
				return printJSON(os.Stdout, results[0].Stats)
			}
			printStats(os.Stdout, &results[0].Stats)
			return nil
		}
		if jsonOutput {
			return printJSON(os.Stdout, results)
		}
		for i := range results {
			if i > 0 {
				fmt.Fprintln(os.Stdout)
			}
			fmt.Fprintln(os.Stdout, ui.RenderAccent(results[i].Source))
			printStats(os.Stdout, &results[i].Stats)
		}
		return nil
	},
}

// maxConcurrentLoads bounds how many sources stats fetches at once.
const maxConcurrentLoads = 4

type sourceStats struct {
	Source string      `json:"source"`
	Stats  model.Stats `json:"stats"`
}

// loadStats loads every uri concurrently and returns their stats in
// argument order. The first failure cancels the remaining loads.
func loadStats(ctx context.Context, uris []string) ([]sourceStats, error) {
	results := make([]sourceStats, len(uris))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLoads)
	for i, uri := range uris {
		g.Go(func() error {
			graph, err := loadGraph(ctx, uri)
			if err != nil {
				return fmt.Errorf("%s: %w", uri, err)
			}
			results[i] = sourceStats{Source: uri, Stats: model.ComputeStats(graph)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// sourceOptions takes S3 settings from the same environment and config file
// the server reads.
func sourceOptions() (source.Options, error) {
	cfg, err := config.Load()
	if err != nil {
		return source.Options{}, err
	}
	return source.Options{
		S3:    source.S3Options{Region: cfg.S3Region, Endpoint: cfg.S3Endpoint},
		Token: os.Getenv("LNGRAPH_SOURCE_TOKEN"),
	}, nil
}

func openSource(ctx context.Context, uri string) (source.Source, error) {
	opts, err := sourceOptions()
	if err != nil {
		return nil, err
	}
	return source.Open(ctx, uri, opts)
}

func loadGraph(ctx context.Context, uri string) (*model.Graph, error) {
	src, err := openSource(ctx, uri)
	if err != nil {
		return nil, err
	}
	return source.Load(ctx, src)
}
