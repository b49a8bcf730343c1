package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/docrank/docrank/internal/retrieval"
)

func newAskCmd() *cobra.Command {
	var (
		indices       []string
		jsonOutput    bool
		expandContext bool
		topK          int
		timeout       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Retrieve and rank context for a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			pipeline := retrieval.NewPipeline(st, newEmbedder(cfg),
				retrieval.WithCompletion(newCompletion(cfg)),
				retrieval.WithDefaults(pipelineOptions(cfg)),
			)

			opts := retrieval.Options{ExpandContext: expandContext}
			if topK > 0 {
				opts.FinalTopK = topK
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			question := strings.Join(args, " ")
			resp, err := pipeline.Retrieve(ctx, question, indices, opts)
			if err != nil {
				return err
			}

			if jsonOutput || !isatty.IsTerminal(os.Stdout.Fd()) {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			renderResponse(cmd, resp)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&indices, "index", "i", nil, "Index to search (repeatable; default: all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	cmd.Flags().BoolVar(&expandContext, "expand", false, "Pull in adjacent chunks as supporting context")
	cmd.Flags().IntVarP(&topK, "top", "k", 0, "Number of ranked chunks to return")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall request timeout")

	return cmd
}

func renderResponse(cmd *cobra.Command, resp retrieval.ContextualResponse) {
	out := cmd.OutOrStdout()

	if resp.Status != "" {
		fmt.Fprintf(out, "note: %s\n\n", resp.Status)
	}
	if len(resp.Chunks) == 0 {
		fmt.Fprintln(out, "No matching content found.")
		return
	}

	fmt.Fprintln(out, resp.ContextString)

	if len(resp.Citations) > 0 {
		fmt.Fprintln(out, "Sources:")
		for _, c := range resp.Citations {
			fmt.Fprintf(out, "  - %s\n", c)
		}
	}
}
