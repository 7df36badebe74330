package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	ctxengine "github.com/phillt/bernard-sub001/internal/context"
	"github.com/phillt/bernard-sub001/internal/memory"
	"github.com/phillt/bernard-sub001/pkg/message"
)

func readHistory(path string) ([]message.Message, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var history []message.Message
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("parse history %s: %w", path, err)
	}
	return history, nil
}

func compressCmd(flags *globalFlags) *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "compress <history.json>",
		Short: "Summarize old turns of a conversation and store extracted facts",
		Long: "Reads a JSON array of messages, replaces everything before the last\n" +
			"turns with a summary, prints the new history, and stores the facts\n" +
			"extracted from the compressed part.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := readHistory(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				p, err := a.newProvider()
				if err != nil {
					return err
				}
				c := ctxengine.NewCompressor(p, a.cache,
					ctxengine.WithLogger(a.logger),
					ctxengine.WithExtractor(memory.NewLLMExtractor(p, a.cfg.Compression.ExtractionMaxTokens)),
					ctxengine.WithMetrics(ctxengine.NewMetrics(a.registry)),
				)

				cfg := a.compressConfig()
				if keep > 0 {
					cfg.RecentTurnsToKeep = keep
				}
				out := c.Compress(ctx, history, cfg)
				c.Wait()
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 0, "User turns to keep verbatim (default from config)")
	return cmd
}

func recallCmd(flags *globalFlags) *cobra.Command {
	var (
		historyPath  string
		model        string
		systemPrompt string
		showQuery    bool
	)
	cmd := &cobra.Command{
		Use:   "recall <input>",
		Short: "Show the recalled context the next turn would receive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := readHistory(historyPath)
			if err != nil {
				return err
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				rc := a.cfg.Recall
				asm := ctxengine.NewContextAssembler(a.newEstimator(), nil, a.cache)
				asm.SetRecallConfig(ctxengine.RecallConfig{
					MaxQueryChars:   rc.MaxQueryChars,
					RecentUserTexts: rc.RecentUserTexts,
				}, memory.StickinessOptions{
					Boost:         rc.StickinessBoost,
					TopKPerDomain: rc.TopKPerDomain,
					MaxResults:    rc.MaxResults,
				})

				res := asm.Assemble(ctx, ctxengine.AssemblyRequest{
					SystemPrompt: systemPrompt,
					History:      history,
					Input:        strings.Join(args, " "),
					Model:        model,
				})

				out := cmd.OutOrStdout()
				if showQuery {
					fmt.Fprintf(out, "Query: %s\n\n", res.Query)
				}
				if len(res.Recalled) == 0 {
					fmt.Fprintln(out, "Nothing recalled.")
				} else {
					fmt.Fprintln(out, memory.BuildRecalledContextBlock(res.Recalled))
				}
				b := res.Budget
				fmt.Fprintf(out, "Tokens: system=%d memory=%d history=%d available=%d\n",
					b.System, b.Memory, b.History, b.Available())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&historyPath, "history", "", "JSON file with the conversation so far")
	cmd.Flags().StringVar(&model, "model", "", "Model the turn runs on (for the context window)")
	cmd.Flags().StringVar(&systemPrompt, "system", "", "Base system prompt")
	cmd.Flags().BoolVar(&showQuery, "show-query", false, "Print the composed search query")
	return cmd
}
