package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phillt/bernard-sub001/internal/memory"
)

// withApp builds the app, runs fn, and releases resources.
func withApp(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, flags)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			a.logger.Warn("shutdown failed", "error", err)
		}
	}()
	return fn(ctx, a)
}

func memoryCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and edit long-term memory",
	}
	cmd.AddCommand(
		memoryListCmd(flags),
		memorySearchCmd(flags),
		memoryAddCmd(flags),
		memoryDeleteCmd(flags),
		memoryClearCmd(flags),
		memoryCountCmd(flags),
	)
	return cmd
}

func memoryListCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored facts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(_ context.Context, a *app) error {
				out := cmd.OutOrStdout()
				if asJSON {
					return printJSON(out, a.cache.Entries())
				}
				for i, e := range a.cache.Entries() {
					fmt.Fprintf(out, "%3d. %s  %s\n", i+1, e.ID, e)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	return cmd
}

func memorySearchCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search facts by meaning",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				results := a.cache.Search(ctx, strings.Join(args, " "))
				out := cmd.OutOrStdout()
				if len(results) == 0 {
					fmt.Fprintln(out, "No matching facts.")
					return nil
				}
				for _, r := range results {
					fmt.Fprintf(out, "%.2f  %s\n", r.Similarity, r.Fact)
				}
				return nil
			})
		},
	}
}

func memoryAddCmd(flags *globalFlags) *cobra.Command {
	var domain string
	cmd := &cobra.Command{
		Use:   "add <fact>...",
		Short: "Store facts (use - to read one per line from stdin)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			facts := args
			if len(args) == 1 && args[0] == "-" {
				var err error
				if facts, err = readLines(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				added := a.cache.AddDomainFacts(ctx, domain, facts, memory.SourceManual)
				fmt.Fprintf(cmd.OutOrStdout(), "Added %d of %d facts.\n", added, len(facts))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "", "Domain label for the facts")
	return cmd
}

func memoryDeleteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete facts by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				n := a.cache.DeleteByIDs(ctx, args)
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d facts.\n", n)
				return nil
			})
		},
	}
}

func memoryClearCmd(flags *globalFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored fact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear memory without --yes")
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				n := a.cache.Count()
				a.cache.Clear(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d facts.\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")
	return cmd
}

func memoryCountCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of stored facts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(_ context.Context, a *app) error {
				fmt.Fprintln(cmd.OutOrStdout(), a.cache.Count())
				return nil
			})
		},
	}
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
