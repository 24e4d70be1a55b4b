package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	flagQueryTopK   int
	flagQueryFilter []string
	flagQueryFull   bool
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search notes by meaning",
	Long: `Search the knowledge base semantically.

Matches are returned with their surrounding chunks so the answer is
readable on its own. Filters restrict the search to chunks whose
metadata contains every given key=value pair.`,
	Example: `  recall query "how do I cancel a context?"
  recall query "standup notes" --top-k 3 --filter subject=planning`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	queryCmd.Flags().IntVarP(&flagQueryTopK, "top-k", "k", 5, "number of results")
	queryCmd.Flags().StringArrayVar(&flagQueryFilter, "filter", nil, "metadata filter as key=value (repeatable)")
	queryCmd.Flags().BoolVar(&flagQueryFull, "full", false, "print full chunk text instead of a preview")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(ctx context.Context, query string) error {
	filter, err := parseKeyValues(flagQueryFilter)
	if err != nil {
		return err
	}

	logger := newLogger()
	a, _, err := setupApp(ctx, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	results, err := a.Service.Query(ctx, query, flagQueryTopK, filter)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	for i, res := range results {
		fmt.Printf("--- %d. %s (distance %.4f", i+1, res.ID, res.Distance)
		if res.Reranked {
			fmt.Printf(", rerank %.4f", res.RerankScore)
		}
		fmt.Println(") ---")

		text := res.Text
		if !flagQueryFull {
			text = preview(text, 500)
		}
		fmt.Println(text)
		fmt.Println()
	}
	return nil
}

// preview truncates text at a rune boundary.
func preview(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "…"
}
