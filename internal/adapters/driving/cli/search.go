package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quorum-labs/quorum/internal/core/domain"
)

var (
	searchLimit    int
	searchMinScore float64
	searchRefType  string
	searchChunks   bool
	searchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search memory by meaning",
	Long: `Embeds the query and ranks stored documents and events by cosine
similarity. Long documents match at chunk granularity.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().Float64Var(&searchMinScore, "min-score", 0, "drop results below this similarity")
	searchCmd.Flags().StringVar(&searchRefType, "ref-type", "", "restrict to a reference family (document, event)")
	searchCmd.Flags().BoolVar(&searchChunks, "chunks", false, "include chunk-level hits")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if recallService == nil {
		return errors.New("recall service not configured")
	}

	filter := domain.SearchFilter{
		RefTypeBase:   searchRefType,
		IncludeChunks: searchChunks,
		MinScore:      searchMinScore,
	}

	hits, err := recallService.SearchText(context.Background(), args[0], filter, searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(hits, "", "  ")
		if err != nil {
			return fmt.Errorf("marshalling results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(hits) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, hit := range hits {
		cmd.Printf("[%d] %s (%s, score %.3f)\n", i+1, hit.RefID, hit.RefType, hit.Score)
	}
	return nil
}
