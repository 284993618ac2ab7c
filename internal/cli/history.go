package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	historyDocID string
	historyJSON  bool
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show questions asked about a document",
	Long: `History lists the stored queries of a document, oldest first, with their
answers, citations and faithfulness scores.

Examples:
  docqa history -d 3f2a...
  docqa history -d thesis --limit 5 --json`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVarP(&historyDocID, "doc", "d", "", "document id (required)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output as JSON")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "show only the most recent n queries")
	historyCmd.MarkFlagRequired("doc")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if err := requireWorkspace(); err != nil {
		return err
	}
	repo, err := openRepository(GetConfig(), GetRootDir())
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx := cmd.Context()
	if _, err := repo.GetDocument(ctx, historyDocID); err != nil {
		return err
	}
	queries, err := repo.ListQueries(ctx, historyDocID)
	if err != nil {
		return err
	}
	if historyLimit > 0 && len(queries) > historyLimit {
		queries = queries[len(queries)-historyLimit:]
	}

	if historyJSON {
		return printJSON(queries)
	}
	if len(queries) == 0 {
		fmt.Println("No questions asked yet.")
		return nil
	}

	for _, q := range queries {
		fmt.Println(titleStyle.Render("Q: "+q.Question) + mutedStyle.Render("  "+q.CreatedAt.Local().Format("2006-01-02 15:04")))
		fmt.Println(chunkPreview(q.Answer))
		meta := fmt.Sprintf("faithfulness %.2f  citations %v  mode %s", q.Faithfulness, q.Citations, q.PromptMode)
		if q.Fallback {
			meta += "  extractive fallback"
		}
		fmt.Println(mutedStyle.Render(meta))
		fmt.Println()
	}
	return nil
}
