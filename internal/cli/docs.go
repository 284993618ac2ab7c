package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"docqa/internal/domain"
)

var (
	docsJSON  bool
	docsRmAll bool
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List, inspect and remove processed documents",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents with status and chunk count",
	Args:  cobra.NoArgs,
	RunE:  runDocsList,
}

var docsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsShow,
}

var docsRmCmd = &cobra.Command{
	Use:   "rm [id]...",
	Short: "Remove documents with their chunks and query history",
	RunE:  runDocsRm,
}

func init() {
	rootCmd.AddCommand(docsCmd)
	docsCmd.AddCommand(docsListCmd, docsShowCmd, docsRmCmd)
	docsCmd.PersistentFlags().BoolVar(&docsJSON, "json", false, "output as JSON")
	docsRmCmd.Flags().BoolVar(&docsRmAll, "all", false, "remove every document")
}

func runDocsList(cmd *cobra.Command, args []string) error {
	if err := requireWorkspace(); err != nil {
		return err
	}
	repo, err := openRepository(GetConfig(), GetRootDir())
	if err != nil {
		return err
	}
	defer repo.Close()

	docs, err := repo.ListDocuments(cmd.Context())
	if err != nil {
		return err
	}

	if docsJSON {
		for i := range docs {
			docs[i].Content = ""
		}
		return printJSON(docs)
	}
	if len(docs) == 0 {
		fmt.Println("No documents. Run 'docqa process <file>' to add one.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILENAME\tSTATUS\tCHUNKS\tUPDATED")
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", d.ID, d.Filename, d.Status, d.ChunkCount, d.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runDocsShow(cmd *cobra.Command, args []string) error {
	if err := requireWorkspace(); err != nil {
		return err
	}
	repo, err := openRepository(GetConfig(), GetRootDir())
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx := cmd.Context()
	doc, err := repo.GetDocument(ctx, args[0])
	if err != nil {
		return err
	}
	chunks, err := repo.GetChunksByDocument(ctx, doc.ID)
	if err != nil {
		return err
	}

	if docsJSON {
		for i := range chunks {
			chunks[i].Embedding = nil
		}
		doc.Content = ""
		return printJSON(struct {
			Document domain.Document `json:"document"`
			Chunks   []domain.Chunk  `json:"chunks"`
		}{doc, chunks})
	}

	fmt.Printf("%s  %s\n", titleStyle.Render(doc.Filename), mutedStyle.Render(doc.ID))
	fmt.Printf("status %s, %d chunks, created %s\n", doc.Status, doc.ChunkCount, doc.CreatedAt.Local().Format("2006-01-02 15:04"))
	if doc.Error != "" {
		fmt.Println(warnStyle.Render("error: " + doc.Error))
	}
	fmt.Println()

	for _, c := range chunks {
		section := c.Metadata.SectionTitle
		if section == "" {
			section = "document"
		}
		model := c.EmbeddingModel
		if c.Embedding == nil {
			model = "no embedding"
		}
		fmt.Println(sourceStyle.Render(fmt.Sprintf("#%d", c.Index)) +
			mutedStyle.Render(fmt.Sprintf(" %s (level %d, %d tokens, %s)", section, c.Metadata.SectionLevel, c.Metadata.TokenCount, model)))
		fmt.Println(chunkPreview(c.Text))
		fmt.Println()
	}
	return nil
}

// clearer is implemented by stores that can drop every document at once.
type clearer interface {
	Clear() error
}

func runDocsRm(cmd *cobra.Command, args []string) error {
	if !docsRmAll && len(args) == 0 {
		return fmt.Errorf("give at least one document id, or --all")
	}
	if err := requireWorkspace(); err != nil {
		return err
	}
	repo, err := openRepository(GetConfig(), GetRootDir())
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx := cmd.Context()
	if docsRmAll {
		if c, ok := repo.(clearer); ok {
			if err := c.Clear(); err != nil {
				return err
			}
			fmt.Println("Removed all documents.")
			return nil
		}
		docs, err := repo.ListDocuments(ctx)
		if err != nil {
			return err
		}
		args = args[:0]
		for _, d := range docs {
			args = append(args, d.ID)
		}
	}

	for _, id := range args {
		if err := repo.DeleteDocument(ctx, id); err != nil {
			return fmt.Errorf("remove %s: %w", id, err)
		}
		fmt.Printf("Removed %s\n", id)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
