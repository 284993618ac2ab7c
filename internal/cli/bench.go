package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docqa/internal/adapter/retriever"
	"docqa/internal/domain"
)

var (
	benchDocID    string
	benchQuestion string
	benchTopK     int
	benchJSON     bool
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Compare BM25, vector and fused rankings for a question",
	Long: `Bench ranks a document's chunks with BM25 alone, cosine similarity alone
and reciprocal rank fusion of both, then prints the three rankings side by
side with their overlap. No answer is generated.

Examples:
  docqa bench -d 3f2a... -q "How is the model evaluated?" -k 10`,
	Args: cobra.NoArgs,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().StringVarP(&benchDocID, "doc", "d", "", "document id (required)")
	benchCmd.Flags().StringVarP(&benchQuestion, "question", "q", "", "question to rank for (required)")
	benchCmd.Flags().IntVarP(&benchTopK, "top-k", "k", 0, "rankings depth (default from config)")
	benchCmd.Flags().BoolVar(&benchJSON, "json", false, "output as JSON")
	benchCmd.MarkFlagRequired("doc")
	benchCmd.MarkFlagRequired("question")
}

type benchRow struct {
	ChunkIndex   int     `json:"chunk_index"`
	SectionTitle string  `json:"section_title"`
	Score        float64 `json:"score"`
}

type benchOutput struct {
	Chunks        int        `json:"chunks"`
	BM25          []benchRow `json:"bm25"`
	Vector        []benchRow `json:"vector"`
	Fused         []benchRow `json:"fused"`
	OverlapBM25   float64    `json:"overlap_fused_bm25"`
	OverlapVector float64    `json:"overlap_fused_vector"`
}

func runBench(cmd *cobra.Command, args []string) error {
	if err := requireWorkspace(); err != nil {
		return err
	}

	topK := GetConfig().Retrieve.TopK
	if benchTopK > 0 {
		topK = benchTopK
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cmp, err := a.Retrieve.Compare(cmd.Context(), benchDocID, benchQuestion, topK)
	if err != nil {
		return err
	}

	out := benchOutput{
		Chunks:        cmp.Chunks,
		BM25:          benchRows(cmp.BM25),
		Vector:        benchRows(cmp.Vector),
		Fused:         benchRows(cmp.Fused),
		OverlapBM25:   retriever.Overlap(cmp.Fused, cmp.BM25),
		OverlapVector: retriever.Overlap(cmp.Fused, cmp.Vector),
	}
	if benchJSON {
		return printJSON(out)
	}

	fmt.Println(titleStyle.Render("RETRIEVAL COMPARISON"))
	fmt.Println(strings.Repeat("=", 78))
	fmt.Printf("Question: %q\n", benchQuestion)
	fmt.Printf("Chunks scored: %d, top %d\n\n", out.Chunks, topK)

	fmt.Printf("%-4s  %-22s  %-22s  %-22s\n", "RANK", "BM25", "VECTOR", "FUSED (RRF)")
	fmt.Println(strings.Repeat("-", 78))
	for i := range out.Fused {
		fmt.Printf("%-4d  %-22s  %-22s  %-22s\n", i+1, benchCell(out.BM25, i), benchCell(out.Vector, i), benchCell(out.Fused, i))
	}

	fmt.Println()
	fmt.Printf("Fused vs BM25 overlap:   %.0f%%\n", out.OverlapBM25*100)
	fmt.Printf("Fused vs vector overlap: %.0f%%\n", out.OverlapVector*100)
	return nil
}

func benchRows(ranked []domain.RetrievedChunk) []benchRow {
	rows := make([]benchRow, len(ranked))
	for i, r := range ranked {
		rows[i] = benchRow{
			ChunkIndex:   r.Chunk.Index,
			SectionTitle: r.Chunk.Metadata.SectionTitle,
			Score:        r.Score,
		}
	}
	return rows
}

func benchCell(rows []benchRow, i int) string {
	if i >= len(rows) {
		return ""
	}
	return fmt.Sprintf("#%d %.4f", rows[i].ChunkIndex, rows[i].Score)
}
