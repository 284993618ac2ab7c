package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"docqa/internal/prompt"
	"docqa/internal/usecase"
)

const previewChars = 200

var (
	askDocID    string
	askQuestion string
	askMode     string
	askTopK     int
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a question about a processed document",
	Long: `Ask retrieves the most relevant chunks of a document with hybrid BM25 and
vector search, generates an answer citing them as [SOURCE n] and reports
how much of the answer is backed by citations.

Examples:
  docqa ask -d 3f2a... -q "What dataset was used?"
  docqa ask -d thesis -q "Summarise the method" --mode basic --top-k 3 --json`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askDocID, "doc", "d", "", "document id (required)")
	askCmd.Flags().StringVarP(&askQuestion, "question", "q", "", "question to answer (required)")
	askCmd.Flags().StringVarP(&askMode, "mode", "m", "advanced", "prompt mode: basic or advanced")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.MarkFlagRequired("doc")
	askCmd.MarkFlagRequired("question")
}

// askOutput is the JSON shape of an answer.
type askOutput struct {
	QueryID      string            `json:"query_id"`
	Answer       string            `json:"answer"`
	Citations    []string          `json:"citations"`
	Faithfulness float64           `json:"faithfulness_score"`
	PromptMode   string            `json:"prompt_type"`
	Fallback     bool              `json:"fallback"`
	Retrieved    []retrievedOutput `json:"retrieved_chunks"`
}

type retrievedOutput struct {
	Rank         int     `json:"rank"`
	ChunkID      string  `json:"chunk_id"`
	SectionTitle string  `json:"section_title"`
	Score        float64 `json:"score"`
	Preview      string  `json:"preview"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := requireWorkspace(); err != nil {
		return err
	}

	topK := GetConfig().Retrieve.TopK
	if askTopK > 0 {
		topK = askTopK
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Answer.Answer(cmd.Context(), usecase.AnswerRequest{
		DocumentID: askDocID,
		Question:   askQuestion,
		PromptMode: askMode,
		TopK:       topK,
	})
	if err != nil {
		return err
	}

	out := toAskOutput(res)
	if askJSON {
		return printJSON(out)
	}

	fmt.Println(renderAnswer(askQuestion, out))
	return nil
}

func toAskOutput(res *usecase.AnswerResult) askOutput {
	out := askOutput{
		QueryID:      res.QueryID,
		Answer:       res.Answer,
		Citations:    res.Citations,
		Faithfulness: res.Faithfulness,
		PromptMode:   string(res.PromptMode),
		Fallback:     res.Fallback,
		Retrieved:    make([]retrievedOutput, len(res.Retrieved)),
	}
	for i, r := range res.Retrieved {
		out.Retrieved[i] = retrievedOutput{
			Rank:         r.Rank,
			ChunkID:      r.Chunk.ID,
			SectionTitle: r.Chunk.Metadata.SectionTitle,
			Score:        r.Score,
			Preview:      chunkPreview(r.Chunk.Text),
		}
	}
	return out
}

// chunkPreview shortens chunk text for display, marking truncation.
func chunkPreview(text string) string {
	p := prompt.Preview(text, previewChars)
	if p != strings.TrimSpace(text) {
		p += "..."
	}
	return p
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	answerStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	sourceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	goodStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func renderAnswer(question string, out askOutput) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Q: "+question) + "\n")
	b.WriteString(answerStyle.Render(out.Answer) + "\n")

	score := fmt.Sprintf("faithfulness %.2f", out.Faithfulness)
	if out.Faithfulness >= 0.5 {
		score = goodStyle.Render(score)
	} else {
		score = warnStyle.Render(score)
	}
	meta := fmt.Sprintf("%s  citations %v  mode %s", score, out.Citations, out.PromptMode)
	if out.Fallback {
		meta += "  " + warnStyle.Render("extractive fallback")
	}
	b.WriteString(meta + "\n\n")

	for _, r := range out.Retrieved {
		section := r.SectionTitle
		if section == "" {
			section = "document"
		}
		b.WriteString(sourceStyle.Render(fmt.Sprintf("[SOURCE %d]", r.Rank)))
		b.WriteString(mutedStyle.Render(fmt.Sprintf(" %s (score %.4f)", section, r.Score)) + "\n")
		b.WriteString(r.Preview + "\n\n")
	}
	b.WriteString(mutedStyle.Render("query "+out.QueryID))
	return b.String()
}
