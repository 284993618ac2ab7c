package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"docqa/internal/adapter/fs"
	"docqa/internal/usecase"
)

var (
	processID       string
	processIncludes []string
	processExcludes []string
)

var processCmd = &cobra.Command{
	Use:   "process <file|dir|glob>...",
	Short: "Chunk, embed and store documents",
	Long: `Process reads each document, splits it into section-aware chunks, embeds
every chunk and stores the result under .docqa/ in the workspace.
Supported formats are plain text, Markdown and PDF.

Examples:
  docqa process paper.pdf
  docqa process --id thesis notes/thesis.md
  docqa process "papers/**/*.pdf"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)
	processCmd.Flags().StringVar(&processID, "id", "", "document id (single file only; default is a new UUID)")
	processCmd.Flags().StringSliceVar(&processIncludes, "include", nil, "patterns to include when walking directories")
	processCmd.Flags().StringSliceVar(&processExcludes, "exclude", nil, "patterns to exclude when walking directories")
}

func runProcess(cmd *cobra.Command, args []string) error {
	walker := fs.NewWalker(processIncludes, processExcludes)
	files, err := walker.Expand(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no documents found in %v", args)
	}
	if processID != "" && len(files) > 1 {
		return fmt.Errorf("--id needs exactly one file, got %d", len(files))
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	reader := fs.NewReader()
	ctx := cmd.Context()

	var (
		processed   int
		totalChunks int
		failures    []string
	)
	for _, f := range files {
		name := filepath.Base(f.Path)

		text, err := reader.ReadFile(f.Path)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}

		id := processID
		if id == "" {
			id = uuid.NewString()
		}

		progress, finish := newEmbedProgress(name)
		result, err := a.Process.Process(ctx, usecase.ProcessRequest{
			DocumentID: id,
			Text:       text,
			Filename:   name,
			Progress:   progress,
		})
		finish()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}

		processed++
		totalChunks += result.ChunkCount
		fmt.Printf("%s  %s  (%d chunks, %s)\n", result.DocumentID, name, result.ChunkCount, formatDuration(result.Duration))
	}

	fmt.Printf("\nProcessing complete:\n")
	fmt.Printf("  Documents processed: %d\n", processed)
	fmt.Printf("  Chunks stored:       %d\n", totalChunks)

	if len(failures) > 0 {
		fmt.Printf("\nFailures:\n")
		for _, f := range failures {
			fmt.Printf("  - %s\n", f)
		}
		return fmt.Errorf("%d of %d documents failed", len(failures), len(files))
	}
	return nil
}

// newEmbedProgress returns a progress callback that lazily creates a bar
// on stderr once the chunk total is known, and a func that closes the bar.
// Without a terminal there is no bar.
func newEmbedProgress(name string) (usecase.ProgressFunc, func()) {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil, func() {}
	}

	var (
		mu        sync.Mutex
		bar       *progressbar.ProgressBar
		startTime time.Time
	)

	progress := func(done, total int) {
		mu.Lock()
		defer mu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset] "+name),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionClearOnFinish(),
			)
		}

		bar.Set(done)

		if done > 0 && done < total {
			rate := float64(done) / time.Since(startTime).Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Embedding[reset] %s ETA: %s", name, formatDuration(eta)))
			}
		}
	}

	finish := func() {
		mu.Lock()
		defer mu.Unlock()
		if bar != nil {
			bar.Finish()
		}
	}
	return progress, finish
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
