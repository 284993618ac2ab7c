package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"docqa/config"
	"docqa/internal/adapter/chunker"
	"docqa/internal/adapter/retriever"
	"docqa/internal/cli"
	"docqa/internal/domain"
)

// suite is a set of questions whose answers are known to live in a given
// chunk of one processed document.
type suite struct {
	Document string `yaml:"document"`
	TopK     int    `yaml:"top_k"`
	Cases    []struct {
		Question string `yaml:"question"`
		Chunk    int    `yaml:"chunk"`
	} `yaml:"cases"`
}

func main() {
	dir := flag.String("dir", ".", "workspace directory")
	casesPath := flag.String("cases", "", "YAML file with document, top_k and cases")
	flag.Parse()

	if *casesPath == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir ./workspace -cases cases.yaml")
		fmt.Println("\nReports mean reciprocal rank and hit rate of the expected chunk for:")
		fmt.Println("  1. BM25 alone")
		fmt.Println("  2. Vector similarity alone")
		fmt.Println("  3. Reciprocal rank fusion of both")
		os.Exit(1)
	}

	s, err := loadSuite(*casesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading cases: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if s.TopK <= 0 {
		s.TopK = cfg.Retrieve.TopK
	}

	app, err := cli.NewApp(cfg, *dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening workspace: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Document: %s\n", s.Document)
	fmt.Printf("Embedding: %s (%s)\n", cfg.Embedding.Model, cfg.Embedding.Provider)
	fmt.Printf("Cases: %d, top %d\n\n", len(s.Cases), s.TopK)

	var bm25, vector, fused score
	ctx := context.Background()
	for _, c := range s.Cases {
		cmp, err := app.Retrieve.Compare(ctx, s.Document, c.Question, s.TopK)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error on %q: %v\n", c.Question, err)
			os.Exit(1)
		}

		want := chunker.ChunkID(s.Document, c.Chunk)
		b := bm25.add(cmp.BM25, want)
		v := vector.add(cmp.Vector, want)
		f := fused.add(cmp.Fused, want)
		fmt.Printf("  [bm25 %.2f  vec %.2f  rrf %.2f] %s\n", b, v, f, c.Question)
	}

	n := float64(len(s.Cases))
	fmt.Println()
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("%-8s  %-6s  %-8s\n", "SCORER", "MRR", "HIT@K")
	fmt.Printf("%-8s  %.3f   %.0f%%\n", "bm25", bm25.rr/n, 100*float64(bm25.hits)/n)
	fmt.Printf("%-8s  %.3f   %.0f%%\n", "vector", vector.rr/n, 100*float64(vector.hits)/n)
	fmt.Printf("%-8s  %.3f   %.0f%%\n", "rrf", fused.rr/n, 100*float64(fused.hits)/n)
}

type score struct {
	rr   float64
	hits int
}

func (s *score) add(ranking []domain.RetrievedChunk, chunkID string) float64 {
	rr := retriever.ReciprocalRank(ranking, chunkID)
	s.rr += rr
	if rr > 0 {
		s.hits++
	}
	return rr
}

func loadSuite(path string) (*suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Document == "" || len(s.Cases) == 0 {
		return nil, fmt.Errorf("%s needs a document and at least one case", path)
	}
	return &s, nil
}
