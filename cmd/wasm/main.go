//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"syscall/js"

	"github.com/google/uuid"

	"docqa/internal/adapter/analyzer"
	"docqa/internal/adapter/chunker"
	"docqa/internal/adapter/embedding"
	"docqa/internal/adapter/llm"
	"docqa/internal/adapter/memstore"
	"docqa/internal/adapter/retriever"
	"docqa/internal/usecase"
)

// The browser build runs fully offline: hashed embeddings and extractive
// answers only.
var (
	store    *memstore.MemoryStore
	process  *usecase.ProcessUseCase
	answer   *usecase.AnswerUseCase
	retrieve *usecase.RetrieveUseCase
)

func init() {
	reset()
}

func reset() {
	store = memstore.NewMemoryStore()
	embedder := embedding.NewMockEmbedder(embedding.DefaultHFDimension)
	chk := chunker.NewHierarchicalChunker(chunker.DefaultMaxTokens, analyzer.NewTokenizer())
	retrieve = usecase.NewRetrieveUseCase(store, embedder, retriever.NewHybridRetriever(retriever.HybridConfig{}), 0)
	process = usecase.NewProcessUseCase(store, chk, embedder, usecase.ProcessOptions{Concurrency: 1})
	answer = usecase.NewAnswerUseCase(store, retrieve, llm.Unavailable{}, 0)
}

func main() {
	c := make(chan struct{})

	js.Global().Set("docqaProcess", js.FuncOf(processContent))
	js.Global().Set("docqaAsk", js.FuncOf(askQuestion))
	js.Global().Set("docqaClear", js.FuncOf(clearStore))
	js.Global().Set("docqaDocs", js.FuncOf(listDocs))

	<-c
}

func processContent(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return makeError("usage: docqaProcess(filename, content)")
	}

	filename := args[0].String()
	res, err := process.Process(context.Background(), usecase.ProcessRequest{
		DocumentID: uuid.NewString(),
		Text:       args[1].String(),
		Filename:   filename,
	})
	if err != nil {
		return makeError("processing failed: " + err.Error())
	}

	return makeResult(map[string]interface{}{
		"success":  true,
		"id":       res.DocumentID,
		"chunks":   res.ChunkCount,
		"filename": filename,
	})
}

func askQuestion(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return makeError("usage: docqaAsk(id, question, [topK])")
	}

	topK := 5
	if len(args) > 2 {
		topK = args[2].Int()
	}

	res, err := answer.Answer(context.Background(), usecase.AnswerRequest{
		DocumentID: args[0].String(),
		Question:   args[1].String(),
		TopK:       topK,
	})
	if err != nil {
		return makeError("question failed: " + err.Error())
	}

	sources := make([]map[string]interface{}, 0, len(res.Retrieved))
	for _, r := range res.Retrieved {
		sources = append(sources, map[string]interface{}{
			"rank":    r.Rank,
			"section": r.Chunk.Metadata.SectionTitle,
			"score":   r.Score,
			"text":    r.Chunk.Text,
		})
	}

	return makeResult(map[string]interface{}{
		"answer":       res.Answer,
		"citations":    res.Citations,
		"faithfulness": res.Faithfulness,
		"sources":      sources,
	})
}

func clearStore(this js.Value, args []js.Value) interface{} {
	reset()
	return makeResult(map[string]interface{}{
		"success": true,
	})
}

func listDocs(this js.Value, args []js.Value) interface{} {
	docs, _ := store.ListDocuments(context.Background())

	out := make([]map[string]interface{}, len(docs))
	for i, d := range docs {
		out[i] = map[string]interface{}{
			"id":       d.ID,
			"filename": d.Filename,
			"status":   d.Status,
			"chunks":   d.ChunkCount,
		}
	}
	return makeResult(map[string]interface{}{
		"documents": out,
	})
}

func makeError(msg string) interface{} {
	result, _ := json.Marshal(map[string]interface{}{
		"error": msg,
	})
	return string(result)
}

func makeResult(data map[string]interface{}) interface{} {
	result, _ := json.Marshal(data)
	return string(result)
}
