package store

import (
	"fmt"
	"sort"

	"docqa/internal/domain"
)

// CheckTransition enforces the compare-and-set rule shared by every
// repository backend: the stored status must equal from, and from -> to
// must be an edge of the document state machine.
func CheckTransition(doc domain.Document, from, to domain.Status) error {
	if doc.Status != from {
		return fmt.Errorf("%w: document %s is %s, not %s", domain.ErrConflict, doc.ID, doc.Status, from)
	}
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: transition %s -> %s not allowed", domain.ErrConflict, from, to)
	}
	return nil
}

// SortDocuments orders documents oldest first, then by ID.
func SortDocuments(docs []domain.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
}
