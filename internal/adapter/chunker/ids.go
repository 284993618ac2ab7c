package chunker

import (
	"strconv"

	"github.com/google/uuid"

	"docqa/internal/domain"
)

// chunkNamespace scopes the name-based UUIDs generated for chunks.
var chunkNamespace = uuid.MustParse("6f1c6f3e-4c1e-4a39-9a57-0d4b8f3b7c21")

// ChunkID derives a stable chunk identifier from its document and index,
// so re-chunking identical text yields identical IDs.
func ChunkID(documentID string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(documentID+":"+strconv.Itoa(index))).String()
}

// Assign sets the document ID and chunk ID on draft chunks in place.
func Assign(documentID string, chunks []domain.Chunk) {
	for i := range chunks {
		chunks[i].DocumentID = documentID
		chunks[i].ID = ChunkID(documentID, chunks[i].Index)
	}
}
