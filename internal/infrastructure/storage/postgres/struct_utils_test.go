package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stockcore/internal/core/entity"
	"stockcore/internal/core/id"
)

type mockDocument struct {
	entity.Document
	Status string `db:"status" json:"status"`
	Reason string `db:"reason" json:"reason"`
}

func TestExtractDBColumnsEmbedded(t *testing.T) {
	cols := ExtractDBColumns[mockDocument]()

	expected := []string{
		"id", "version", "created_at", "updated_at", "created_by", "updated_by",
		"number", "date", "store_id", "comment", "status", "reason",
	}
	for _, col := range expected {
		assert.Contains(t, cols, col)
	}
}

func TestStructToMapEmbedded(t *testing.T) {
	storeID := id.New()
	doc := mockDocument{
		Document: entity.NewDocument(storeID),
		Status:   "draft",
		Reason:   "recount",
	}
	doc.Number = "ADJ-2026-00001"
	doc.CreatedBy = "alice"

	m := StructToMap(doc)

	assert.Equal(t, doc.ID, m["id"])
	assert.Equal(t, 1, m["version"])
	assert.Equal(t, storeID, m["store_id"])
	assert.Equal(t, "ADJ-2026-00001", m["number"])
	assert.Equal(t, "alice", m["created_by"])
	assert.Equal(t, "draft", m["status"])
	assert.Equal(t, "recount", m["reason"])
}
