package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"timberlot/internal/core/currency"
	"timberlot/internal/core/entity"
	"timberlot/internal/core/id"
	"timberlot/internal/core/types"
	"timberlot/internal/domain/kassa"
)

type mockCatalog struct {
	entity.BaseCatalog
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}

func TestExtractDBColumns_EmbeddedFields(t *testing.T) {
	cols := ExtractDBColumns[mockCatalog]()

	expectedCols := []string{
		"id", "deletion_mark", "version", "code", "name",
	}

	for _, expected := range expectedCols {
		assert.Contains(t, cols, expected)
	}
}

func TestExtractDBColumns_KassaEntry(t *testing.T) {
	cols := ExtractDBColumns[kassa.Entry]()

	// Document fields come through the embedding chain, Amount fields
	// through currency.Amount.
	for _, expected := range []string{
		"id", "deletion_mark", "version",
		"number", "date", "comment", "created_at", "created_by",
		"type", "subtype", "amount", "currency", "rate", "rub_equivalent",
		"transfer_id",
	} {
		assert.Contains(t, cols, expected)
	}
}

func TestStructToMap_EmbeddedFields(t *testing.T) {
	cat := mockCatalog{
		BaseCatalog: entity.BaseCatalog{
			BaseEntity: entity.BaseEntity{
				ID:           id.New(),
				DeletionMark: true,
				Version:      5,
			},
		},
		Code: "CL-000001",
		Name: "Test Client",
	}

	m := StructToMap(cat)

	assert.Equal(t, cat.ID, m["id"])
	assert.Equal(t, true, m["deletion_mark"])
	assert.Equal(t, 5, m["version"])
	assert.Equal(t, "CL-000001", m["code"])
	assert.Equal(t, "Test Client", m["name"])
}

func TestStructToMap_LockedRateFields(t *testing.T) {
	amount, err := currency.NewAmount(types.MustMoney("100"), currency.USD, types.MustMoney("90"))
	assert.NoError(t, err)

	entry := kassa.NewEntry(kassa.TypeIncome, amount, time.Now().UTC(), "test income")
	m := StructToMap(entry)

	assert.Equal(t, entry.ID, m["id"])
	assert.Equal(t, kassa.TypeIncome, m["type"])
	assert.Equal(t, currency.USD, m["currency"])
	assert.True(t, entry.RUBEquivalent.Equal(m["rub_equivalent"].(types.Money)))
}
