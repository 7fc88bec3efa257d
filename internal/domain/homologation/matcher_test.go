package homologation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func officialItems() []*OfficialItem {
	return []*OfficialItem{
		{ID: 1, SKU: "A1", Name: "Whole Milk", Description: "fresh whole milk one liter", Category: "dairy", Brand: "Alpura"},
		{ID: 2, SKU: "B2", Name: "Orange Juice", Description: "natural orange juice", Category: "beverages", Brand: "Jumex"},
		{ID: 3, SKU: "C3", Name: "Café Molido", Description: "ground coffee", Category: "coffee", Brand: "Legal"},
	}
}

func TestMatcher_FindsBestItem(t *testing.T) {
	m := Train(nil, officialItems())

	got := m.Find(ProductDocument("Orange Juice", "natural juice", "beverages"), 2)
	require.Len(t, got, 2)
	assert.Equal(t, "B2", got[0].Item.SKU)
	assert.True(t, got[0].Confidence.GreaterThan(ReportScore))
	assert.True(t, got[0].Confidence.GreaterThanOrEqual(got[1].Confidence))
}

func TestMatcher_AccentsAndCaseFold(t *testing.T) {
	m := Train(nil, officialItems())

	got := m.Find(ProductDocument("CAFE MOLIDO", "", ""), 1)
	require.Len(t, got, 1)
	assert.Equal(t, "C3", got[0].Item.SKU)
}

func TestMatcher_EmptyTextScoresZero(t *testing.T) {
	m := Train(nil, officialItems())

	for _, match := range m.Find(ProductDocument("", "", ""), 5) {
		assert.True(t, match.Confidence.IsZero())
		assert.False(t, match.Confidence.GreaterThanOrEqual(AutoApproveScore))
	}
}

func TestMatcher_TopNBounds(t *testing.T) {
	m := Train(nil, officialItems())
	assert.Len(t, m.Find("milk", 10), 3)
	assert.Nil(t, m.Find("milk", 0))
	assert.Nil(t, Train(nil, nil).Find("milk", 5))
}

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"whole", "milk", "liter", "whole milk", "milk liter"}, terms("The whole Milk, a liter"))
}
