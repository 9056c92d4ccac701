package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/affiliatehq/reporting-service/internal/models"
)

func TestAggregate_EmptyRecordSet(t *testing.T) {
	result := Aggregate(nil)

	assert.Empty(t, result.Teams)
	assert.Empty(t, result.TeamSKUs)

	// No team ever carries a divide-by-zero AOV
	for _, team := range result.Teams {
		assert.Equal(t, 0.0, team.AvgOrderValue)
	}
}

func TestAggregate_TeamRollup(t *testing.T) {
	records := []models.Record{
		{models.FieldTeam: "Alpha", models.FieldSaleAmount: "100"},
		{models.FieldTeam: "Beta", models.FieldSaleAmount: "50"},
		{models.FieldTeam: "Unassigned", models.FieldSaleAmount: "10"},
	}

	result := Aggregate(records)

	assert.Len(t, result.Teams, 3)
	byName := map[string]*models.TeamSummary{}
	for _, s := range result.Teams {
		byName[s.Team] = s
	}

	assert.Equal(t, 100.0, byName["Alpha"].TotalRevenue)
	assert.Equal(t, 1, byName["Alpha"].Conversions)
	assert.Equal(t, 50.0, byName["Beta"].TotalRevenue)
	assert.Equal(t, 1, byName["Beta"].Conversions)
	assert.Equal(t, 10.0, byName["Unassigned"].TotalRevenue)
	assert.Equal(t, 1, byName["Unassigned"].Conversions)
}

func TestAggregate_AOVAndUnits(t *testing.T) {
	records := []models.Record{
		{models.FieldTeam: "Alpha", models.FieldSaleAmount: "100", models.FieldQuantity: "2"},
		{models.FieldTeam: "Alpha", models.FieldSaleAmount: "50", models.FieldQuantity: "1"},
	}

	result := Aggregate(records)

	assert.Len(t, result.Teams, 1)
	alpha := result.Teams[0]
	assert.Equal(t, 150.0, alpha.TotalRevenue)
	assert.Equal(t, 2, alpha.Conversions)
	assert.Equal(t, 3, alpha.Units)
	assert.Equal(t, 75.0, alpha.AvgOrderValue)
}

func TestAggregate_CurrencyCoercion(t *testing.T) {
	records := []models.Record{
		{models.FieldTeam: "Alpha", models.FieldSaleAmount: "$1,234.50"},
		{models.FieldTeam: "Alpha", models.FieldSaleAmount: "€ 100,00"}, // Separator stripping collapses this to 10000
		{models.FieldTeam: "Alpha", models.FieldSaleAmount: "garbage"},
		{models.FieldTeam: "Alpha"}, // Absent amount counts as 0
	}

	result := Aggregate(records)

	alpha := result.Teams[0]
	assert.Equal(t, 1234.5+10000, alpha.TotalRevenue)
	assert.Equal(t, 4, alpha.Conversions)
}

func TestAggregate_StatusSplit(t *testing.T) {
	records := []models.Record{
		{models.FieldTeam: "Alpha", models.FieldSaleAmount: "100", models.FieldStatus: "APPROVED"},
		{models.FieldTeam: "Alpha", models.FieldSaleAmount: "40", models.FieldStatus: "pending"},
		{models.FieldTeam: "Alpha", models.FieldSaleAmount: "5", models.FieldStatus: "REVERSED"},
	}

	result := Aggregate(records)

	alpha := result.Teams[0]
	assert.Equal(t, 100.0, alpha.ApprovedRevenue)
	assert.Equal(t, 40.0, alpha.PendingRevenue)
	assert.Equal(t, 145.0, alpha.TotalRevenue)
}

func TestAggregate_SKURollup(t *testing.T) {
	records := []models.Record{
		{models.FieldTeam: "Alpha", models.FieldSaleAmount: "100", models.FieldSKU: "SKU-1", models.FieldQuantity: "2"},
		{models.FieldTeam: "Alpha", models.FieldSaleAmount: "30", models.FieldSKU: "SKU-1"},
		{models.FieldTeam: "Alpha", models.FieldSaleAmount: "20", models.FieldSKU: "SKU-2"},
		{models.FieldTeam: "Beta", models.FieldSaleAmount: "10", models.FieldSKU: "SKU-1"},
	}

	result := Aggregate(records)

	byName := map[string]*models.TeamSummary{}
	for _, s := range result.Teams {
		byName[s.Team] = s
	}
	assert.Equal(t, 2, byName["Alpha"].UniqueSKUs)
	assert.Equal(t, 1, byName["Beta"].UniqueSKUs)

	assert.Len(t, result.TeamSKUs, 3)
	// Sorted by team then SKU
	assert.Equal(t, "Alpha", result.TeamSKUs[0].Team)
	assert.Equal(t, "SKU-1", result.TeamSKUs[0].SKU)
	assert.Equal(t, 130.0, result.TeamSKUs[0].Revenue)
	assert.Equal(t, 2, result.TeamSKUs[0].Conversions)
	assert.Equal(t, 3, result.TeamSKUs[0].Units)
}

func TestAggregate_MissingTeamCountsAsUnknown(t *testing.T) {
	result := Aggregate([]models.Record{{models.FieldSaleAmount: "10"}})

	assert.Len(t, result.Teams, 1)
	assert.Equal(t, "Unknown", result.Teams[0].Team)
}

func TestParseAmount(t *testing.T) {
	assert.Equal(t, 1234.5, parseAmount("$1,234.50"))
	assert.Equal(t, 99.0, parseAmount("£99"))
	assert.Equal(t, 0.0, parseAmount(""))
	assert.Equal(t, 0.0, parseAmount("n/a"))
	assert.Equal(t, -12.5, parseAmount("-12.50"))
}
