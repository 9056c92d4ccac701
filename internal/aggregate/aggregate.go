package aggregate

import (
	"sort"
	"strconv"
	"strings"

	"github.com/affiliatehq/reporting-service/internal/models"
)

// Aggregate folds attributed records into per-team and per-team/SKU
// rollups. Pure reduction, no I/O. Records missing a Team field count
// under "Unknown".
func Aggregate(records []models.Record) *models.AggregateResult {
	teams := make(map[string]*models.TeamSummary)
	teamSKUs := make(map[string]map[string]*models.SKUSummary)
	skuSets := make(map[string]map[string]struct{})

	for _, rec := range records {
		team, ok := rec[models.FieldTeam]
		if !ok || team == "" {
			team = "Unknown"
		}

		summary, exists := teams[team]
		if !exists {
			summary = &models.TeamSummary{Team: team}
			teams[team] = summary
			teamSKUs[team] = make(map[string]*models.SKUSummary)
			skuSets[team] = make(map[string]struct{})
		}

		amount := parseAmount(rec[models.FieldSaleAmount])
		units := parseUnits(rec[models.FieldQuantity])

		summary.TotalRevenue += amount
		summary.Conversions++
		summary.Units += units

		switch strings.ToUpper(rec[models.FieldStatus]) {
		case "APPROVED":
			summary.ApprovedRevenue += amount
		case "PENDING":
			summary.PendingRevenue += amount
		}

		if sku, ok := rec[models.FieldSKU]; ok && sku != "" {
			skuSets[team][sku] = struct{}{}

			skuSummary, exists := teamSKUs[team][sku]
			if !exists {
				skuSummary = &models.SKUSummary{Team: team, SKU: sku}
				teamSKUs[team][sku] = skuSummary
			}
			skuSummary.Revenue += amount
			skuSummary.Conversions++
			skuSummary.Units += units
		}
	}

	result := &models.AggregateResult{
		Teams:    make([]*models.TeamSummary, 0, len(teams)),
		TeamSKUs: []*models.SKUSummary{},
	}

	for name, summary := range teams {
		summary.UniqueSKUs = len(skuSets[name])
		if summary.Conversions > 0 {
			summary.AvgOrderValue = summary.TotalRevenue / float64(summary.Conversions)
		}
		result.Teams = append(result.Teams, summary)

		for _, skuSummary := range teamSKUs[name] {
			result.TeamSKUs = append(result.TeamSKUs, skuSummary)
		}
	}

	// Stable output order for rendering and tests
	sort.Slice(result.Teams, func(i, j int) bool {
		return result.Teams[i].Team < result.Teams[j].Team
	})
	sort.Slice(result.TeamSKUs, func(i, j int) bool {
		if result.TeamSKUs[i].Team != result.TeamSKUs[j].Team {
			return result.TeamSKUs[i].Team < result.TeamSKUs[j].Team
		}
		return result.TeamSKUs[i].SKU < result.TeamSKUs[j].SKU
	})

	return result
}

// parseAmount coerces a currency string to a float. Currency symbols,
// thousands separators and whitespace are stripped; anything still
// unparseable counts as zero rather than failing the rollup.
func parseAmount(raw string) float64 {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', '€', '£', ',', ' ':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	if cleaned == "" {
		return 0
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return value
}

// parseUnits coerces a quantity string to a whole count, defaulting to one
// unit per conversion when absent or malformed.
func parseUnits(raw string) int {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 1
	}
	if n, err := strconv.Atoi(trimmed); err == nil && n >= 0 {
		return n
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && f >= 0 {
		return int(f)
	}
	return 1
}
