package rules

import (
	"strings"

	"github.com/affiliatehq/reporting-service/internal/models"
)

// Resolver assigns a team label to each record by evaluating the layered
// rule chain against the store. Resolution is deterministic given the
// record and the store's current snapshot, and safe to run concurrently
// over many records.
type Resolver struct {
	store *Store
}

// NewResolver creates a resolver over the given rule store
func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the team for one record. Priority order, first match
// wins:
//
//  1. manual row assignment keyed by the record's derived row identity
//  2. manual exact identifier mapping (Partner, SubID, ConversationID)
//  3. SubID substring patterns
//  4. Partner substring patterns
//  5. Campaign substring patterns
//  6. the configured default team
func (r *Resolver) Resolve(rec models.Record) string {
	if a, ok := r.store.GetManualRowAssignment(RowKey(rec)); ok {
		return a.Team
	}

	for _, field := range []string{models.FieldPartner, models.FieldSubID, models.FieldConvoID} {
		if value, ok := rec[field]; ok && value != "" {
			if team, found := r.store.lookupManualMapping(value); found {
				return team
			}
		}
	}

	if team, ok := r.matchField(rec, models.FieldSubID, RuleSubID); ok {
		return team
	}
	if team, ok := r.matchField(rec, models.FieldPartner, RulePartner); ok {
		return team
	}
	if team, ok := r.matchField(rec, models.FieldCampaign, RuleCampaign); ok {
		return team
	}

	return r.store.DefaultTeam()
}

// EnrichAll resolves every record and returns copies stamped with a Team
// field. Records without a team signal but carrying a hyphenated PubSubid3
// slug additionally get a display name for reporting.
func (r *Resolver) EnrichAll(records []models.Record) []models.Record {
	defaultTeam := r.store.DefaultTeam()

	enriched := make([]models.Record, len(records))
	for i, rec := range records {
		out := rec.Clone()
		out[models.FieldTeam] = r.Resolve(rec)
		if out[models.FieldTeam] == defaultTeam {
			if slug, ok := rec[models.FieldPubSubid3]; ok && strings.Contains(slug, "-") {
				out["PubTeamName"] = SlugToDisplayName(slug)
			}
		}
		enriched[i] = out
	}
	return enriched
}

func (r *Resolver) matchField(rec models.Record, field string, ruleType RuleType) (string, bool) {
	value, ok := rec[field]
	if !ok || value == "" {
		return "", false
	}
	return r.store.matchPatterns(ruleType, value)
}

// RowKey derives the stable row-identity key used for manual overrides.
// Priority: tracker identifier, then action identifier, then order
// identifier, else a composite of partner, sub ID, date and amount. The
// key must survive a re-fetch of the same underlying transaction so an
// override keeps applying after a refresh.
func RowKey(rec models.Record) string {
	if v, ok := rec[models.FieldTrackerID]; ok && v != "" {
		return "tracker:" + v
	}
	if v, ok := rec[models.FieldActionID]; ok && v != "" {
		return "action:" + v
	}
	if v, ok := rec[models.FieldOrderID]; ok && v != "" {
		return "order:" + v
	}
	parts := []string{
		rec[models.FieldPartner],
		rec[models.FieldSubID],
		rec[models.FieldEventDate],
		rec[models.FieldSaleAmount],
	}
	return "composite:" + strings.Join(parts, "|")
}
