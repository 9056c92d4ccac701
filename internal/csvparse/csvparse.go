package csvparse

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/affiliatehq/reporting-service/internal/models"
)

// ParseResult holds the canonicalized headers and the parsed records
type ParseResult struct {
	Headers []string
	Records []models.Record
}

// fieldAliases maps each canonical field name to the header spellings the
// remote export is known to emit for it, in priority order. Headers are
// resolved once here so downstream code addresses one stable key instead of
// re-probing case variants per access.
var fieldAliases = map[string][]string{
	models.FieldSubID:      {"SubID", "Subid", "SubId", "Sub_Id", "PubSubid1"},
	models.FieldPartner:    {"Partner", "MediaPartner", "Media_Partner", "PartnerName"},
	models.FieldCampaign:   {"Campaign", "CampaignName", "Campaign_Name", "Program"},
	models.FieldSaleAmount: {"SaleAmount", "Sale_Amount", "Sale_amount", "Revenue", "Payout", "Amount"},
	models.FieldQuantity:   {"Quantity", "Qty", "ItemQuantity"},
	models.FieldSKU:        {"SKU", "Sku", "ItemSku", "Item_Sku"},
	models.FieldStatus:     {"ActionStatus", "Action_Status", "Status", "State"},
	models.FieldTrackerID:  {"TrackerID", "Tracker_Id", "ActionTrackerId"},
	models.FieldActionID:   {"ActionID", "Action_Id", "ActionId"},
	models.FieldOrderID:    {"OrderID", "Order_Id", "OrderId", "Oid"},
	models.FieldEventDate:  {"EventDate", "Event_Date", "ActionDate", "Date"},
	models.FieldPubSubid3:  {"PubSubid3", "Pub_Subid_3", "SharedId"},
	models.FieldConvoID:    {"ConversationID", "Conversation_Id", "ConversationId"},
}

// aliasLookup is fieldAliases inverted: lowercase header spelling → canonical name
var aliasLookup = func() map[string]string {
	lookup := make(map[string]string)
	for canonical, aliases := range fieldAliases {
		for _, alias := range aliases {
			key := strings.ToLower(alias)
			if _, exists := lookup[key]; !exists {
				lookup[key] = canonical
			}
		}
	}
	return lookup
}()

// Parse parses delimited text whose first row is a header into field-keyed
// records. Short rows leave their trailing fields absent from the record
// (a missing key, not an empty string). Empty input yields an empty result.
// Values are not coerced; numeric and date parsing is the consumer's job.
func Parse(text string) (ParseResult, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1 // Tolerate ragged rows

	rawHeader, err := reader.Read()
	if err == io.EOF {
		return ParseResult{Headers: []string{}, Records: []models.Record{}}, nil
	}
	if err != nil {
		return ParseResult{}, fmt.Errorf("failed to read header row: %w", err)
	}

	headers := make([]string, len(rawHeader))
	for i, h := range rawHeader {
		headers[i] = CanonicalField(h)
	}

	records := []models.Record{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ParseResult{}, fmt.Errorf("failed to read row %d: %w", len(records)+2, err)
		}

		rec := make(models.Record, len(headers))
		for i, value := range row {
			if i >= len(headers) {
				break // Extra trailing fields have no header to key them
			}
			rec[headers[i]] = value
		}
		records = append(records, rec)
	}

	return ParseResult{Headers: headers, Records: records}, nil
}

// CanonicalField maps one header spelling to its canonical field name.
// Unrecognized headers pass through trimmed but otherwise unchanged.
func CanonicalField(header string) string {
	trimmed := strings.TrimSpace(header)
	if canonical, ok := aliasLookup[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return trimmed
}
