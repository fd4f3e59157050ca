// Package entity infers record-creation suggestions from agent reply text.
// It is a best-effort heuristic over a fixed trigger table, not a guarantee:
// phrasings outside the table produce no suggestion.
package entity

import (
	"encoding/json"
	"strings"
	"time"
)

// Suggestion is a structured hint that the agent wants a business record
// created in an external system. Records is either a single field→value
// mapping or an ordered list of such mappings.
type Suggestion struct {
	EntityName string `json:"entity_name"`
	Records    any    `json:"records"`
}

// extractor pulls the suggested records out of the auxiliary fields the
// stream carried alongside the reply text. ok is false when the relevant
// auxiliary field is absent or unreadable.
type extractor func(aux map[string]json.RawMessage) (records any, ok bool)

type trigger struct {
	lang       string
	phrase     string // lower-case
	entityName string
	extract    extractor
}

var triggers = []trigger{
	{lang: "en", phrase: "creating order", entityName: "Order", extract: extractOrder},
	{lang: "he", phrase: "יצרתי הזמנה", entityName: "Order", extract: extractOrder},
	{lang: "en", phrase: "updating inventory", entityName: "Inventory", extract: extractInventory},
	{lang: "he", phrase: "עדכנתי מלאי", entityName: "Inventory", extract: extractInventory},
}

// Infer scans responseText for trigger phrases and, on a match, builds a
// Suggestion from the auxiliary payload fields. A text match without the
// matching auxiliary data yields no suggestion for that trigger. Returns nil
// when nothing matches.
func Infer(responseText string, aux map[string]json.RawMessage) *Suggestion {
	text := strings.ToLower(responseText)

	for _, tr := range triggers {
		if !strings.Contains(text, tr.phrase) {
			continue
		}
		records, ok := tr.extract(aux)
		if !ok {
			continue
		}
		return &Suggestion{EntityName: tr.entityName, Records: records}
	}

	return nil
}

func extractOrder(aux map[string]json.RawMessage) (any, bool) {
	raw, ok := aux["order_details"]
	if !ok {
		return nil, false
	}

	var details map[string]any
	if err := json.Unmarshal(raw, &details); err != nil || details == nil {
		return nil, false
	}

	return map[string]any{
		"supplier":     details["supplier"],
		"items":        details["items"],
		"total_amount": details["total"],
		"status":       "pending",
		"order_date":   time.Now().UTC().Format(time.RFC3339),
	}, true
}

func extractInventory(aux map[string]json.RawMessage) (any, bool) {
	raw, ok := aux["inventory_updates"]
	if !ok {
		return nil, false
	}

	var updates []map[string]any
	if err := json.Unmarshal(raw, &updates); err != nil || updates == nil {
		return nil, false
	}

	records := make([]map[string]any, 0, len(updates))
	for _, item := range updates {
		records = append(records, map[string]any{
			"product_name": item["product"],
			"quantity":     item["quantity"],
			"last_updated": time.Now().UTC().Format(time.RFC3339),
		})
	}

	return records, true
}
