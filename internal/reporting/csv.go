package reporting

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"equity-ledger/internal/domain"
)

// RenderCapTableCSV renders the current cap table as CSV, one row per
// stakeholder and one shares column per share class.
func RenderCapTableCSV(snap domain.CapTableSnapshot) (string, error) {
	header := []string{"stakeholder_id", "stakeholder_name", "stakeholder_type"}
	for _, c := range snap.ShareClasses {
		header = append(header, "shares_"+c.Name)
	}
	header = append(header, "total_shares", "ownership_pct", "total_invested")

	records := [][]string{header}
	for _, row := range snap.Rows {
		rec := []string{row.Stakeholder.ID, row.Stakeholder.Name, string(row.Stakeholder.Type)}
		for _, c := range snap.ShareClasses {
			rec = append(rec, strconv.FormatInt(row.SharesByClass[c.ID], 10))
		}
		rec = append(rec,
			strconv.FormatInt(row.TotalShares, 10),
			strconv.FormatFloat(row.OwnershipPct, 'f', 2, 64),
			row.TotalInvested.StringFixed(2),
		)
		records = append(records, rec)
	}
	return writeCSV(records)
}

// RenderEvolutionCSV renders the evolution series as CSV with one row per
// stakeholder per event. Undated events have an empty event_date.
func RenderEvolutionCSV(entries []domain.EvolutionEntry) (string, error) {
	records := [][]string{{
		"event_index", "event_id", "event_name", "event_type", "event_date",
		"stakeholder_id", "stakeholder_name", "shares", "total_shares", "ownership_pct",
	}}
	for i, entry := range entries {
		date := formatDate(entry.Event.Date)
		for _, row := range entry.Snapshot.Rows {
			records = append(records, []string{
				strconv.Itoa(i),
				entry.Event.ID,
				entry.Event.Name,
				string(entry.Event.Type),
				date,
				row.Stakeholder.ID,
				row.Stakeholder.Name,
				strconv.FormatInt(row.TotalShares, 10),
				strconv.FormatInt(entry.Snapshot.TotalShares, 10),
				strconv.FormatFloat(row.OwnershipPct, 'f', 2, 64),
			})
		}
	}
	return writeCSV(records)
}

func writeCSV(records [][]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return "", err
	}
	return buf.String(), nil
}
