package audit

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"time"

	"impactline/internal/domain"
)

// Record is the flat compliance form of an entry.
type Record struct {
	ID            string `json:"id"`
	ItemID        string `json:"item_id"`
	Timestamp     string `json:"timestamp"`
	ActorID       string `json:"actor_id"`
	Action        string `json:"action"`
	Reason        string `json:"reason"`
	OriginAddress string `json:"origin_address"`
	ClientID      string `json:"client_id"`
	PreviousState string `json:"previous_state"`
	NewState      string `json:"new_state"`
}

func stateString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}

func ToRecord(e domain.AuditEntry) Record {
	return Record{
		ID:            e.ID,
		ItemID:        e.ItemID,
		Timestamp:     e.Timestamp.UTC().Format(time.RFC3339Nano),
		ActorID:       e.ActorID,
		Action:        string(e.Action),
		Reason:        e.Reason,
		OriginAddress: e.Metadata.OriginAddress,
		ClientID:      e.Metadata.ClientID,
		PreviousState: stateString(e.PreviousState),
		NewState:      stateString(e.NewState),
	}
}

type ExportFilters struct {
	ItemID  string `json:"item_id,omitempty"`
	ActorID string `json:"actor_id,omitempty"`
	Action  string `json:"action,omitempty"`
	Since   string `json:"since,omitempty"`
	Until   string `json:"until,omitempty"`
}

type ExportEnvelope struct {
	ExportDate string        `json:"export_date"`
	Count      int           `json:"count"`
	Filters    ExportFilters `json:"filters"`
	Entries    []Record      `json:"entries"`
}

func exportFilters(f domain.AuditFilter) ExportFilters {
	out := ExportFilters{ItemID: f.ItemID, ActorID: f.ActorID, Action: string(f.Action)}
	if f.Since != nil {
		out.Since = f.Since.UTC().Format(time.RFC3339)
	}
	if f.Until != nil {
		out.Until = f.Until.UTC().Format(time.RFC3339)
	}
	return out
}

func records(entries []domain.AuditEntry) []Record {
	out := make([]Record, 0, len(entries))
	for _, e := range entries {
		out = append(out, ToRecord(e))
	}
	return out
}

// WriteJSON writes the export envelope.
func WriteJSON(w io.Writer, entries []domain.AuditEntry, f domain.AuditFilter, exportedAt time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportEnvelope{
		ExportDate: exportedAt.UTC().Format(time.RFC3339),
		Count:      len(entries),
		Filters:    exportFilters(f),
		Entries:    records(entries),
	})
}

var csvHeader = []string{"id", "item_id", "timestamp", "actor_id", "action", "reason", "origin_address", "client_id", "previous_state", "new_state"}

// WriteCSV writes an RFC 4180 header plus one row per entry.
func WriteCSV(w io.Writer, entries []domain.AuditEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records(entries) {
		row := []string{r.ID, r.ItemID, r.Timestamp, r.ActorID, r.Action, r.Reason, r.OriginAddress, r.ClientID, r.PreviousState, r.NewState}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
