package audit

import (
	"encoding/json"
	"reflect"
	"sort"

	"impactline/internal/domain"
)

// Diff lists the top-level fields that differ between two snapshots. A
// null side counts as an empty object.
func Diff(prev, next json.RawMessage) ([]domain.FieldChange, error) {
	before, err := decodeState(prev)
	if err != nil {
		return nil, err
	}
	after, err := decodeState(next)
	if err != nil {
		return nil, err
	}
	keys := map[string]struct{}{}
	for k := range before {
		keys[k] = struct{}{}
	}
	for k := range after {
		keys[k] = struct{}{}
	}
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)
	changes := []domain.FieldChange{}
	for _, k := range names {
		if !reflect.DeepEqual(before[k], after[k]) {
			changes = append(changes, domain.FieldChange{Field: k, OldValue: before[k], NewValue: after[k]})
		}
	}
	return changes, nil
}

func decodeState(raw json.RawMessage) (map[string]any, error) {
	out := map[string]any{}
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// IsNull reports whether a stored state is the JSON null.
func IsNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
