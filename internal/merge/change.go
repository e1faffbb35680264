package merge

import (
	"encoding/json"
	"reflect"
	"sort"
)

// ChangeType identifies what kind of change a merge made to a field.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// Change is one field-level difference between the stored record and the
// merged result.
type Change struct {
	Field    string     `json:"field"`
	Type     ChangeType `json:"type"`
	OldValue string     `json:"old_value,omitempty"`
	NewValue string     `json:"new_value,omitempty"`
}

// Diff compares two field maps and returns their differences sorted by
// field name.
func Diff(old, updated map[string]any) []Change {
	var changes []Change
	for key, newVal := range updated {
		oldVal, ok := old[key]
		switch {
		case !ok:
			changes = append(changes, Change{Field: key, Type: ChangeAdded, NewValue: preview(newVal)})
		case !reflect.DeepEqual(oldVal, newVal):
			changes = append(changes, Change{
				Field:    key,
				Type:     ChangeModified,
				OldValue: preview(oldVal),
				NewValue: preview(newVal),
			})
		}
	}
	for key, oldVal := range old {
		if _, ok := updated[key]; !ok {
			changes = append(changes, Change{Field: key, Type: ChangeRemoved, OldValue: preview(oldVal)})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Field < changes[j].Field })
	return changes
}

// preview renders a field value as truncated JSON for change logs.
func preview(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return truncateStr(string(data), 200)
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
