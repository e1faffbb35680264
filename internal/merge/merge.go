// Package merge applies freshly extracted records on top of stored ones.
//
// Both records are projected onto their JSON field maps. Every field the
// extraction produced replaces the stored field wholesale, including
// objects and arrays such as stats and weapons, which are never deep
// merged. Fields the extraction left empty keep their stored values.
// Curated fields (imagePath) are set by hand after import; once stored
// they are never overwritten by an extraction.
package merge

import (
	"encoding/json"
	"fmt"
)

// Upsert merges extracted into existing and reports what changed.
// A nil existing yields a copy of extracted. The result is deterministic:
// merging the same extraction twice gives byte-identical JSON.
func Upsert[T any](existing, extracted *T) (*T, []Change, error) {
	if extracted == nil {
		return nil, nil, fmt.Errorf("merge: extracted record is nil")
	}

	fresh, err := toFields(extracted)
	if err != nil {
		return nil, nil, err
	}

	old := map[string]any{}
	if existing != nil {
		if old, err = toFields(existing); err != nil {
			return nil, nil, err
		}
	}

	merged := Fields(old, fresh)
	result, err := fromFields[T](merged)
	if err != nil {
		return nil, nil, err
	}
	return result, Diff(old, merged), nil
}

// curatedFields keep a non-empty stored value over any extracted one.
var curatedFields = map[string]bool{"imagePath": true}

// Fields merges two field maps. Keys present and non-null in fresh
// replace the stored value; all other stored keys are kept.
func Fields(old, fresh map[string]any) map[string]any {
	merged := make(map[string]any, len(old)+len(fresh))
	for k, v := range old {
		merged[k] = v
	}
	for k, v := range fresh {
		if v == nil {
			continue
		}
		if curatedFields[k] && old[k] != nil && old[k] != "" {
			continue
		}
		merged[k] = v
	}
	syncImageFlag(merged)
	return merged
}

// syncImageFlag recomputes hasImage from imagePath for records that carry
// the flag.
func syncImageFlag(fields map[string]any) {
	if _, ok := fields["hasImage"]; !ok {
		return
	}
	path, _ := fields["imagePath"].(string)
	fields["hasImage"] = path != ""
}

func toFields(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("merge: encode record: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("merge: project record: %w", err)
	}
	return fields, nil
}

func fromFields[T any](fields map[string]any) (*T, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("merge: encode fields: %w", err)
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("merge: decode record: %w", err)
	}
	return out, nil
}
