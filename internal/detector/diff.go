package detector

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"lumenwatch/internal/model"
)

// InitialSummary is the change summary recorded on a product's first version.
const InitialSummary = "Initial version"

// FieldChange is one field whose canonical value differs between two snapshots.
// A nil Old or New means the field was absent on that side.
type FieldChange struct {
	Field string
	Old   *string
	New   *string
}

// Diff compares two canonical snapshots over the union of their keys and
// returns the differing fields sorted by name.
func Diff(old, next model.SpecSnapshot) []FieldChange {
	keys := make(map[string]struct{}, len(old)+len(next))
	for k := range old {
		keys[k] = struct{}{}
	}
	for k := range next {
		keys[k] = struct{}{}
	}

	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)

	var changes []FieldChange
	for _, k := range names {
		ov, oldOK := old[k]
		nv, newOK := next[k]
		if oldOK && newOK && reflect.DeepEqual(ov, nv) {
			continue
		}
		fc := FieldChange{Field: k}
		if oldOK {
			s := FormatValue(ov)
			fc.Old = &s
		}
		if newOK {
			s := FormatValue(nv)
			fc.New = &s
		}
		changes = append(changes, fc)
	}
	return changes
}

// Summary renders changes as "field: old → new" joined by "; ".
func Summary(changes []FieldChange) string {
	parts := make([]string, 0, len(changes))
	for _, c := range changes {
		parts = append(parts, fmt.Sprintf("%s: %s → %s", c.Field, orNull(c.Old), orNull(c.New)))
	}
	return strings.Join(parts, "; ")
}

// FormatValue renders a canonical snapshot value as stored in the change log.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func orNull(s *string) string {
	if s == nil {
		return "null"
	}
	return *s
}
