// Package detector fingerprints product specs and records versions when they change.
package detector

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"lumenwatch/internal/model"
)

// DefaultPrecision is the number of decimal places numbers keep before hashing.
const DefaultPrecision int32 = 2

// SnapshotFields are the product fields that take part in change detection.
var SnapshotFields = []string{
	"cct",
	"cri",
	"dimming",
	"efficiency",
	"ip_rating",
	"lifespan",
	"lumens",
	"price",
	"voltage",
	"warranty",
	"watts",
}

// Hasher canonicalizes snapshots and fingerprints them with SHA-256.
//
// Canonical form: keys sorted, strings trimmed and lower-cased, numbers
// rounded to Precision places, nil and empty values dropped. A field that is
// absent and a field set to nil are the same thing.
type Hasher struct {
	Precision int32
}

func NewHasher(precision int32) *Hasher {
	return &Hasher{Precision: precision}
}

// BuildSpecSnapshot projects p onto SnapshotFields in canonical form.
func (h *Hasher) BuildSpecSnapshot(p model.NormalizedProduct) model.SpecSnapshot {
	raw := map[string]any{
		"watts":      p.Watts,
		"lumens":     p.Lumens,
		"efficiency": p.Efficiency,
		"cct":        p.CCT,
		"cri":        p.CRI,
		"lifespan":   p.Lifespan,
		"warranty":   p.Warranty,
		"ip_rating":  p.IPRating,
		"voltage":    p.Voltage,
		"dimming":    p.Dimming,
		"price":      p.Price,
	}
	return model.SpecSnapshot(h.Canonicalize(raw))
}

// Canonicalize returns a new map holding the canonical form of in.
func (h *Hasher) Canonicalize(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if cv, ok := h.canonicalValue(v); ok {
			out[k] = cv
		}
	}
	return out
}

// Hash returns the lowercase hex SHA-256 of the canonical encoding of snapshot.
func (h *Hasher) Hash(snapshot map[string]any) string {
	sum := sha256.Sum256(h.Encode(snapshot))
	return hex.EncodeToString(sum[:])
}

// Encode renders the canonical form of snapshot as a JSON object with sorted
// keys and numbers in shortest decimal form.
func (h *Hasher) Encode(snapshot map[string]any) []byte {
	canon := h.Canonicalize(snapshot)

	keys := make([]string, 0, len(canon))
	for k := range canon {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONString(&buf, k)
		buf.WriteByte(':')
		switch v := canon[k].(type) {
		case float64:
			buf.WriteString(decimal.NewFromFloat(v).String())
		case bool:
			if v {
				buf.WriteString("true")
			} else {
				buf.WriteString("false")
			}
		case string:
			writeJSONString(&buf, v)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func (h *Hasher) canonicalValue(v any) (any, bool) {
	if v == nil {
		return nil, false
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.String:
		s := strings.ToLower(strings.TrimSpace(rv.String()))
		return s, s != ""
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		return h.round(f), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return h.round(float64(rv.Int())), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return h.round(float64(rv.Uint())), true
	case reflect.Bool:
		return rv.Bool(), true
	default:
		s := strings.ToLower(strings.TrimSpace(fmt.Sprint(rv.Interface())))
		return s, s != ""
	}
}

func (h *Hasher) round(f float64) float64 {
	r := decimal.NewFromFloat(f).Round(h.Precision).InexactFloat64()
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}

func writeJSONString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}
