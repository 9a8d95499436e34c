// Package normalizer turns scraped attribute bags into canonical, validated product fields.
package normalizer

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"lumenwatch/internal/model"
)

// RawPrefix marks attributes that matched no synonym.
const RawPrefix = "raw_"

//go:embed attributes.yaml
var attributesYAML []byte

var (
	ErrEmptyAttributeTable = errors.New("attribute table has no entries")
	ErrDuplicateSynonym    = errors.New("synonym maps to more than one attribute")
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// AttributeDef is one row of the synonym table.
type AttributeDef struct {
	Name     string   `yaml:"name"`
	Unit     string   `yaml:"unit"`
	Synonyms []string `yaml:"synonyms"`
}

type attributeTable struct {
	Attributes []AttributeDef `yaml:"attributes"`
}

// Mapper resolves free-text source field names to standardized attribute keys.
// It is read-only after construction and safe for concurrent use.
type Mapper struct {
	defs  []AttributeDef
	index map[string]AttributeDef
}

var loadDefaultMapper = sync.OnceValues(func() (*Mapper, error) {
	defs, err := LoadAttributes(attributesYAML)
	if err != nil {
		return nil, err
	}
	return NewMapper(defs)
})

// DefaultMapper returns the mapper built from the embedded attribute table.
func DefaultMapper() (*Mapper, error) {
	return loadDefaultMapper()
}

// LoadAttributes decodes a YAML attribute table.
func LoadAttributes(data []byte) ([]AttributeDef, error) {
	var table attributeTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse attribute table: %w", err)
	}
	if len(table.Attributes) == 0 {
		return nil, ErrEmptyAttributeTable
	}
	return table.Attributes, nil
}

// NewMapper indexes defs by every synonym and by the standard name itself.
func NewMapper(defs []AttributeDef) (*Mapper, error) {
	if len(defs) == 0 {
		return nil, ErrEmptyAttributeTable
	}

	m := &Mapper{
		defs:  make([]AttributeDef, len(defs)),
		index: make(map[string]AttributeDef),
	}
	for i, def := range defs {
		def.Synonyms = append([]string(nil), def.Synonyms...)
		m.defs[i] = def

		names := append([]string{def.Name}, def.Synonyms...)
		for _, n := range names {
			key := normalizeFieldName(n)
			if key == "" {
				continue
			}
			if prev, ok := m.index[key]; ok && prev.Name != def.Name {
				return nil, fmt.Errorf("%w: %q (%s, %s)", ErrDuplicateSynonym, n, prev.Name, def.Name)
			}
			m.index[key] = def
		}
	}
	return m, nil
}

// Attributes returns a copy of the table.
func (m *Mapper) Attributes() []AttributeDef {
	out := make([]AttributeDef, len(m.defs))
	copy(out, m.defs)
	return out
}

// Lookup finds the attribute a source field name resolves to.
func (m *Mapper) Lookup(sourceField string) (AttributeDef, bool) {
	def, ok := m.index[normalizeFieldName(sourceField)]
	return def, ok
}

// CanonicalUnit returns the canonical unit of a standard attribute.
func (m *Mapper) CanonicalUnit(standardName string) string {
	if def, ok := m.index[standardName]; ok && def.Name == standardName {
		return def.Unit
	}
	return ""
}

// Map resolves every raw field. Fields are visited in sorted order so the
// result is deterministic; when two fields resolve to the same standard key the
// first keeps it and the other is kept under its raw_ key.
func (m *Mapper) Map(raw map[string]string) map[string]model.MappedAttribute {
	out := make(map[string]model.MappedAttribute, len(raw))

	fields := make([]string, 0, len(raw))
	for f := range raw {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, field := range fields {
		value := strings.TrimSpace(raw[field])

		if def, ok := m.Lookup(field); ok {
			if _, taken := out[def.Name]; !taken {
				out[def.Name] = model.MappedAttribute{
					StandardName: def.Name,
					Value:        value,
					Unit:         def.Unit,
					SourceField:  field,
				}
				continue
			}
		}

		key := uniqueKey(out, RawKey(field))
		out[key] = model.MappedAttribute{
			StandardName: key,
			Value:        value,
			Unit:         "",
			SourceField:  field,
		}
	}
	return out
}

// RawKey builds the raw_ key for an unmatched source field.
func RawKey(sourceField string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(sourceField)), "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		slug = "unnamed"
	}
	return RawPrefix + slug
}

// IsRawKey reports whether key is a preserved unmatched attribute.
func IsRawKey(key string) bool {
	return strings.HasPrefix(key, RawPrefix)
}

func uniqueKey(taken map[string]model.MappedAttribute, key string) string {
	if _, ok := taken[key]; !ok {
		return key
	}
	for i := 2; ; i++ {
		candidate := key + "_" + strconv.Itoa(i)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}

func normalizeFieldName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
