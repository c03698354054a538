package catalog

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML or TOML catalog. Both formats carry an optional
// top-level "fields" list and a "cards" list of mappings. Without "fields",
// YAML catalogs keep the key order of the cards as written; TOML catalogs
// place idField first and sort the rest. idField is always a column.
func LoadFile(path, idField string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	if idField == "" {
		idField = IDField
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return parseTOML(data, idField)
	case ".yaml", ".yml", "":
		return parseYAML(data, idField)
	default:
		return nil, fmt.Errorf("catalog %s: unsupported extension %q", path, filepath.Ext(path))
	}
}

func parseYAML(data []byte, idField string) (*Catalog, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse yaml catalog: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse yaml catalog: top level must be a mapping")
	}
	root := doc.Content[0]

	var declared []string
	var cardsNode *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		switch root.Content[i].Value {
		case "fields":
			if err := root.Content[i+1].Decode(&declared); err != nil {
				return nil, fmt.Errorf("parse yaml catalog fields: %w", err)
			}
		case "cards":
			cardsNode = root.Content[i+1]
		}
	}
	if cardsNode == nil {
		return nil, fmt.Errorf("parse yaml catalog: missing cards list")
	}
	if cardsNode.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("parse yaml catalog: cards must be a list")
	}

	seen := make([]string, 0, 8)
	records := make([]Record, 0, len(cardsNode.Content))
	for n, cardNode := range cardsNode.Content {
		if cardNode.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("card %d: expected mapping", n)
		}
		values := make(map[string]any, len(cardNode.Content)/2)
		for i := 0; i+1 < len(cardNode.Content); i += 2 {
			key := cardNode.Content[i].Value
			var value any
			if err := cardNode.Content[i+1].Decode(&value); err != nil {
				return nil, fmt.Errorf("card %d field %q: %w", n, key, err)
			}
			values[key] = value
			if !slices.Contains(seen, key) {
				seen = append(seen, key)
			}
		}
		record, err := recordFromValues(n, idField, values)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	fields := declared
	if len(fields) == 0 {
		fields = seen
	}
	return New(ensureID(fields, idField), records)
}

type tomlCatalog struct {
	Fields []string         `toml:"fields"`
	Cards  []map[string]any `toml:"cards"`
}

func parseTOML(data []byte, idField string) (*Catalog, error) {
	var doc tomlCatalog
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse toml catalog: %w", err)
	}

	keys := map[string]struct{}{}
	records := make([]Record, 0, len(doc.Cards))
	for n, values := range doc.Cards {
		for key := range values {
			keys[key] = struct{}{}
		}
		record, err := recordFromValues(n, idField, values)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	fields := doc.Fields
	if len(fields) == 0 {
		for key := range keys {
			if key != idField {
				fields = append(fields, key)
			}
		}
		sort.Strings(fields)
	}
	return New(ensureID(fields, idField), records)
}

func recordFromValues(n int, idField string, values map[string]any) (Record, error) {
	raw, ok := values[idField]
	if !ok {
		return Record{}, fmt.Errorf("card %d: missing %q field", n, idField)
	}
	id := strings.TrimSpace(formatScalar(raw))
	if id == "" {
		return Record{}, fmt.Errorf("card %d: empty %q field", n, idField)
	}
	return NewRecord(id, values), nil
}

// ensureID prepends idField when the list does not already name it.
func ensureID(fields []string, idField string) []string {
	if slices.Contains(fields, idField) {
		return fields
	}
	return append([]string{idField}, fields...)
}
