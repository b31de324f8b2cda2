package schema

// config.go defines the pipeline schema: which semantic type each canonical
// column carries, extra header synonyms, categorical bucket mappings, and
// the date pair used for elapsed-duration derivation. The built-in schema
// matches the standard PJE export variants; every part can be overridden
// from a YAML document so a new variant never requires a rebuild.

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FieldType is the semantic type declared for a column. Cells in a column
// are coerced according to its type; anything undeclared is text.
type FieldType string

const (
	TypeText       FieldType = "text"
	TypeDate       FieldType = "date"
	TypeCurrency   FieldType = "currency"
	TypeIdentifier FieldType = "identifier"
	TypeNumber     FieldType = "number"
	TypeBool       FieldType = "boolean"
)

// validTypes enumerates the recognized values for the columns section.
var validTypes = map[FieldType]bool{
	TypeText:       true,
	TypeDate:       true,
	TypeCurrency:   true,
	TypeIdentifier: true,
	TypeNumber:     true,
	TypeBool:       true,
}

// DatePair names the two date columns for elapsed-duration derivation.
// An empty End means "reference date" (today in the configured location),
// which is how the task-list export works: only the arrival date is
// present and age is measured against now.
type DatePair struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// Schema is the full pipeline configuration for one batch run.
type Schema struct {
	// Types maps canonical column name to semantic type. Columns not
	// listed are treated as text.
	Types map[string]FieldType `yaml:"columns"`

	// Synonyms adds folded-header → canonical-name entries on top of the
	// built-in table. Keys are folded before lookup, so any casing or
	// accenting works in the file.
	Synonyms map[string]string `yaml:"synonyms"`

	// Buckets maps a canonical column to its categorical bucket table:
	// folded source value → bucket label. Values that match no entry fall
	// into the BucketOther label.
	Buckets map[string]map[string]string `yaml:"buckets"`

	// DurationRanges are the upper bounds (in days, inclusive) of the
	// duration buckets; a final open-ended bucket is implied.
	DurationRanges []int `yaml:"duration_ranges"`

	// Duration is the date pair the elapsed-days column derives from.
	Duration DatePair `yaml:"date_pair"`
}

// BucketOther is the catch-all bucket for unmapped categorical values.
const BucketOther = "Outros"

// Default returns the built-in schema for standard PJE exports.
func Default() *Schema {
	return &Schema{
		Types: map[string]FieldType{
			ColNumeroProcesso:      TypeIdentifier,
			ColDataChegada:         TypeDate,
			ColDataUltimoMovimento: TypeDate,
			ColValorCausa:          TypeCurrency,
			ColDias:                TypeNumber,
			ColPrioridade:          TypeBool,
			ColSigiloso:            TypeBool,
		},
		Synonyms: map[string]string{},
		Buckets: map[string]map[string]string{
			ColTarefa: {
				"minutar sentenca":         "Sentença",
				"assinar sentenca":         "Sentença",
				"minutar despacho":         "Despacho",
				"concluso para despacho":   "Despacho",
				"minutar decisao":          "Decisão",
				"concluso para decisao":    "Decisão",
				"aguardando audiencia":     "Audiência",
				"designar audiencia":       "Audiência",
				"analise de peticoes":      "Análise",
				"triagem inicial":          "Análise",
				"aguardando pericia":       "Perícia",
				"cumprimento de sentenca":  "Cumprimento",
				"arquivar processo":        "Arquivamento",
				"processo arquivado":       "Arquivamento",
			},
		},
		DurationRanges: []int{30, 60, 90},
		Duration: DatePair{
			Start: ColDataChegada,
			End:   "",
		},
	}
}

// LoadFile overlays a YAML schema document on top of s. Sections present
// in the file replace or extend the corresponding section; sections absent
// keep their current values. Unknown semantic types are rejected so a typo
// fails loudly at startup instead of silently demoting a column to text.
func (s *Schema) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading schema file: %w", err)
	}
	return s.Load(data)
}

// Load overlays a YAML schema document given as bytes. See LoadFile.
func (s *Schema) Load(data []byte) error {
	var overlay Schema
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing schema file: %w", err)
	}

	for col, ft := range overlay.Types {
		if !validTypes[ft] {
			return fmt.Errorf("column %q: unknown type %q (valid: text, date, currency, identifier, number, boolean)", col, ft)
		}
		s.Types[col] = ft
	}

	for variant, canonical := range overlay.Synonyms {
		s.Synonyms[Fold(variant)] = canonical
	}

	for col, table := range overlay.Buckets {
		folded := make(map[string]string, len(table))
		for value, bucket := range table {
			folded[Fold(value)] = bucket
		}
		s.Buckets[col] = folded
	}

	if len(overlay.DurationRanges) > 0 {
		for i := 1; i < len(overlay.DurationRanges); i++ {
			if overlay.DurationRanges[i] <= overlay.DurationRanges[i-1] {
				return fmt.Errorf("duration_ranges must be strictly increasing, got %v", overlay.DurationRanges)
			}
		}
		s.DurationRanges = overlay.DurationRanges
	}

	if overlay.Duration.Start != "" {
		s.Duration = overlay.Duration
	}

	return nil
}

// TypeOf returns the declared semantic type for a canonical column,
// defaulting to text.
func (s *Schema) TypeOf(column string) FieldType {
	if ft, ok := s.Types[column]; ok {
		return ft
	}
	return TypeText
}

// Bucket resolves a raw categorical value against the column's bucket
// table. The second return is false when the column has no bucket table at
// all; an unmapped value in a bucketed column returns BucketOther.
func (s *Schema) Bucket(column, value string) (string, bool) {
	table, ok := s.Buckets[column]
	if !ok {
		return "", false
	}
	if bucket, ok := table[Fold(value)]; ok {
		return bucket, true
	}
	return BucketOther, true
}
