package schema

import (
	"strings"
	"testing"
)

// ----------------------------------------------------------------------------
// Default schema
// ----------------------------------------------------------------------------

func TestDefaultTypes(t *testing.T) {
	s := Default()

	tests := []struct {
		column string
		want   FieldType
	}{
		{ColNumeroProcesso, TypeIdentifier},
		{ColDataChegada, TypeDate},
		{ColDataUltimoMovimento, TypeDate},
		{ColValorCausa, TypeCurrency},
		{ColDias, TypeNumber},
		{ColPrioridade, TypeBool},
		{ColSigiloso, TypeBool},
		{ColClasse, TypeText},
		{"coluna_desconhecida", TypeText},
	}

	for _, tt := range tests {
		if got := s.TypeOf(tt.column); got != tt.want {
			t.Errorf("TypeOf(%q) = %q, want %q", tt.column, got, tt.want)
		}
	}
}

func TestDefaultBuckets(t *testing.T) {
	s := Default()

	tests := []struct {
		name      string
		column    string
		value     string
		want      string
		wantTable bool
	}{
		{
			name:      "mapped value",
			column:    ColTarefa,
			value:     "Minutar sentença",
			want:      "Sentença",
			wantTable: true,
		},
		{
			name:      "folding applies to lookup",
			column:    ColTarefa,
			value:     "MINUTAR SENTENCA",
			want:      "Sentença",
			wantTable: true,
		},
		{
			name:      "unmapped value falls to Outros",
			column:    ColTarefa,
			value:     "Tarefa inédita",
			want:      BucketOther,
			wantTable: true,
		},
		{
			name:      "column without bucket table",
			column:    ColClasse,
			value:     "Procedimento Comum",
			wantTable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.Bucket(tt.column, tt.value)
			if ok != tt.wantTable {
				t.Fatalf("Bucket(%q, %q) ok = %v, want %v", tt.column, tt.value, ok, tt.wantTable)
			}
			if ok && got != tt.want {
				t.Errorf("Bucket(%q, %q) = %q, want %q", tt.column, tt.value, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// YAML overlay
// ----------------------------------------------------------------------------

func TestLoadOverlay(t *testing.T) {
	s := Default()

	doc := `
columns:
  data_distribuicao: date
synonyms:
  "Juízo de Origem": orgao_julgador
buckets:
  classe:
    "Procedimento Comum Cível": "Conhecimento"
duration_ranges: [15, 45]
date_pair:
  start: data_distribuicao
  end: data_ultimo_movimento
`
	if err := s.Load([]byte(doc)); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := s.TypeOf("data_distribuicao"); got != TypeDate {
		t.Errorf("TypeOf(data_distribuicao) = %q, want date", got)
	}
	// Built-in types survive the overlay.
	if got := s.TypeOf(ColValorCausa); got != TypeCurrency {
		t.Errorf("TypeOf(valor_causa) = %q, want currency", got)
	}

	if got := s.Canonical("juízo de origem"); got != ColOrgaoJulgador {
		t.Errorf("Canonical(juízo de origem) = %q, want %q", got, ColOrgaoJulgador)
	}

	got, ok := s.Bucket(ColClasse, "procedimento comum cível")
	if !ok || got != "Conhecimento" {
		t.Errorf("Bucket(classe, ...) = %q, %v; want Conhecimento, true", got, ok)
	}

	if len(s.DurationRanges) != 2 || s.DurationRanges[0] != 15 || s.DurationRanges[1] != 45 {
		t.Errorf("DurationRanges = %v, want [15 45]", s.DurationRanges)
	}

	if s.Duration.Start != "data_distribuicao" || s.Duration.End != ColDataUltimoMovimento {
		t.Errorf("Duration = %+v, want overridden pair", s.Duration)
	}
}

func TestLoadRejectsUnknownType(t *testing.T) {
	s := Default()
	err := s.Load([]byte("columns:\n  dias: integer\n"))
	if err == nil {
		t.Fatal("Load() error = nil, want unknown type error")
	}
	if !strings.Contains(err.Error(), "unknown type") {
		t.Errorf("Load() error = %v, want mention of unknown type", err)
	}
}

func TestLoadRejectsUnorderedRanges(t *testing.T) {
	s := Default()
	err := s.Load([]byte("duration_ranges: [30, 30, 90]\n"))
	if err == nil {
		t.Fatal("Load() error = nil, want strictly increasing error")
	}
}

func TestLoadEmptyDocumentKeepsDefaults(t *testing.T) {
	s := Default()
	if err := s.Load([]byte("")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := s.TypeOf(ColDias); got != TypeNumber {
		t.Errorf("TypeOf(dias) = %q, want number after empty overlay", got)
	}
	if len(s.DurationRanges) != 3 {
		t.Errorf("DurationRanges = %v, want builtin [30 60 90]", s.DurationRanges)
	}
}
