package schema

import "testing"

// ----------------------------------------------------------------------------
// Fold
// ----------------------------------------------------------------------------

func TestFold(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercase passthrough",
			input: "classe",
			want:  "classe",
		},
		{
			name:  "case folding",
			input: "NUMERO DO PROCESSO",
			want:  "numero do processo",
		},
		{
			name:  "accent folding",
			input: "Órgão Julgador",
			want:  "orgao julgador",
		},
		{
			name:  "whitespace collapse",
			input: "  Polo   Ativo  ",
			want:  "polo ativo",
		},
		{
			name:  "tabs and newlines collapse",
			input: "Data\tÚltimo\nMovimento",
			want:  "data ultimo movimento",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fold(tt.input); got != tt.want {
				t.Errorf("Fold(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFoldDeterministic(t *testing.T) {
	// Two spellings of the same header must fold identically.
	variants := []string{"Número do Processo", "NUMERO DO PROCESSO", "número do processo"}
	want := Fold(variants[0])
	for _, v := range variants[1:] {
		if got := Fold(v); got != want {
			t.Errorf("Fold(%q) = %q, want %q", v, got, want)
		}
	}
}

// ----------------------------------------------------------------------------
// Canonical
// ----------------------------------------------------------------------------

func TestCanonical(t *testing.T) {
	s := Default()

	tests := []struct {
		name   string
		header string
		want   string
	}{
		// Task list vs management panel vs re-ingested export headers
		// all land on one canonical name.
		{
			name:   "task list spelling",
			header: "Número do Processo",
			want:   ColNumeroProcesso,
		},
		{
			name:   "management panel camel spelling",
			header: "numeroProcesso",
			want:   ColNumeroProcesso,
		},
		{
			name:   "reingested uppercase spelling",
			header: "NUMERO DO PROCESSO",
			want:   ColNumeroProcesso,
		},
		{
			name:   "orgao julgador accented",
			header: "Órgão Julgador",
			want:   ColOrgaoJulgador,
		},
		{
			name:   "vara synonym",
			header: "Vara",
			want:   ColOrgaoJulgador,
		},
		{
			name:   "panel tag list",
			header: "tagsProcessoList",
			want:   ColEtiquetas,
		},
		{
			name:   "unknown header gets folded underscore name",
			header: "Minha Coluna Extra",
			want:   "minha_coluna_extra",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Canonical(tt.header); got != tt.want {
				t.Errorf("Canonical(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestCanonicalOverrideWins(t *testing.T) {
	s := Default()
	s.Synonyms[Fold("Juízo")] = ColOrgaoJulgador

	if got := s.Canonical("JUÍZO"); got != ColOrgaoJulgador {
		t.Errorf("Canonical(%q) = %q, want override %q", "JUÍZO", got, ColOrgaoJulgador)
	}
}
