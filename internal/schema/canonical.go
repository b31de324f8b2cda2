// Package schema reconciles the column sets of multiple uploaded files
// into one table with a deterministic, canonical set of column names.
//
// PJE panels disagree on header spelling: the task list exports
// "Número do Processo" while the management panel writes "numeroProcesso"
// and re-processed files carry "NUMERO DO PROCESSO". Canonicalization is a
// fixed folding (trim, case fold, accent fold, whitespace collapse)
// followed by an explicit synonym table, never heuristic matching. The
// synonym table is versioned data: extend it when a new export variant
// shows up, do not guess.
package schema

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer strips accents: decompose, drop combining marks,
// recompose. "Órgão" and "Orgao" fold to the same form.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// synonymTable maps folded header variants to canonical column names.
// Keys must already be in folded form (lowercase, accent-free, single
// spaces). Seeded from every header variant observed across the PJE task
// list, management panel, and re-ingested exports.
//
// Version: 2. Extend via the synonyms section of the schema file.
var synonymTable = map[string]string{
	"numero do processo": ColNumeroProcesso,
	"numeroprocesso":     ColNumeroProcesso,
	"nº processo":        ColNumeroProcesso,
	"no processo":        ColNumeroProcesso,
	"processo":           ColNumeroProcesso,

	"classe":          ColClasse,
	"classe judicial": ColClasse,
	"classejudicial":  ColClasse,

	"orgao julgador": ColOrgaoJulgador,
	"orgaojulgador":  ColOrgaoJulgador,
	"vara":           ColOrgaoJulgador,

	"polo ativo":   ColPoloAtivo,
	"poloativo":    ColPoloAtivo,
	"polo passivo": ColPoloPassivo,
	"polopassivo":  ColPoloPassivo,

	"assunto":           ColAssunto,
	"assunto principal": ColAssunto,
	"assuntoprincipal":  ColAssunto,

	"tarefa":     ColTarefa,
	"nometarefa": ColTarefa,

	"etiquetas":        ColEtiquetas,
	"tagsprocessolist": ColEtiquetas,

	"dias": ColDias,

	"data ultimo movimento": ColDataUltimoMovimento,
	"dataultimomovimento":   ColDataUltimoMovimento,

	"data chegada": ColDataChegada,
	"datachegada":  ColDataChegada,

	"valor da causa": ColValorCausa,
	"valorcausa":     ColValorCausa,
	"valor causa":    ColValorCausa,

	"prioridade": ColPrioridade,
	"sigiloso":   ColSigiloso,
	"fonte":      ColFonte,
}

// Canonical names for the columns the pipeline knows about. Any other
// header is preserved under its folded name as opaque text.
const (
	ColNumeroProcesso      = "numero_processo"
	ColClasse              = "classe"
	ColOrgaoJulgador       = "orgao_julgador"
	ColPoloAtivo           = "polo_ativo"
	ColPoloPassivo         = "polo_passivo"
	ColAssunto             = "assunto"
	ColTarefa              = "tarefa"
	ColEtiquetas           = "etiquetas"
	ColDias                = "dias"
	ColDataUltimoMovimento = "data_ultimo_movimento"
	ColDataChegada         = "data_chegada"
	ColValorCausa          = "valor_causa"
	ColPrioridade          = "prioridade"
	ColSigiloso            = "sigiloso"
	ColFonte               = "fonte"
)

// Fold reduces a header to its comparison form: trimmed, lowercase,
// accent-free, inner whitespace collapsed to single spaces. Deterministic
// by construction; two headers match iff their folds are equal.
func Fold(header string) string {
	folded, _, err := transform.String(foldTransformer, header)
	if err != nil {
		folded = header
	}
	folded = strings.ToLower(folded)
	return strings.Join(strings.Fields(folded), " ")
}

// Canonical maps a source header to its canonical column name: fold, then
// the synonym table (built-ins plus any overrides), then a generic
// space-to-underscore key for headers the table does not know.
func (s *Schema) Canonical(header string) string {
	folded := Fold(header)
	if name, ok := s.Synonyms[folded]; ok {
		return name
	}
	if name, ok := synonymTable[folded]; ok {
		return name
	}
	return strings.ReplaceAll(folded, " ", "_")
}
