package schema

import (
	"errors"
	"testing"

	"github.com/pjetools/triagem/internal/ingest"
)

// ----------------------------------------------------------------------------
// Reconcile
// ----------------------------------------------------------------------------

func TestReconcileSingleFile(t *testing.T) {
	files := []*ingest.FileTable{
		{
			FileName: "tarefas.csv",
			Columns:  []string{"Número do Processo", "Tarefa"},
			Rows: [][]string{
				{"0001234-56.2023.8.26.0100", "Minutar sentença"},
			},
		},
	}

	table, rejected := Reconcile(files, Default())
	if len(rejected) != 0 {
		t.Fatalf("rejected = %v, want none", rejected)
	}

	if len(table.Columns) != 2 {
		t.Fatalf("Columns = %v, want 2", table.Columns)
	}
	if table.Columns[0].Name != ColNumeroProcesso {
		t.Errorf("Columns[0].Name = %q, want %q", table.Columns[0].Name, ColNumeroProcesso)
	}
	if table.Columns[0].Display != "Número do Processo" {
		t.Errorf("Columns[0].Display = %q, want source header", table.Columns[0].Display)
	}

	if len(table.Records) != 1 {
		t.Fatalf("Records = %d, want 1", len(table.Records))
	}
	rec := table.Records[0]
	if rec.Provenance.File != "tarefas.csv" || rec.Provenance.Row != 1 {
		t.Errorf("Provenance = %v, want tarefas.csv:1", rec.Provenance)
	}
	if !rec.Cells[1].Present || rec.Cells[1].Raw != "Minutar sentença" {
		t.Errorf("Cells[1] = %+v, want present %q", rec.Cells[1], "Minutar sentença")
	}
}

func TestReconcileColumnUnion(t *testing.T) {
	// Two panels: the second introduces a column the first lacks, and
	// writes the shared column under a different spelling.
	files := []*ingest.FileTable{
		{
			FileName: "tarefas.csv",
			Columns:  []string{"Número do Processo", "Dias"},
			Rows:     [][]string{{"111", "5"}},
		},
		{
			FileName: "painel.csv",
			Columns:  []string{"numeroProcesso", "valorCausa"},
			Rows:     [][]string{{"222", "1.000,00"}},
		},
	}

	table, rejected := Reconcile(files, Default())
	if len(rejected) != 0 {
		t.Fatalf("rejected = %v, want none", rejected)
	}

	// Union in first-seen order: numero_processo, dias, valor_causa.
	wantCols := []string{ColNumeroProcesso, ColDias, ColValorCausa}
	if len(table.Columns) != len(wantCols) {
		t.Fatalf("Columns = %v, want %v", table.Columns, wantCols)
	}
	for i, want := range wantCols {
		if table.Columns[i].Name != want {
			t.Errorf("Columns[%d].Name = %q, want %q", i, table.Columns[i].Name, want)
		}
	}

	if len(table.Records) != 2 {
		t.Fatalf("Records = %d, want 2", len(table.Records))
	}

	// First file predates valor_causa: its cell there is absent, not blank.
	first := table.Records[0]
	if len(first.Cells) != 3 {
		t.Fatalf("first record cells = %d, want 3", len(first.Cells))
	}
	if first.Cells[2].Present {
		t.Error("first record valor_causa cell Present = true, want absent")
	}

	// Second file lacks dias: absent there, present elsewhere.
	second := table.Records[1]
	if second.Cells[1].Present {
		t.Error("second record dias cell Present = true, want absent")
	}
	if !second.Cells[0].Present || second.Cells[0].Raw != "222" {
		t.Errorf("second record numero_processo = %+v, want present %q", second.Cells[0], "222")
	}
	if !second.Cells[2].Present || second.Cells[2].Raw != "1.000,00" {
		t.Errorf("second record valor_causa = %+v, want present %q", second.Cells[2], "1.000,00")
	}
}

func TestReconcileAmbiguousMapping(t *testing.T) {
	// "Processo" and "Número do Processo" both canonicalize to
	// numero_processo inside one file: rejected, other files unaffected.
	files := []*ingest.FileTable{
		{
			FileName: "duplicado.csv",
			Columns:  []string{"Processo", "Número do Processo"},
			Rows:     [][]string{{"1", "2"}},
		},
		{
			FileName: "ok.csv",
			Columns:  []string{"Número do Processo"},
			Rows:     [][]string{{"3"}},
		},
	}

	table, rejected := Reconcile(files, Default())

	if len(rejected) != 1 {
		t.Fatalf("rejected = %v, want 1 entry", rejected)
	}
	if rejected[0].Index != 0 || rejected[0].File != "duplicado.csv" {
		t.Errorf("rejected = index %d file %q, want index 0 duplicado.csv",
			rejected[0].Index, rejected[0].File)
	}
	if !errors.Is(rejected[0].Err, ErrAmbiguousColumnMapping) {
		t.Errorf("rejected err = %v, want ErrAmbiguousColumnMapping", rejected[0].Err)
	}

	if len(table.Records) != 1 {
		t.Fatalf("Records = %d, want 1 (from the good file)", len(table.Records))
	}
	if table.Records[0].Provenance.File != "ok.csv" {
		t.Errorf("surviving record from %q, want ok.csv", table.Records[0].Provenance.File)
	}
}

func TestReconcileEmptyInput(t *testing.T) {
	table, rejected := Reconcile(nil, Default())
	if len(rejected) != 0 {
		t.Errorf("rejected = %v, want none", rejected)
	}
	if len(table.Columns) != 0 || len(table.Records) != 0 {
		t.Errorf("table = %+v, want empty", table)
	}
}

func TestReconcileUniformCellCount(t *testing.T) {
	files := []*ingest.FileTable{
		{FileName: "a.csv", Columns: []string{"A"}, Rows: [][]string{{"1"}, {"2"}}},
		{FileName: "b.csv", Columns: []string{"A", "B", "C"}, Rows: [][]string{{"3", "4", "5"}}},
	}

	table, _ := Reconcile(files, Default())
	for i, rec := range table.Records {
		if len(rec.Cells) != len(table.Columns) {
			t.Errorf("record %d has %d cells, want %d", i, len(rec.Cells), len(table.Columns))
		}
	}
}
