package loader

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type fakeFileLoader struct {
	content map[string][]byte
	fetches int
}

func (f *fakeFileLoader) GetFileBytes(ctx context.Context, file TableFile) ([]byte, error) {
	f.fetches++
	content, ok := f.content[file.FilePath]
	if !ok {
		return nil, errors.New("no such file")
	}
	return content, nil
}

func TestParseCSVCommaDelimited(t *testing.T) {
	content := []byte("id,material,ratio\nCT-1001,Pt,50\nCT-1002,Pd,50\n")

	table, err := ParseCSV(content)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if !reflect.DeepEqual(table.Headers, []string{"id", "material", "ratio"}) {
		t.Errorf("headers = %v", table.Headers)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(table.Rows))
	}
	if !reflect.DeepEqual(table.Rows[0], []string{"CT-1001", "Pt", "50"}) {
		t.Errorf("row 0 = %v", table.Rows[0])
	}
}

func TestParseCSVSniffsSemicolon(t *testing.T) {
	content := []byte("id;material;ratio\nCT-1001;Pt;50,5\n")

	table, err := ParseCSV(content)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if !reflect.DeepEqual(table.Headers, []string{"id", "material", "ratio"}) {
		t.Errorf("headers = %v", table.Headers)
	}
	// Decimal commas inside cells must survive the semicolon dialect.
	if table.Rows[0][2] != "50,5" {
		t.Errorf("cell = %q, want 50,5", table.Rows[0][2])
	}
}

func TestParseCSVAcceptsRaggedRows(t *testing.T) {
	content := []byte("a,b,c\n1,2\n1,2,3,4\n")

	table, err := ParseCSV(content)
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(table.Rows))
	}
	if len(table.Rows[0]) != 2 || len(table.Rows[1]) != 4 {
		t.Errorf("row lengths = %d, %d", len(table.Rows[0]), len(table.Rows[1]))
	}
}

func TestParseCSVEmptyFile(t *testing.T) {
	if _, err := ParseCSV(nil); err == nil {
		t.Error("ParseCSV(nil) returned no error")
	}
}

func TestColumnsStripPositionalSuffixAndSample(t *testing.T) {
	table := &Table{
		Headers: []string{"material.1", "material.2", "ratio.1"},
		Rows: [][]string{
			{" Pt ", "Pd", "50"},
			{"Au", "Ag", "30"},
			{"Cu", "Ni", "20"},
			{"Fe", "Co", "10"},
		},
	}

	columns := Columns(table, 3)
	if len(columns) != 3 {
		t.Fatalf("got %d columns, want 3", len(columns))
	}
	if columns[0].Header != "material" || columns[2].Header != "ratio" {
		t.Errorf("headers = %s, %s, want suffixes stripped", columns[0].Header, columns[2].Header)
	}
	if columns[0].Index != 0 || columns[1].Index != 1 {
		t.Errorf("indexes = %d, %d", columns[0].Index, columns[1].Index)
	}
	if !reflect.DeepEqual(columns[0].Samples, []string{"Pt", "Au", "Cu"}) {
		t.Errorf("samples = %v, want three trimmed values", columns[0].Samples)
	}
}

func TestColumnsShortRows(t *testing.T) {
	table := &Table{
		Headers: []string{"a", "b"},
		Rows:    [][]string{{"1"}},
	}

	columns := Columns(table, 3)
	if len(columns[1].Samples) != 0 {
		t.Errorf("column b samples = %v, want none", columns[1].Samples)
	}
	if columns[1].FirstSample() != "" {
		t.Errorf("FirstSample() = %q, want empty", columns[1].FirstSample())
	}
}

func TestGetTableCachesPerFile(t *testing.T) {
	files := &fakeFileLoader{content: map[string][]byte{
		"uploads/run.csv": []byte("a,b\n1,2\n"),
	}}
	tables := NewTableLoader(files)
	file := TableFile{ID: "f1", FilePath: "uploads/run.csv"}

	first, err := tables.GetTable(context.Background(), file)
	if err != nil {
		t.Fatalf("GetTable() error = %v", err)
	}
	second, err := tables.GetTable(context.Background(), file)
	if err != nil {
		t.Fatalf("GetTable() error = %v", err)
	}
	if first != second {
		t.Error("second call did not return the cached table")
	}
	if files.fetches != 1 {
		t.Errorf("fetches = %d, want 1", files.fetches)
	}
}

func TestGetTablePropagatesFetchError(t *testing.T) {
	tables := NewTableLoader(&fakeFileLoader{content: map[string][]byte{}})

	_, err := tables.GetTable(context.Background(), TableFile{ID: "f1", FilePath: "missing.csv"})
	if err == nil {
		t.Error("GetTable() returned no error for missing file")
	}
}
