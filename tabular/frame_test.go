package tabular

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/ulikunitz/xz"
)

func writeCSV(t *testing.T, path, header string, rows []string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create csv %s: %v", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(header + "\n"); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	for _, r := range rows {
		if _, err := f.WriteString(r + "\n"); err != nil {
			t.Fatalf("failed to write row: %v", err)
		}
	}
}

func TestReadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iris.csv")
	writeCSV(t, path, "sepal,petal,species", []string{
		"5.1,1.4,setosa",
		"6.2,4.5,versicolor",
	})

	f, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if f.Len() != 2 {
		t.Fatalf("Len = %d, want 2", f.Len())
	}
	species, err := f.Col("species")
	if err != nil {
		t.Fatalf("Col: %v", err)
	}
	if species[0] != "setosa" || species[1] != "versicolor" {
		t.Fatalf("species column = %v", species)
	}
	if _, err := f.Col("missing"); err == nil {
		t.Fatal("expected error for unknown column")
	}
}

func TestReadCSVXZ(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv.xz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	w, err := xz.NewWriter(f)
	if err != nil {
		t.Fatalf("xz writer: %v", err)
	}
	if _, err := w.Write([]byte("a,b\n1,2\n3,4\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close xz: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}

	frame, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if frame.Len() != 2 {
		t.Fatalf("Len = %d, want 2", frame.Len())
	}
	b, err := frame.Col("b")
	if err != nil {
		t.Fatalf("Col: %v", err)
	}
	if b[1] != "4" {
		t.Fatalf("b column = %v", b)
	}
}

func TestReadSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE flowers (sepal REAL, petal REAL, species TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO flowers VALUES (5.1, 1.4, 'setosa'), (6.2, 4.5, 'versicolor')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}

	f, err := ReadSQLite(path, `SELECT sepal, petal, species FROM flowers ORDER BY sepal`)
	if err != nil {
		t.Fatalf("ReadSQLite: %v", err)
	}
	if f.Len() != 2 {
		t.Fatalf("Len = %d, want 2", f.Len())
	}
	row := f.Row(0)
	if row[2] != "setosa" {
		t.Fatalf("row 0 = %v", row)
	}
}

func TestFromRecordsValidation(t *testing.T) {
	if _, err := FromRecords(nil, nil); err == nil {
		t.Fatal("expected error for empty header")
	}
	if _, err := FromRecords([]string{"a", "a"}, nil); err == nil {
		t.Fatal("expected error for duplicate column")
	}
	if _, err := FromRecords([]string{"a", "b"}, [][]string{{"1"}}); err == nil {
		t.Fatal("expected error for ragged row")
	}
}
