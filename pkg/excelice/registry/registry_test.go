package registry

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/models"
	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/ooxml"
)

func fixture(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Nombre")
	f.SetCellValue("Sheet1", "B1", 25)
	path := filepath.Join(t.TempDir(), "libro.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("Failed to save fixture: %v", err)
	}
	return path
}

func TestOpen(t *testing.T) {
	r := New(nil)
	dir := t.TempDir()

	corrupt := filepath.Join(dir, "roto.xlsx")
	if err := os.WriteFile(corrupt, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		path     string
		mode     Mode
		expected error
		sheets   []string
	}{
		{"existing", fixture(t), MustExist, nil, []string{"Sheet1"}},
		{"missing source", filepath.Join(dir, "nada.xlsx"), MustExist, ErrFileNotFound, nil},
		{"missing destination", filepath.Join(dir, "nuevo.xlsx"), CreateIfMissing, nil, []string{"Sheet1"}},
		{"corrupt", corrupt, CreateIfMissing, ooxml.ErrCorrupt, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := r.Open(tt.path, tt.mode)
			if tt.expected != nil {
				if !errors.Is(err, tt.expected) {
					t.Fatalf("Expected %v, got %v", tt.expected, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if h == 0 {
				t.Error("Expected a nonzero handle")
			}
			r.With(h, func(wb *models.Workbook) error {
				names := wb.SheetNames()
				if len(names) != len(tt.sheets) || names[0] != tt.sheets[0] {
					t.Errorf("Expected sheets %v, got %v", tt.sheets, names)
				}
				return nil
			})
		})
	}

	if _, err := os.Stat(filepath.Join(dir, "nuevo.xlsx")); !os.IsNotExist(err) {
		t.Error("Opening a destination must not create the file before a save")
	}
}

func TestHandlesAreNotReused(t *testing.T) {
	r := New(nil)
	path := fixture(t)
	h1, err := r.Open(path, MustExist)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(h1); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	h2, err := r.Open(path, MustExist)
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Errorf("Handle %d reused", h1)
	}

	err = r.With(h1, func(*models.Workbook) error { return nil })
	if !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Expected ErrInvalidHandle for a closed handle, got %v", err)
	}
	if err := r.Close(h1); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Expected ErrInvalidHandle closing twice, got %v", err)
	}
	if err := r.Save(h1, path); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Expected ErrInvalidHandle saving a closed handle, got %v", err)
	}
	if err := r.With(Handle(999), func(*models.Workbook) error { return nil }); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Expected ErrInvalidHandle for an unknown handle, got %v", err)
	}
}

func TestSave(t *testing.T) {
	r := New(nil)
	h, err := r.Open(fixture(t), MustExist)
	if err != nil {
		t.Fatal(err)
	}
	r.With(h, func(wb *models.Workbook) error {
		s, _ := wb.Sheet("Sheet1")
		s.SetCell(1, 0, models.Cell{Value: models.String("Ana")})
		return nil
	})

	out := filepath.Join(t.TempDir(), "salida.xlsx")
	if err := r.Save(h, out); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatalf("Saved file does not open: %v", err)
	}
	defer f.Close()
	for addr, expected := range map[string]string{"A1": "Nombre", "B1": "25", "A2": "Ana"} {
		if got, _ := f.GetCellValue("Sheet1", addr); got != expected {
			t.Errorf("%s = %q, expected %q", addr, got, expected)
		}
	}

	r.With(h, func(wb *models.Workbook) error {
		if wb.Dirty() {
			t.Error("Workbook still dirty after save")
		}
		if wb.Path != out {
			t.Errorf("Expected path %s, got %s", out, wb.Path)
		}
		return nil
	})
}

func TestSaveFailures(t *testing.T) {
	r := New(nil)
	h, err := r.Open(fixture(t), MustExist)
	if err != nil {
		t.Fatal(err)
	}
	r.With(h, func(wb *models.Workbook) error {
		s, _ := wb.Sheet("Sheet1")
		s.SetCell(4, 4, models.Cell{Value: models.Number(1)})
		return nil
	})

	missingDir := filepath.Join(t.TempDir(), "no", "existe", "salida.xlsx")
	if err := r.Save(h, missingDir); !errors.Is(err, ErrWrite) {
		t.Errorf("Expected ErrWrite, got %v", err)
	}
	r.With(h, func(wb *models.Workbook) error {
		if !wb.Dirty() {
			t.Error("A failed save must keep the workbook dirty")
		}
		for wb.Styles.Len() <= excelize.MaxCellStyles {
			wb.Styles.Add(models.Xf{})
		}
		return nil
	})

	out := filepath.Join(t.TempDir(), "salida.xlsx")
	if err := r.Save(h, out); !errors.Is(err, ErrEncode) {
		t.Errorf("Expected ErrEncode, got %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("A failed encode must not create the file")
	}

	previous := []byte("previous contents")
	if err := os.WriteFile(out, previous, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := r.Save(h, out); !errors.Is(err, ErrEncode) {
		t.Errorf("Expected ErrEncode, got %v", err)
	}
	if got, _ := os.ReadFile(out); !bytes.Equal(got, previous) {
		t.Errorf("A failed encode must leave the existing file untouched, got %q", got)
	}
}

func TestSaveFailedWriteKeepsTarget(t *testing.T) {
	r := New(nil)
	h, err := r.Open(fixture(t), MustExist)
	if err != nil {
		t.Fatal(err)
	}
	r.With(h, func(wb *models.Workbook) error {
		s, _ := wb.Sheet("Sheet1")
		s.SetCell(0, 0, models.Cell{Value: models.String("nuevo")})
		return nil
	})

	// a directory in place of the file makes the final rename fail
	dir := t.TempDir()
	target := filepath.Join(dir, "salida.xlsx")
	if err := os.Mkdir(target, 0o755); err != nil {
		t.Fatal(err)
	}
	inside := filepath.Join(target, "keep.txt")
	if err := os.WriteFile(inside, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := r.Save(h, target); !errors.Is(err, ErrWrite) {
		t.Fatalf("Expected ErrWrite, got %v", err)
	}
	if got, err := os.ReadFile(inside); err != nil || string(got) != "keep" {
		t.Errorf("A failed write must leave the target untouched, got %q (%v)", got, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected no temporary files left behind, found %d entries", len(entries))
	}
	r.With(h, func(wb *models.Workbook) error {
		if !wb.Dirty() {
			t.Error("A failed save must keep the workbook dirty")
		}
		return nil
	})

	out := filepath.Join(dir, "ok.xlsx")
	if err := r.Save(h, out); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatalf("Failed to open saved file: %v", err)
	}
	defer f.Close()
	if got, _ := f.GetCellValue("Sheet1", "A1"); got != "nuevo" {
		t.Errorf("A1 = %q, expected %q", got, "nuevo")
	}
}

func TestWithPairLocksInOrder(t *testing.T) {
	r := New(nil)
	path := fixture(t)
	a, _ := r.Open(path, MustExist)
	b, _ := r.Open(path, MustExist)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.WithPair(a, b, func(x, y *models.Workbook) error {
				s, _ := x.Sheet("Sheet1")
				s.SetCell(0, 2, models.Cell{Value: models.Number(1)})
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			r.WithPair(b, a, func(x, y *models.Workbook) error {
				s, _ := y.Sheet("Sheet1")
				s.SetCell(0, 3, models.Cell{Value: models.Number(2)})
				return nil
			})
		}()
	}
	wg.Wait()

	// arguments arrive in call order whatever the lock order
	err := r.WithPair(b, a, func(x, y *models.Workbook) error {
		xs, _ := x.Sheet("Sheet1")
		ys, _ := y.Sheet("Sheet1")
		if xs.Cells().Has(0, 3) || !ys.Cells().Has(0, 3) {
			t.Error("WithPair swapped its arguments")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	same := 0
	r.WithPair(a, a, func(x, y *models.Workbook) error {
		if x == y {
			same++
		}
		return nil
	})
	if same != 1 {
		t.Error("WithPair on one handle should pass the same workbook twice")
	}

	if n := r.CloseAll(); n != 2 {
		t.Errorf("Expected 2 closed workbooks, got %d", n)
	}
	if len(r.Handles()) != 0 {
		t.Errorf("Expected no open handles, got %v", r.Handles())
	}
}
