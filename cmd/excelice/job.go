package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice"
	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/address"
)

// job is a batch of operations read from a YAML file:
//
//	open:
//	  source: ventas.xlsx
//	  destination: resumen.xlsx
//	steps:
//	  - op: copy-range
//	    from: source
//	    to: destination
//	    sheet: Enero
//	    range: A1:D20
//	    at: B2
//	    formulas: true
//	save:
//	  destination: resumen.xlsx
type job struct {
	// Open maps slot names (default, source, destination) to files.
	Open map[string]string `yaml:"open"`
	// Steps run in order; the first failure stops the job.
	Steps []step `yaml:"steps"`
	// Save maps slot names to output files.
	Save map[string]string `yaml:"save"`
}

type step struct {
	// Op is one of write, copy-range, copy-sheet, remove-rows, unmerge.
	Op string `yaml:"op"`
	// Slot is the workbook of single-workbook steps (default: default).
	Slot string `yaml:"slot"`
	// From and To are the workbooks of copy steps
	// (default: source and destination).
	From string `yaml:"from"`
	To   string `yaml:"to"`

	Sheet    string `yaml:"sheet"`
	ToSheet  string `yaml:"to_sheet"`
	Cell     string `yaml:"cell"`
	Value    string `yaml:"value"`
	Range    string `yaml:"range"`
	At       string `yaml:"at"`
	Formulas bool   `yaml:"formulas"`
	Rows     []int  `yaml:"rows"`
}

// slotOrder fixes the order files are opened and saved in.
var slotOrder = []string{"source", "destination", "default"}

func loadJob(path string) (*job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job: %w", err)
	}
	var j job
	if err := yaml.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse job %s: %w", path, err)
	}
	return &j, nil
}

func parseSlot(name, fallback string) (excelice.Slot, error) {
	if name == "" {
		name = fallback
	}
	switch name {
	case "default":
		return excelice.SlotDefault, nil
	case "source":
		return excelice.SlotSource, nil
	case "destination":
		return excelice.SlotDestination, nil
	}
	return 0, fmt.Errorf("unknown workbook %q (must be default, source or destination)", name)
}

func (j *job) run(s *excelice.Session) error {
	for _, files := range []map[string]string{j.Open, j.Save} {
		for name := range files {
			if _, err := parseSlot(name, ""); err != nil {
				return err
			}
		}
	}

	for _, name := range slotOrder {
		path, ok := j.Open[name]
		if !ok {
			continue
		}
		slot, _ := parseSlot(name, "")
		if err := s.Open(slot, path); err != nil {
			return check(err)
		}
	}

	for i, st := range j.Steps {
		if err := st.run(s); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, st.Op, err)
		}
	}

	for _, name := range slotOrder {
		path, ok := j.Save[name]
		if !ok {
			continue
		}
		slot, _ := parseSlot(name, "")
		if err := s.Save(slot, path); err != nil {
			return check(err)
		}
	}
	return nil
}

func (st step) run(s *excelice.Session) error {
	switch st.Op {
	case "write":
		slot, err := parseSlot(st.Slot, "default")
		if err != nil {
			return err
		}
		return check(s.Write(slot, st.Sheet, st.Cell, st.Value))

	case "copy-range":
		from, err := parseSlot(st.From, "source")
		if err != nil {
			return err
		}
		to, err := parseSlot(st.To, "destination")
		if err != nil {
			return err
		}
		r, err := address.ParseRange(st.Range)
		if err != nil {
			return check(err)
		}
		row, col := r.StartRow, r.StartCol
		if st.At != "" {
			if row, col, err = address.Parse(st.At); err != nil {
				return check(err)
			}
		}
		return check(s.Copy(excelice.CopyRequest{
			From:            from,
			To:              to,
			SrcSheet:        st.Sheet,
			DstSheet:        orDefault(st.ToSheet, st.Sheet),
			StartRow:        r.StartRow + 1,
			EndRow:          r.EndRow + 1,
			StartCol:        r.StartCol + 1,
			EndCol:          r.EndCol + 1,
			DstRow:          row + 1,
			DstCol:          col + 1,
			IncludeFormulas: st.Formulas,
		}))

	case "copy-sheet":
		from, err := parseSlot(st.From, "source")
		if err != nil {
			return err
		}
		to, err := parseSlot(st.To, "destination")
		if err != nil {
			return err
		}
		return check(s.CloneSheet(from, to, st.Sheet, orDefault(st.ToSheet, st.Sheet), st.Formulas))

	case "remove-rows":
		slot, err := parseSlot(st.Slot, "default")
		if err != nil {
			return err
		}
		return check(s.RemoveRows(slot, st.Sheet, st.Rows...))

	case "unmerge":
		slot, err := parseSlot(st.Slot, "default")
		if err != nil {
			return err
		}
		r, err := address.ParseRange(st.Range)
		if err != nil {
			return check(err)
		}
		start := address.MustFormat(r.StartRow, r.StartCol)
		end := address.MustFormat(r.EndRow, r.EndCol)
		return check(s.Unmerge(slot, st.Sheet, start, end))
	}
	return fmt.Errorf("unknown op %q", st.Op)
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
