// Package main provides the command line interface of excelice.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice"
	"github.com/Andresdk3/Libreria-Excelice/pkg/excelice/address"
)

var (
	verbose    bool
	outputPath string
	pretty     bool
	formulas   bool
	srcSheet   string
	dstSheet   string
	cellRange  string
	target     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "excelice",
		Short: "Edit Excel workbooks",
		Long: `excelice writes cells and copies ranges and sheets within and between
Excel workbooks, keeping formulas, formats and untouched parts intact.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every operation")

	writeCmd := &cobra.Command{
		Use:   "write <file.xlsx> <sheet> <cell> <value>",
		Short: "Write a value into a cell",
		Args:  cobra.ExactArgs(4),
		RunE:  runWrite,
	}
	addOutputFlag(writeCmd.Flags(), "input")

	copyRangeCmd := &cobra.Command{
		Use:   "copy-range <src.xlsx> <dst.xlsx>",
		Short: "Copy a range of cells from one workbook to another",
		Args:  cobra.ExactArgs(2),
		RunE:  runCopyRange,
	}
	copyRangeCmd.Flags().StringVar(&srcSheet, "sheet", "", "Source sheet")
	copyRangeCmd.Flags().StringVar(&dstSheet, "to-sheet", "", "Destination sheet (default: same name, created if missing)")
	copyRangeCmd.Flags().StringVar(&cellRange, "range", "", "Source range, e.g. A1:C10")
	copyRangeCmd.Flags().StringVar(&target, "to", "", "Top-left destination cell (default: same as the range)")
	copyRangeCmd.Flags().BoolVar(&formulas, "formulas", false, "Copy formulas instead of their values")
	addOutputFlag(copyRangeCmd.Flags(), "destination")
	copyRangeCmd.MarkFlagRequired("sheet")
	copyRangeCmd.MarkFlagRequired("range")

	copySheetCmd := &cobra.Command{
		Use:   "copy-sheet <src.xlsx> <dst.xlsx>",
		Short: "Copy a whole sheet from one workbook to another",
		Args:  cobra.ExactArgs(2),
		RunE:  runCopySheet,
	}
	copySheetCmd.Flags().StringVar(&srcSheet, "sheet", "", "Source sheet")
	copySheetCmd.Flags().StringVar(&dstSheet, "as", "", "Name of the new sheet (default: same name)")
	copySheetCmd.Flags().BoolVar(&formulas, "formulas", false, "Copy formulas instead of their values")
	addOutputFlag(copySheetCmd.Flags(), "destination")
	copySheetCmd.MarkFlagRequired("sheet")

	sheetsCmd := &cobra.Command{
		Use:   "sheets <file.xlsx>",
		Short: "List the sheets of a workbook",
		Args:  cobra.ExactArgs(1),
		RunE:  runSheets,
	}

	dumpCmd := &cobra.Command{
		Use:   "dump <file.xlsx> [sheet...]",
		Short: "Print sheet contents as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runDump,
	}
	dumpCmd.Flags().BoolVar(&pretty, "pretty", false, "Pretty-print JSON output")

	removeRowsCmd := &cobra.Command{
		Use:   "remove-rows <file.xlsx> <sheet> <row>...",
		Short: "Delete rows and move the rows below up",
		Args:  cobra.MinimumNArgs(3),
		RunE:  runRemoveRows,
	}
	addOutputFlag(removeRowsCmd.Flags(), "input")

	runCmd := &cobra.Command{
		Use:   "run <job.yaml>",
		Short: "Run the steps of a job file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := loadJob(args[0])
			if err != nil {
				return err
			}
			s := newSession()
			defer s.CloseAll()
			return j.run(s)
		},
	}

	rootCmd.AddCommand(writeCmd, copyRangeCmd, copySheetCmd, sheetsCmd, dumpCmd, removeRowsCmd, runCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// addOutputFlag registers --output (alias --out) on a saving command.
func addOutputFlag(fs *pflag.FlagSet, overwrites string) {
	fs.StringVarP(&outputPath, "output", "o", "", "Output file path (default: overwrite "+overwrites+")")
	fs.SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "out" {
			name = "output"
		}
		return pflag.NormalizedName(name)
	})
}

func newLogger() *zap.Logger {
	if verbose {
		log, err := zap.NewDevelopment()
		if err == nil {
			return log
		}
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func newSession() *excelice.Session {
	return excelice.NewSession(excelice.Options{Logger: newLogger()})
}

// check turns a failed operation into an error naming its code.
func check(err error) error {
	if err == nil {
		return nil
	}
	code := excelice.CodeOf(err)
	return fmt.Errorf("%s (%d): %w", code, int(code), err)
}

func outputOr(path string) string {
	if outputPath != "" {
		return outputPath
	}
	return path
}

func runWrite(cmd *cobra.Command, args []string) error {
	s := newSession()
	defer s.CloseAll()
	if err := s.Open(excelice.SlotDefault, args[0]); err != nil {
		return check(err)
	}
	if err := s.Write(excelice.SlotDefault, args[1], args[2], args[3]); err != nil {
		return check(err)
	}
	return check(s.Save(excelice.SlotDefault, outputOr(args[0])))
}

func runCopyRange(cmd *cobra.Command, args []string) error {
	r, err := address.ParseRange(cellRange)
	if err != nil {
		return check(err)
	}
	dstRow, dstCol := r.StartRow, r.StartCol
	if target != "" {
		if dstRow, dstCol, err = address.Parse(target); err != nil {
			return check(err)
		}
	}
	to := dstSheet
	if to == "" {
		to = srcSheet
	}

	s := newSession()
	defer s.CloseAll()
	if err := s.Open(excelice.SlotSource, args[0]); err != nil {
		return check(err)
	}
	if err := s.Open(excelice.SlotDestination, args[1]); err != nil {
		return check(err)
	}
	err = s.Copy(excelice.CopyRequest{
		From:            excelice.SlotSource,
		To:              excelice.SlotDestination,
		SrcSheet:        srcSheet,
		DstSheet:        to,
		StartRow:        r.StartRow + 1,
		EndRow:          r.EndRow + 1,
		StartCol:        r.StartCol + 1,
		EndCol:          r.EndCol + 1,
		DstRow:          dstRow + 1,
		DstCol:          dstCol + 1,
		IncludeFormulas: formulas,
	})
	if err != nil {
		return check(err)
	}
	return check(s.Save(excelice.SlotDestination, outputOr(args[1])))
}

func runCopySheet(cmd *cobra.Command, args []string) error {
	name := dstSheet
	if name == "" {
		name = srcSheet
	}
	s := newSession()
	defer s.CloseAll()
	if err := s.Open(excelice.SlotSource, args[0]); err != nil {
		return check(err)
	}
	if err := s.Open(excelice.SlotDestination, args[1]); err != nil {
		return check(err)
	}
	if err := s.CloneSheet(excelice.SlotSource, excelice.SlotDestination, srcSheet, name, formulas); err != nil {
		return check(err)
	}
	return check(s.Save(excelice.SlotDestination, outputOr(args[1])))
}

func runSheets(cmd *cobra.Command, args []string) error {
	s := newSession()
	defer s.CloseAll()
	if err := s.Open(excelice.SlotSource, args[0]); err != nil {
		return check(err)
	}
	names, err := s.Sheets(excelice.SlotSource)
	if err != nil {
		return check(err)
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

func runDump(cmd *cobra.Command, args []string) error {
	s := newSession()
	defer s.CloseAll()
	if err := s.Open(excelice.SlotSource, args[0]); err != nil {
		return check(err)
	}
	sheets := args[1:]
	if len(sheets) == 0 {
		names, err := s.Sheets(excelice.SlotSource)
		if err != nil {
			return check(err)
		}
		sheets = names
	}

	type sheetRows struct {
		Name string `json:"name"`
		Rows any    `json:"rows"`
	}
	out := make([]sheetRows, 0, len(sheets))
	for _, name := range sheets {
		rows, err := s.ReadSheet(excelice.SlotSource, name)
		if err != nil {
			return check(err)
		}
		out = append(out, sheetRows{Name: name, Rows: rows})
	}

	var data []byte
	var err error
	if pretty {
		data, err = json.MarshalIndent(out, "", "  ")
	} else {
		data, err = json.Marshal(out)
	}
	if err != nil {
		return fmt.Errorf("serialization failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func runRemoveRows(cmd *cobra.Command, args []string) error {
	rows := make([]int, 0, len(args)-2)
	for _, a := range args[2:] {
		n, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("invalid row %q: %w", a, err)
		}
		rows = append(rows, n)
	}
	s := newSession()
	defer s.CloseAll()
	if err := s.Open(excelice.SlotDefault, args[0]); err != nil {
		return check(err)
	}
	if err := s.RemoveRows(excelice.SlotDefault, args[1], rows...); err != nil {
		return check(err)
	}
	return check(s.Save(excelice.SlotDefault, outputOr(args[0])))
}
