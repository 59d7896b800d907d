package cmd

import (
	"encoding/csv"
	"errors"
	"math"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/wtsi-hgi/library-exports/xlsx"
)

var ErrXLSXArgs = errors.New("requires exactly one csv file")

// options for this cmd.
var (
	xlsxOutput   string
	xlsxNoHeader bool
	xlsxNumbers  bool
)

// xlsxCmd represents the xlsx command.
var xlsxCmd = &cobra.Command{
	Use:   "xlsx -o <out.xlsx> <in.csv>",
	Short: "Convert a CSV file to a spreadsheet",
	Long: `Convert a CSV file to a spreadsheet.

The first line of the CSV file is used as the header row, unless --no-header
is given, in which case every line is written as data. A CSV file ending in
.gz is decompressed first.

Cells are written as text, unless --numbers is given, in which case values
that parse as numbers become numeric cells.
`,
	RunE: func(_ *cobra.Command, args []string) error {
		if len(args) != 1 {
			return ErrXLSXArgs
		}

		if xlsxOutput == "" {
			return ErrNoOutput
		}

		headers, rows, err := readCSV(args[0], !xlsxNoHeader, xlsxNumbers)
		if err != nil {
			return err
		}

		if err := writeXLSX(xlsxOutput, headers, rows); err != nil {
			os.Remove(xlsxOutput)

			return err
		}

		cliPrintf("wrote %d rows to %s\n", len(rows), xlsxOutput)

		return nil
	},
}

func init() {
	RootCmd.AddCommand(xlsxCmd)

	// flags specific to this sub-command
	xlsxCmd.Flags().StringVarP(&xlsxOutput, "output", "o", "", "path to write the spreadsheet to")
	xlsxCmd.Flags().BoolVar(&xlsxNoHeader, "no-header", false, "the csv file has no header line")
	xlsxCmd.Flags().BoolVarP(&xlsxNumbers, "numbers", "n", false, "write numeric values as numbers")
}

func readCSV(path string, header, numbers bool) ([]string, [][]any, error) {
	r, err := openInput(path)
	if err != nil {
		return nil, nil, err
	}

	defer r.Close()

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}

	var headers []string

	if header && len(records) > 0 {
		headers = records[0]
		records = records[1:]
	}

	rows := make([][]any, len(records))

	for n, record := range records {
		row := make([]any, len(record))

		for m, field := range record {
			row[m] = cellValue(field, numbers)
		}

		rows[n] = row
	}

	return headers, rows, nil
}

func cellValue(field string, numbers bool) any {
	if !numbers {
		return field
	}

	if i, err := strconv.ParseInt(field, 10, 64); err == nil {
		return i
	}

	if f, err := strconv.ParseFloat(field, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}

	return field
}

func writeXLSX(output string, headers []string, rows [][]any) error {
	f, err := os.Create(output)
	if err != nil {
		return err
	}

	if headers == nil {
		err = xlsx.WriteRows(f, rows)
	} else {
		err = xlsx.Write(f, headers, rows)
	}

	if errc := f.Close(); err == nil {
		err = errc
	}

	return err
}
