package azatable

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/chibanzu/internal/fetcher"
)

// LoadOptions configures reading the name list from disk.
type LoadOptions struct {
	Options
	SheetName string // xlsx only; empty selects the first sheet
	HeaderRow int    // 0-based index of the header row
	Encoding  string // csv only: auto | shift_jis | utf-8
}

// LoadFile reads an .xlsx or .csv name list and builds the table from it.
func LoadFile(ctx context.Context, path string, opts LoadOptions) (*Table, error) {
	if err := fetcher.RequireFile(path); err != nil {
		return nil, eris.Wrap(err, "azatable: name list")
	}

	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		records, err = fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: opts.SheetName})
	case ".csv", ".txt":
		records, err = readCSVFile(ctx, path, opts.Encoding)
	default:
		return nil, eris.Errorf("azatable: unsupported name list format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, eris.Wrapf(err, "azatable: read %s", path)
	}

	rows, err := RowsFromRecords(records, opts.HeaderRow)
	if err != nil {
		return nil, err
	}
	return Build(rows, opts.Options)
}

// RowsFromRecords keys each record after headerRow by the normalized header
// names. Lines are numbered from 1 as they appear in the source.
func RowsFromRecords(records [][]string, headerRow int) ([]Row, error) {
	if headerRow < 0 || headerRow >= len(records) {
		return nil, eris.Errorf("azatable: header row %d not present (%d rows)", headerRow, len(records))
	}

	header := make([]string, len(records[headerRow]))
	for i, h := range records[headerRow] {
		header[i] = Normalize(h)
	}

	rows := make([]Row, 0, len(records)-headerRow-1)
	for i := headerRow + 1; i < len(records); i++ {
		fields := make(map[string]string, len(header))
		for j, name := range header {
			if name == "" {
				continue
			}
			if j < len(records[i]) {
				fields[name] = records[i][j]
			} else {
				fields[name] = ""
			}
		}
		rows = append(rows, Row{Line: i + 1, Fields: fields})
	}
	return rows, nil
}

func readCSVFile(ctx context.Context, path, encoding string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open csv")
	}
	defer f.Close() //nolint:errcheck

	return fetcher.ReadCSV(ctx, f, fetcher.CSVOptions{Encoding: encoding})
}
