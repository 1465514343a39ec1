// Package azatable builds the area-code → (ward, town) lookup used to name parcels.
package azatable

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/chibanzu/internal/model"
)

// DefaultTerminator marks the end of the ward name in the combined name field.
const DefaultTerminator = "区"

// ErrMalformedAttributeRow is matched by every *MalformedRowError.
var ErrMalformedAttributeRow = eris.New("azatable: malformed attribute row")

// MalformedRowError identifies a name-list row that cannot be turned into an entry.
type MalformedRowError struct {
	Line   int
	Field  string
	Value  string
	Reason string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("azatable: malformed attribute row %d: %s (%s=%q)", e.Line, e.Reason, e.Field, e.Value)
}

// Is reports whether target is ErrMalformedAttributeRow.
func (e *MalformedRowError) Is(target error) bool {
	return target == ErrMalformedAttributeRow
}

// Row is one record of the tabular name list, keyed by header name.
type Row struct {
	Line   int // 1-based position in the source, for error reporting
	Fields map[string]string
}

// Options names the fields Build reads from each row.
type Options struct {
	CodeField  string
	NameField  string
	Terminator string // default DefaultTerminator
}

func (o Options) terminator() string {
	if o.Terminator == "" {
		return DefaultTerminator
	}
	return o.Terminator
}

// Table maps area codes to ward/town names. It is read-only once built and
// safe to share across goroutines.
type Table struct {
	entries    map[string]model.AreaCodeEntry
	duplicates int
}

// Build constructs a Table from rows. Any malformed row aborts the build and
// no table is returned. When a code appears more than once the later row wins.
func Build(rows []Row, opts Options) (*Table, error) {
	if opts.CodeField == "" || opts.NameField == "" {
		return nil, eris.New("azatable: code and name fields are required")
	}

	log := zap.L().With(zap.String("component", "azatable"))
	term := opts.terminator()

	t := &Table{entries: make(map[string]model.AreaCodeEntry, len(rows))}
	for _, row := range rows {
		if isBlank(row) {
			continue
		}

		code, ok := field(row, opts.CodeField)
		if !ok || code == "" {
			return nil, &MalformedRowError{Line: row.Line, Field: opts.CodeField, Value: code, Reason: "missing area code"}
		}
		combined, ok := field(row, opts.NameField)
		if !ok {
			return nil, &MalformedRowError{Line: row.Line, Field: opts.NameField, Reason: "missing name field"}
		}

		ward, town, ok := SplitName(combined, term)
		if !ok {
			return nil, &MalformedRowError{
				Line:   row.Line,
				Field:  opts.NameField,
				Value:  combined,
				Reason: fmt.Sprintf("no %q in name", term),
			}
		}

		if prev, dup := t.entries[code]; dup {
			t.duplicates++
			log.Debug("duplicate area code, later row wins",
				zap.String("area_code", code),
				zap.String("previous", prev.WardName+prev.TownName),
				zap.String("current", ward+town),
				zap.Int("line", row.Line),
			)
		}
		t.entries[code] = model.AreaCodeEntry{AreaCode: code, WardName: ward, TownName: town}
	}

	log.Info("area code table built",
		zap.Int("entries", len(t.entries)),
		zap.Int("duplicates", t.duplicates),
	)
	return t, nil
}

// SplitName splits combined at the first terminator. The ward keeps the
// terminator; the town is everything after it.
func SplitName(combined, terminator string) (ward, town string, ok bool) {
	i := strings.Index(combined, terminator)
	if i < 0 {
		return "", "", false
	}
	cut := i + len(terminator)
	return combined[:cut], combined[cut:], true
}

// Normalize applies NFKC and trims surrounding space, so full-width digits in
// codes and half-width kana in names compare equal across sources.
func Normalize(s string) string {
	return strings.TrimSpace(norm.NFKC.String(s))
}

// Lookup returns the entry for code.
func (t *Table) Lookup(code string) (model.AreaCodeEntry, bool) {
	e, ok := t.entries[Normalize(code)]
	return e, ok
}

// Len returns the number of distinct codes.
func (t *Table) Len() int { return len(t.entries) }

// Duplicates returns how many rows overwrote an earlier row with the same code.
func (t *Table) Duplicates() int { return t.duplicates }

// Entries returns all entries ordered by area code.
func (t *Table) Entries() []model.AreaCodeEntry {
	out := make([]model.AreaCodeEntry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AreaCode < out[j].AreaCode })
	return out
}

func field(row Row, name string) (string, bool) {
	v, ok := row.Fields[name]
	if !ok {
		return "", false
	}
	return Normalize(v), true
}

func isBlank(row Row) bool {
	for _, v := range row.Fields {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
