package fetcher

import (
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Text encodings accepted for DBF attributes and CSV name lists.
const (
	EncodingAuto     = "auto"
	EncodingShiftJIS = "shift_jis"
	EncodingUTF8     = "utf-8"
)

// ErrMissingSourceFile is returned when an input file does not exist.
var ErrMissingSourceFile = eris.New("fetcher: missing source file")

// RequireFile fails with ErrMissingSourceFile when path is absent or a directory.
func RequireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return eris.Wrapf(ErrMissingSourceFile, "%s", path)
		}
		return eris.Wrapf(err, "fetcher: stat %s", path)
	}
	if info.IsDir() {
		return eris.Wrapf(ErrMissingSourceFile, "%s is a directory", path)
	}
	return nil
}

// ValidEncoding reports whether enc is one of the supported encodings.
func ValidEncoding(enc string) bool {
	switch normalizeEncoding(enc) {
	case EncodingAuto, EncodingShiftJIS, EncodingUTF8:
		return true
	}
	return false
}

// DecodeString converts s to UTF-8. In auto mode valid UTF-8 is kept as is and
// anything else is treated as Shift_JIS (cp932), which Japanese DBF files use.
func DecodeString(s, enc string) (string, error) {
	switch normalizeEncoding(enc) {
	case EncodingUTF8:
		return s, nil
	case EncodingAuto:
		if utf8.ValidString(s) {
			return s, nil
		}
	}
	out, _, err := transform.String(japanese.ShiftJIS.NewDecoder(), s)
	if err != nil {
		return "", eris.Wrap(err, "fetcher: decode shift_jis")
	}
	return out, nil
}

// DecodingReader wraps r so reads yield UTF-8. Auto mode is treated as UTF-8
// with a leading BOM stripped; use shift_jis explicitly for cp932 CSV exports.
func DecodingReader(r io.Reader, enc string) io.Reader {
	if normalizeEncoding(enc) == EncodingShiftJIS {
		return transform.NewReader(r, japanese.ShiftJIS.NewDecoder())
	}
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

func normalizeEncoding(enc string) string {
	e := strings.ToLower(strings.TrimSpace(enc))
	switch e {
	case "", EncodingAuto:
		return EncodingAuto
	case "sjis", "cp932", "windows-31j", "shift-jis", EncodingShiftJIS:
		return EncodingShiftJIS
	case "utf8", EncodingUTF8:
		return EncodingUTF8
	}
	return e
}
