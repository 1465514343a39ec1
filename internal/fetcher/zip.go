package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/japanese"
)

// ExtractZIP extracts all files from a ZIP archive to destDir and returns the
// extracted file paths. Entry names not flagged as UTF-8 are decoded as
// Shift_JIS, the usual encoding of archives built on Japanese Windows.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	if err := RequireFile(zipPath); err != nil {
		return nil, err
	}

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var extracted []string
	for _, f := range r.File {
		path, err := extractEntry(f, destDir)
		if err != nil {
			return extracted, err
		}
		if path != "" {
			extracted = append(extracted, path)
		}
	}
	return extracted, nil
}

// FindFile walks dir and returns the first file (in lexical order) whose base
// name matches pattern, e.g. "*.shp".
func FindFile(dir, pattern string) (string, error) {
	var matches []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ok, matchErr := filepath.Match(pattern, d.Name())
		if matchErr != nil {
			return matchErr
		}
		if ok {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return "", eris.Wrapf(err, "zip: search %s for %s", dir, pattern)
	}
	if len(matches) == 0 {
		return "", eris.Wrapf(ErrMissingSourceFile, "no %s under %s", pattern, dir)
	}
	sort.Strings(matches)
	return matches[0], nil
}

func entryName(f *zip.File) string {
	if f.NonUTF8 {
		if name, err := japanese.ShiftJIS.NewDecoder().String(f.Name); err == nil {
			return name
		}
	}
	return f.Name
}

// extractEntry extracts a single zip.File into destDir. Returns the extracted
// path, or "" for directories.
func extractEntry(f *zip.File, destDir string) (string, error) {
	name := entryName(f)
	destPath := filepath.Join(destDir, name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q (zip slip attempt)", name)
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return "", eris.Wrap(err, "zip: create directory")
		}
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrapf(err, "zip: open entry %s", name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrapf(err, "zip: write %s", destPath)
	}
	return destPath, nil
}
