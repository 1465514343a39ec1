package emit

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FileOptions configures WriteFile.
type FileOptions struct {
	Separator rune // ',' when zero
	Header    bool // write Columns as the first line
}

// Result describes what WriteFile did.
type Result struct {
	Path    string
	Skipped bool // destination already existed; nothing was written
	Records int
}

// WriteFile creates path and fills it through fill. An existing path is left
// untouched and reported as skipped. Output goes to a temporary file in the
// same directory and is renamed into place only after fill succeeds, so the
// destination is either absent or complete.
func WriteFile(path string, opts FileOptions, fill func(*Emitter) error) (Result, error) {
	log := zap.L().With(zap.String("component", "emit"), zap.String("path", path))
	res := Result{Path: path}

	if _, err := os.Stat(path); err == nil {
		log.Info("output exists, skipping")
		res.Skipped = true
		return res, nil
	} else if !os.IsNotExist(err) {
		return res, eris.Wrapf(err, "emit: stat %s", path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return res, eris.Wrap(err, "emit: create output directory")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return res, eris.Wrap(err, "emit: create temp file")
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	buf := bufio.NewWriterSize(tmp, 1<<16)
	e := NewEmitter(buf, opts.Separator)
	if opts.Header {
		if err := e.WriteHeader(); err != nil {
			return res, err
		}
	}
	if err := fill(e); err != nil {
		return res, err
	}
	if err := e.Flush(); err != nil {
		return res, err
	}
	if err := buf.Flush(); err != nil {
		return res, eris.Wrap(err, "emit: flush buffer")
	}
	if err := tmp.Sync(); err != nil {
		return res, eris.Wrap(err, "emit: sync")
	}
	if err := tmp.Close(); err != nil {
		return res, eris.Wrap(err, "emit: close temp file")
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return res, eris.Wrap(err, "emit: chmod")
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return res, eris.Wrap(err, "emit: rename into place")
	}
	committed = true

	res.Records = e.Count()
	log.Info("output written", zap.Int("records", res.Records))
	return res, nil
}
