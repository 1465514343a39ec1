// Package dataset describes the published source archives chibanzu converts.
package dataset

import (
	"context"
	_ "embed"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/chibanzu/internal/fetcher"
)

//go:embed kyoto.yaml
var kyotoManifest []byte

// Manifest is everything needed to fetch and interpret one dataset.
type Manifest struct {
	ID         string       `yaml:"id"`
	Name       string       `yaml:"name"`
	LandingURL string       `yaml:"landing_url"`
	Download   DownloadSpec `yaml:"download"`
	Files      FileSpec     `yaml:"files"`
	Zone       int          `yaml:"zone"`
	Output     string       `yaml:"output"`
	License    string       `yaml:"license"`
}

// DownloadSpec is the form POST that yields the archive.
type DownloadSpec struct {
	URL     string            `yaml:"url"`
	Form    map[string]string `yaml:"form"`
	Archive string            `yaml:"archive"`
}

// FileSpec holds glob patterns for the files inside the archive.
type FileSpec struct {
	Shapefile string `yaml:"shapefile"`
	Names     string `yaml:"names"`
}

// Kyoto returns the manifest for the Kyoto City land parcel map.
func Kyoto() (Manifest, error) {
	return Parse(kyotoManifest)
}

// Parse decodes a manifest document with a top-level "dataset" key.
func Parse(data []byte) (Manifest, error) {
	var wrapper struct {
		Dataset Manifest `yaml:"dataset"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Manifest{}, eris.Wrap(err, "dataset: parse manifest")
	}

	m := wrapper.Dataset
	if err := m.validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

func (m Manifest) validate() error {
	var missing []string
	if m.ID == "" {
		missing = append(missing, "id")
	}
	if m.Download.URL == "" {
		missing = append(missing, "download.url")
	}
	if m.Download.Archive == "" {
		missing = append(missing, "download.archive")
	}
	if m.Files.Shapefile == "" {
		missing = append(missing, "files.shapefile")
	}
	if m.Output == "" {
		missing = append(missing, "output")
	}
	if len(missing) > 0 {
		return eris.Errorf("dataset: manifest missing %s", strings.Join(missing, ", "))
	}
	if m.Zone < 0 || m.Zone > 19 {
		return eris.Errorf("dataset: zone %d out of range", m.Zone)
	}
	if filepath.Base(m.Download.Archive) != m.Download.Archive {
		return eris.Errorf("dataset: archive %q must be a bare file name", m.Download.Archive)
	}
	if filepath.Base(m.Output) != m.Output {
		return eris.Errorf("dataset: output %q must be a bare file name", m.Output)
	}
	return nil
}

// FormValues returns the download form payload.
func (m Manifest) FormValues() url.Values {
	v := make(url.Values, len(m.Download.Form))
	for k, val := range m.Download.Form {
		v.Set(k, val)
	}
	return v
}

// ArchivePath is where the downloaded archive lives under dir.
func (m Manifest) ArchivePath(dir string) string {
	return filepath.Join(dir, m.Download.Archive)
}

// Fetch downloads the archive into dir unless it is already there. It
// returns the archive path and whether the download was skipped.
func Fetch(ctx context.Context, f fetcher.Fetcher, m Manifest, dir string) (string, bool, error) {
	log := zap.L().With(zap.String("component", "dataset"), zap.String("dataset", m.ID))
	path := m.ArchivePath(dir)

	if _, err := os.Stat(path); err == nil {
		log.Info("skip: archive already downloaded", zap.String("path", path))
		return path, true, nil
	} else if !os.IsNotExist(err) {
		return "", false, eris.Wrapf(err, "dataset: stat %s", path)
	}

	log.Info("downloading archive",
		zap.String("name", m.Name),
		zap.String("landing_url", m.LandingURL),
		zap.String("url", m.Download.URL),
		zap.String("path", path),
	)
	n, err := f.PostFormToFile(ctx, m.Download.URL, m.FormValues(), path)
	if err != nil {
		return "", false, eris.Wrapf(err, "dataset: download %s", m.ID)
	}
	log.Info("archive downloaded", zap.Int64("bytes", n))
	return path, false, nil
}
