package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/chibanzu/internal/dataset"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// No config.yaml in the temp dir
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "kyoto_chibanzu", cfg.Dataset)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "*.shp", cfg.Input.ShapefilePattern)
	assert.Equal(t, "*.xlsx", cfg.Input.NamesPattern)
	assert.Equal(t, "auto", cfg.Input.Encoding)
	assert.Equal(t, "町丁コード", cfg.Names.CodeField)
	assert.Equal(t, "町名", cfg.Names.NameField)
	assert.Equal(t, "区", cfg.Names.Terminator)
	assert.Equal(t, 6, cfg.Shapefile.Zone)
	assert.Equal(t, "output", cfg.Output.Dir)
	assert.Equal(t, "26_kyoto_chiban.txt", cfg.Output.FileName)
	assert.Equal(t, ",", cfg.Output.Separator)
	assert.Equal(t, 600, cfg.Download.TimeoutSecs)
	assert.Equal(t, 3, cfg.Download.MaxRetries)
	assert.InDelta(t, 2.0, cfg.Download.RequestsPerS, 0.001)
	assert.Empty(t, cfg.Store.SQLitePath)
	assert.Empty(t, cfg.Store.DatabaseURL)
	assert.Equal(t, 1, cfg.Convert.Workers)
	assert.Equal(t, 4096, cfg.Convert.BatchSize)
}

func TestSetDefaults_FromManifest(t *testing.T) {
	m, err := dataset.Parse([]byte(`
dataset:
  id: osaka_test
  download:
    url: http://example.test
    archive: a.zip
  files:
    shapefile: "chiban_*.shp"
    names: "*.csv"
  zone: 7
  output: 27_osaka_chiban.txt
`))
	require.NoError(t, err)

	v := viper.New()
	setDefaults(v, m)
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	assert.Equal(t, "osaka_test", cfg.Dataset)
	assert.Equal(t, "chiban_*.shp", cfg.Input.ShapefilePattern)
	assert.Equal(t, "*.csv", cfg.Input.NamesPattern)
	assert.Equal(t, 7, cfg.Shapefile.Zone)
	assert.Equal(t, "27_osaka_chiban.txt", cfg.Output.FileName)

	kyoto, err := dataset.Kyoto()
	require.NoError(t, err)
	kyoto.Files.Names = ""
	v = viper.New()
	setDefaults(v, kyoto)
	assert.Equal(t, "*.xlsx", v.GetString("input.names_pattern"))
	assert.Equal(t, kyoto.Zone, v.GetInt("shapefile.zone"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
  format: console
shapefile:
  code_field: AZACODE
  zone: 0
output:
  separator: tab
  header: true
store:
  sqlite_path: chiban.db
convert:
  workers: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "AZACODE", cfg.Shapefile.CodeField)
	assert.Equal(t, 0, cfg.Shapefile.Zone)
	assert.True(t, cfg.Output.Header)
	assert.Equal(t, "chiban.db", cfg.Store.SQLitePath)
	assert.Equal(t, 4, cfg.Convert.Workers)
	// Defaults still apply for unset values
	assert.Equal(t, "CHIBAN", cfg.Shapefile.ChibanField)

	sep, err := cfg.Output.SeparatorRune()
	require.NoError(t, err)
	assert.Equal(t, '\t', sep)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
shapefile:
  zone: 7
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("CHIBANZU_LOG_LEVEL", "warn")
	t.Setenv("CHIBANZU_SHAPEFILE_ZONE", "6")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 6, cfg.Shapefile.Zone)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("CHIBANZU_OUTPUT_DIR", "/srv/chiban")
	t.Setenv("CHIBANZU_CONVERT_WORKERS", "8")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/chiban", cfg.Output.Dir)
	assert.Equal(t, 8, cfg.Convert.Workers)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func TestSeparatorRune(t *testing.T) {
	for in, want := range map[string]rune{"": ',', ",": ',', "comma": ',', "tab": '\t', "TAB": '\t', "\t": '\t'} {
		got, err := OutputConfig{Separator: in}.SeparatorRune()
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := OutputConfig{Separator: ";"}.SeparatorRune()
	assert.Error(t, err)
}

// validDefaults returns a Config with the defaults Load would populate.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Input.DownloadDir = "data/download"
	cfg.Names.CodeField = "町丁コード"
	cfg.Names.NameField = "町名"
	cfg.Shapefile.CodeField = "AZA_CODE"
	cfg.Shapefile.ChibanField = "CHIBAN"
	cfg.Shapefile.Zone = 6
	cfg.Output.FileName = "26_kyoto_chiban.txt"
	cfg.Download.TimeoutSecs = 600
	cfg.Download.MaxRetries = 3
	cfg.Convert.Workers = 1
	return cfg
}

func TestValidate_AllModes(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"download", "convert", "run"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidateConvert_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Shapefile.CodeField = ""
	cfg.Shapefile.Zone = 20
	cfg.Output.Separator = "|"

	err := cfg.Validate("convert")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shapefile.code_field is required")
	assert.Contains(t, err.Error(), "shapefile.zone must be between 0 and 19")
	assert.Contains(t, err.Error(), "output.separator")

	// download does not look at convert settings
	assert.NoError(t, cfg.Validate("download"))
}

func TestValidateWorkersBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Convert.Workers = 0
	err := cfg.Validate("convert")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "convert.workers must be between 1 and 64")

	cfg.Convert.Workers = 64
	assert.NoError(t, cfg.Validate("convert"))
}

func TestValidateDownload(t *testing.T) {
	cfg := validDefaults()
	cfg.Download.TimeoutSecs = 0

	err := cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "download.timeout_secs must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
