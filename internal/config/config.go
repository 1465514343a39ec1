package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/chibanzu/internal/dataset"
)

// Config holds the full application configuration.
type Config struct {
	Dataset   string          `yaml:"dataset" mapstructure:"dataset"` // manifest ID recorded with stored runs
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Input     InputConfig     `yaml:"input" mapstructure:"input"`
	Names     NamesConfig     `yaml:"names" mapstructure:"names"`
	Shapefile ShapefileConfig `yaml:"shapefile" mapstructure:"shapefile"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Download  DownloadConfig  `yaml:"download" mapstructure:"download"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Convert   ConvertConfig   `yaml:"convert" mapstructure:"convert"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// InputConfig locates the downloaded and extracted source files.
type InputConfig struct {
	DownloadDir      string `yaml:"download_dir" mapstructure:"download_dir"`
	ExtractDir       string `yaml:"extract_dir" mapstructure:"extract_dir"`
	ShapefilePattern string `yaml:"shapefile_pattern" mapstructure:"shapefile_pattern"`
	NamesPattern     string `yaml:"names_pattern" mapstructure:"names_pattern"`
	Encoding         string `yaml:"encoding" mapstructure:"encoding"`
}

// NamesConfig describes the ward/town name list.
type NamesConfig struct {
	Sheet      string `yaml:"sheet" mapstructure:"sheet"`
	HeaderRow  int    `yaml:"header_row" mapstructure:"header_row"`
	CodeField  string `yaml:"code_field" mapstructure:"code_field"`
	NameField  string `yaml:"name_field" mapstructure:"name_field"`
	Terminator string `yaml:"terminator" mapstructure:"terminator"`
	Encoding   string `yaml:"encoding" mapstructure:"encoding"`
}

// ShapefileConfig names the parcel attribute fields and the source CRS.
type ShapefileConfig struct {
	CodeField   string `yaml:"code_field" mapstructure:"code_field"`
	ChibanField string `yaml:"chiban_field" mapstructure:"chiban_field"`
	Zone        int    `yaml:"zone" mapstructure:"zone"` // plane rectangular zone; 0 = already geographic
}

// OutputConfig configures the text output.
type OutputConfig struct {
	Dir       string `yaml:"dir" mapstructure:"dir"`
	FileName  string `yaml:"file_name" mapstructure:"file_name"`
	Separator string `yaml:"separator" mapstructure:"separator"` // "," or "tab"
	Header    bool   `yaml:"header" mapstructure:"header"`
}

// DownloadConfig configures archive retrieval.
type DownloadConfig struct {
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries   int     `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	RequestsPerS float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// StoreConfig configures the optional database sinks. Empty values disable them.
type StoreConfig struct {
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// ConvertConfig tunes the join stage.
type ConvertConfig struct {
	Workers   int `yaml:"workers" mapstructure:"workers"`
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
}

// SeparatorRune maps the configured separator to the rune the emitter uses.
func (o OutputConfig) SeparatorRune() (rune, error) {
	switch strings.ToLower(o.Separator) {
	case "", ",", "comma":
		return ',', nil
	case "\t", "tab":
		return '\t', nil
	}
	return 0, eris.Errorf("config: unsupported output separator %q", o.Separator)
}

// Validate checks the settings a command mode depends on. Mode is one of
// "download", "convert" or "run".
func (c *Config) Validate(mode string) error {
	var problems []string

	checkConvert := func() {
		if c.Shapefile.CodeField == "" {
			problems = append(problems, "shapefile.code_field is required")
		}
		if c.Shapefile.ChibanField == "" {
			problems = append(problems, "shapefile.chiban_field is required")
		}
		if c.Shapefile.Zone < 0 || c.Shapefile.Zone > 19 {
			problems = append(problems, "shapefile.zone must be between 0 and 19")
		}
		if c.Names.CodeField == "" || c.Names.NameField == "" {
			problems = append(problems, "names.code_field and names.name_field are required")
		}
		if c.Names.HeaderRow < 0 {
			problems = append(problems, "names.header_row must be >= 0")
		}
		if c.Output.FileName == "" {
			problems = append(problems, "output.file_name is required")
		}
		if _, err := c.Output.SeparatorRune(); err != nil {
			problems = append(problems, "output.separator must be \",\" or \"tab\"")
		}
		if c.Convert.Workers < 1 || c.Convert.Workers > 64 {
			problems = append(problems, "convert.workers must be between 1 and 64")
		}
	}
	checkDownload := func() {
		if c.Input.DownloadDir == "" {
			problems = append(problems, "input.download_dir is required")
		}
		if c.Download.MaxRetries < 0 {
			problems = append(problems, "download.max_retries must be >= 0")
		}
		if c.Download.TimeoutSecs <= 0 {
			problems = append(problems, "download.timeout_secs must be > 0")
		}
	}

	switch mode {
	case "download":
		checkDownload()
	case "convert":
		checkConvert()
	case "run":
		checkDownload()
		checkConvert()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CHIBANZU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	m, err := dataset.Kyoto()
	if err != nil {
		return nil, err
	}
	setDefaults(v, m)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// setDefaults registers fallback values. Dataset-specific ones (file
// patterns, plane rectangular zone, output name) come from the manifest.
func setDefaults(v *viper.Viper, m dataset.Manifest) {
	namesPattern := m.Files.Names
	if namesPattern == "" {
		namesPattern = "*.xlsx"
	}

	v.SetDefault("dataset", m.ID)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("input.download_dir", "data/download")
	v.SetDefault("input.extract_dir", "data/extract")
	v.SetDefault("input.shapefile_pattern", m.Files.Shapefile)
	v.SetDefault("input.names_pattern", namesPattern)
	v.SetDefault("input.encoding", "auto")
	v.SetDefault("names.header_row", 0)
	v.SetDefault("names.code_field", "町丁コード")
	v.SetDefault("names.name_field", "町名")
	v.SetDefault("names.terminator", "区")
	v.SetDefault("names.encoding", "auto")
	v.SetDefault("shapefile.code_field", "AZA_CODE")
	v.SetDefault("shapefile.chiban_field", "CHIBAN")
	v.SetDefault("shapefile.zone", m.Zone)
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.file_name", m.Output)
	v.SetDefault("output.separator", ",")
	v.SetDefault("output.header", false)
	v.SetDefault("download.timeout_secs", 600)
	v.SetDefault("download.max_retries", 3)
	v.SetDefault("download.user_agent", "chibanzu/1.0")
	v.SetDefault("download.requests_per_sec", 2.0)
	v.SetDefault("store.batch_size", 5000)
	v.SetDefault("convert.workers", 1)
	v.SetDefault("convert.batch_size", 4096)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
