package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata"

	"db-mirror/internal/dialect"
	"db-mirror/internal/engine"
	"db-mirror/internal/report"

	"github.com/spf13/viper"
)

// envBindings maps configuration keys to the environment variables that set them.
var envBindings = []struct{ key, env string }{
	{"driver", "DB_DRIVER"},
	{"source.host", "SOURCE_DB_HOST"},
	{"source.port", "SOURCE_DB_PORT"},
	{"source.user", "SOURCE_DB_USER"},
	{"source.password", "SOURCE_DB_PASSWORD"},
	{"source.name", "SOURCE_DB_NAME"},
	{"target.host", "TARGET_DB_HOST"},
	{"target.port", "TARGET_DB_PORT"},
	{"target.user", "TARGET_DB_USER"},
	{"target.password", "TARGET_DB_PASSWORD"},
	{"target.name", "TARGET_DB_NAME"},
	{"table", "TABLE_NAME"},
	{"target.table", "TARGET_TABLE_NAME"},
	{"schema", "DB_SCHEMA"},
	{"timezone", "MIRROR_TIMEZONE"},
	{"batch_size", "MIRROR_BATCH_SIZE"},
	{"tls.mode", "DB_TLS_MODE"},
	{"tls.ca_file", "DB_TLS_CA_FILE"},
	{"tls.allow_insecure", "DB_TLS_ALLOW_INSECURE"},
	{"log.file", "MIRROR_LOG_FILE"},
	{"log.format", "MIRROR_LOG_FORMAT"},
	{"log.level", "MIRROR_LOG_LEVEL"},
	{"report.format", "MIRROR_REPORT_FORMAT"},
	{"report.summary_file", "GITHUB_STEP_SUMMARY"},
	{"strict", "MIRROR_STRICT"},
}

// defaultPorts apply when a network side has no port configured.
var defaultPorts = map[string]int{
	"mysql":     3306,
	"postgres":  5432,
	"sqlserver": 1433,
	"mssql":     1433,
	"oracle":    1521,
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("driver", "mysql")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("batch_size", engine.DefaultBatchSize)
	v.SetDefault("tls.mode", dialect.TLSVerify)
	v.SetDefault("tls.allow_insecure", false)
	v.SetDefault("log.file", "db_mirror.log")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "info")
	v.SetDefault("report.format", report.FormatText)
	v.SetDefault("strict", false)
}

func bindEnv(v *viper.Viper) {
	v.AllowEmptyEnv(true)
	for _, b := range envBindings {
		v.BindEnv(b.key, b.env)
	}
}

// loadDotEnv reads a dotenv file through its own viper instance and installs its values as
// defaults, so real environment variables, flags and the config file all take precedence.
// A missing file is not an error.
func loadDotEnv(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	env := viper.New()
	env.SetConfigFile(path)
	env.SetConfigType("env")
	if err := env.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, b := range envBindings {
		name := strings.ToLower(b.env)
		if env.IsSet(name) {
			v.SetDefault(b.key, env.GetString(name))
		}
	}
	return nil
}

type SideConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	// Table is only read for the target side.
	Table string `mapstructure:"table"`
}

type TLSSettings struct {
	Mode          string `mapstructure:"mode"`
	CAFile        string `mapstructure:"ca_file"`
	AllowInsecure bool   `mapstructure:"allow_insecure"`
}

type LogSettings struct {
	File   string `mapstructure:"file"`
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

type ReportSettings struct {
	Format      string `mapstructure:"format"`
	SummaryFile string `mapstructure:"summary_file"`
}

// MirrorConfig is the resolved configuration of one run.
type MirrorConfig struct {
	Driver    string         `mapstructure:"driver"`
	Source    SideConfig     `mapstructure:"source"`
	Target    SideConfig     `mapstructure:"target"`
	Table     string         `mapstructure:"table"`
	Schema    string         `mapstructure:"schema"`
	Timezone  string         `mapstructure:"timezone"`
	BatchSize int            `mapstructure:"batch_size"`
	TLS       TLSSettings    `mapstructure:"tls"`
	Log       LogSettings    `mapstructure:"log"`
	Report    ReportSettings `mapstructure:"report"`
	Strict    bool           `mapstructure:"strict"`
	DryRun    bool           `mapstructure:"dry_run"`

	// targetPasswordSet distinguishes an empty target password from a missing one.
	targetPasswordSet bool
	location          *time.Location
}

// LoadConfig resolves and validates the configuration held by v.
func LoadConfig(v *viper.Viper) (*MirrorConfig, error) {
	var cfg MirrorConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	cfg.targetPasswordSet = v.IsSet("target.password")
	if cfg.Target.Table == "" {
		cfg.Target.Table = cfg.Table
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required settings and reports every missing one at once.
func (c *MirrorConfig) Validate() error {
	if _, ok := defaultPorts[c.Driver]; !ok && c.Driver != "sqlite" {
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}

	var missing []string
	require := func(val, env string) {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, env)
		}
	}
	require(c.Table, "TABLE_NAME")
	require(c.Source.Name, "SOURCE_DB_NAME")
	require(c.Target.Name, "TARGET_DB_NAME")
	if c.Driver != "sqlite" {
		require(c.Source.Host, "SOURCE_DB_HOST")
		require(c.Source.User, "SOURCE_DB_USER")
		require(c.Source.Password, "SOURCE_DB_PASSWORD")
		require(c.Target.Host, "TARGET_DB_HOST")
		require(c.Target.User, "TARGET_DB_USER")
		if !c.targetPasswordSet {
			missing = append(missing, "TARGET_DB_PASSWORD")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	c.location = loc

	switch strings.ToLower(c.Report.Format) {
	case report.FormatText, report.FormatMarkdown, "md", report.FormatJSON:
	default:
		return fmt.Errorf("invalid report format %q (want text, markdown or json)", c.Report.Format)
	}

	if c.Driver == "sqlite" {
		return nil
	}
	switch c.TLS.Mode {
	case dialect.TLSVerify, dialect.TLSSkipVerify:
	case dialect.TLSCustom:
		if c.TLS.CAFile == "" {
			return errors.New("tls.mode=custom requires DB_TLS_CA_FILE")
		}
	case dialect.TLSDisabled:
		if !c.TLS.AllowInsecure {
			return errors.New("refusing unencrypted connections: set DB_TLS_ALLOW_INSECURE=true to allow tls.mode=false")
		}
	default:
		return fmt.Errorf("invalid tls mode %q (want true, skip-verify, custom or false)", c.TLS.Mode)
	}
	return nil
}

// Location is the configured timezone; valid after Validate.
func (c *MirrorConfig) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// SchemaFor returns the catalog schema tables on side live in. A MySQL schema is the
// database itself, so each side resolves to its own database name and DB_SCHEMA is ignored.
// Other drivers use DB_SCHEMA, or the dialect default when it is empty.
func (c *MirrorConfig) SchemaFor(side SideConfig) string {
	if c.Driver == "mysql" {
		return side.Name
	}
	return c.Schema
}

// QualifiedTarget is the target table name as status queries it: prefixed with the
// configured schema unless already qualified or the schema is the connection's database.
func (c *MirrorConfig) QualifiedTarget() string {
	schemaName, _ := dialect.SplitTable(c.Target.Table)
	if schemaName != "" || c.Driver == "mysql" || c.Schema == "" {
		return c.Target.Table
	}
	return c.Schema + "." + c.Target.Table
}

// Conn returns the connection settings of one side.
func (c *MirrorConfig) Conn(side SideConfig) dialect.ConnConfig {
	port := side.Port
	if port == 0 {
		port = defaultPorts[c.Driver]
	}
	return dialect.ConnConfig{
		Host:     side.Host,
		Port:     port,
		User:     side.User,
		Password: side.Password,
		Name:     side.Name,
		TLS:      dialect.TLSConfig{Mode: c.TLS.Mode, CAFile: c.TLS.CAFile},
		Location: c.Location(),
	}
}
