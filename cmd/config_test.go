package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)
	return v
}

func setNetworkEnv(t *testing.T) {
	t.Helper()
	for k, val := range map[string]string{
		"DB_DRIVER":          "postgres",
		"SOURCE_DB_HOST":     "src.internal",
		"SOURCE_DB_USER":     "reader",
		"SOURCE_DB_PASSWORD": "secret",
		"SOURCE_DB_NAME":     "app",
		"TARGET_DB_HOST":     "dst.internal",
		"TARGET_DB_USER":     "writer",
		"TARGET_DB_PASSWORD": "",
		"TARGET_DB_NAME":     "mirror",
		"TABLE_NAME":         "customers",
	} {
		t.Setenv(k, val)
	}
}

func TestLoadConfig_FromEnv(t *testing.T) {
	setNetworkEnv(t)
	t.Setenv("TARGET_DB_PORT", "6543")
	t.Setenv("MIRROR_BATCH_SIZE", "50")
	t.Setenv("MIRROR_TIMEZONE", "Europe/Berlin")

	cfg, err := LoadConfig(newTestViper())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Driver != "postgres" || cfg.Table != "customers" || cfg.Target.Table != "customers" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.BatchSize != 50 {
		t.Errorf("BatchSize = %d, want 50", cfg.BatchSize)
	}
	if cfg.Location().String() != "Europe/Berlin" {
		t.Errorf("Location = %s", cfg.Location())
	}

	src := cfg.Conn(cfg.Source)
	if src.Port != 5432 || src.Host != "src.internal" || src.TLS.Mode != "true" {
		t.Errorf("unexpected source conn: %+v", src)
	}
	if dst := cfg.Conn(cfg.Target); dst.Port != 6543 || dst.Password != "" {
		t.Errorf("unexpected target conn: %+v", dst)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	setNetworkEnv(t)
	cfg, err := LoadConfig(newTestViper())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.BatchSize != 500 || cfg.Timezone != "UTC" || cfg.Log.File != "db_mirror.log" ||
		cfg.Report.Format != "text" || cfg.Strict {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadConfig_ReportsAllMissing(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("SOURCE_DB_HOST", "src")

	_, err := LoadConfig(newTestViper())
	if err == nil {
		t.Fatal("expected a validation error")
	}
	for _, want := range []string{"TABLE_NAME", "SOURCE_DB_USER", "SOURCE_DB_PASSWORD", "TARGET_DB_HOST", "TARGET_DB_PASSWORD"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
	if strings.Contains(err.Error(), "SOURCE_DB_HOST") {
		t.Errorf("SOURCE_DB_HOST is set but reported missing: %v", err)
	}
}

func TestLoadConfig_EmptyTargetPasswordMustBeSet(t *testing.T) {
	setNetworkEnv(t)
	os.Unsetenv("TARGET_DB_PASSWORD")

	_, err := LoadConfig(newTestViper())
	if err == nil || !strings.Contains(err.Error(), "TARGET_DB_PASSWORD") {
		t.Errorf("expected TARGET_DB_PASSWORD to be required, got %v", err)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"driver", map[string]string{"DB_DRIVER": "db2"}, "unsupported driver"},
		{"batch size", map[string]string{"MIRROR_BATCH_SIZE": "0"}, "batch_size"},
		{"timezone", map[string]string{"MIRROR_TIMEZONE": "Mars/Olympus"}, "invalid timezone"},
		{"report format", map[string]string{"MIRROR_REPORT_FORMAT": "xml"}, "report format"},
		{"tls mode", map[string]string{"DB_TLS_MODE": "maybe"}, "invalid tls mode"},
		{"custom tls without ca", map[string]string{"DB_TLS_MODE": "custom"}, "DB_TLS_CA_FILE"},
		{"insecure not allowed", map[string]string{"DB_TLS_MODE": "false"}, "DB_TLS_ALLOW_INSECURE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setNetworkEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(newTestViper())
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadConfig_InsecureAllowed(t *testing.T) {
	setNetworkEnv(t)
	t.Setenv("DB_TLS_MODE", "false")
	t.Setenv("DB_TLS_ALLOW_INSECURE", "true")
	if _, err := LoadConfig(newTestViper()); err != nil {
		t.Errorf("LoadConfig failed: %v", err)
	}
}

func TestLoadConfig_SqliteNeedsOnlyPaths(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SOURCE_DB_NAME", "src.db")
	t.Setenv("TARGET_DB_NAME", "dst.db")
	t.Setenv("TABLE_NAME", "people")
	t.Setenv("DB_TLS_MODE", "false")

	if _, err := LoadConfig(newTestViper()); err != nil {
		t.Errorf("LoadConfig failed: %v", err)
	}
}

func TestLoadDotEnv_LowestPrecedence(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "DB_DRIVER=sqlite\nTABLE_NAME=from_dotenv\nSOURCE_DB_NAME=src.db\nTARGET_DB_NAME=dst.db\nMIRROR_BATCH_SIZE=25\n"
	if err := os.WriteFile(envPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TABLE_NAME", "from_env")

	v := newTestViper()
	if err := loadDotEnv(v, envPath); err != nil {
		t.Fatalf("loadDotEnv failed: %v", err)
	}
	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Table != "from_env" {
		t.Errorf("real environment must win over .env, got table %q", cfg.Table)
	}
	if cfg.Driver != "sqlite" || cfg.BatchSize != 25 {
		t.Errorf(".env values must override defaults: %+v", cfg)
	}
}

func TestLoadDotEnv_MissingFileIsIgnored(t *testing.T) {
	if err := loadDotEnv(newTestViper(), filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("expected no error for a missing file, got %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.log")
	l, f, err := newLogger(path, "json", "debug")
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	l.Debug("hello", "k", "v")
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("log file missing entry: %s", data)
	}

	if _, _, err := newLogger("", "xml", "info"); err == nil {
		t.Error("expected an error for an unknown format")
	}
	if _, _, err := newLogger("", "text", "loud"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestSchemaFor_MysqlUsesEachSidesDatabase(t *testing.T) {
	setNetworkEnv(t)
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("SOURCE_DB_NAME", "shop")
	t.Setenv("TARGET_DB_NAME", "shop_mirror")
	t.Setenv("DB_SCHEMA", "ignored")

	cfg, err := LoadConfig(newTestViper())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got := cfg.SchemaFor(cfg.Source); got != "shop" {
		t.Errorf("source schema = %q, want shop", got)
	}
	if got := cfg.SchemaFor(cfg.Target); got != "shop_mirror" {
		t.Errorf("target schema = %q, want shop_mirror", got)
	}
}

func TestSchemaFor_OtherDriversUseConfiguredSchema(t *testing.T) {
	setNetworkEnv(t)
	t.Setenv("DB_SCHEMA", "sales")

	cfg, err := LoadConfig(newTestViper())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.SchemaFor(cfg.Source) != "sales" || cfg.SchemaFor(cfg.Target) != "sales" {
		t.Errorf("expected both sides in sales, got %q and %q", cfg.SchemaFor(cfg.Source), cfg.SchemaFor(cfg.Target))
	}
	if got := cfg.QualifiedTarget(); got != "sales.customers" {
		t.Errorf("QualifiedTarget = %q, want sales.customers", got)
	}
}
