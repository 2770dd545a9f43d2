package configparser

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Name    string        `env:"CPTEST_NAME" default:"dispatch"`
	Port    int           `env:"CPTEST_PORT" default:"3000"`
	Debug   bool          `env:"CPTEST_DEBUG" default:"false"`
	Ratio   float64       `env:"CPTEST_RATIO" default:"0.85"`
	Timeout time.Duration `env:"CPTEST_TIMEOUT" default:"15m"`

	Nested struct {
		Host string `env:"CPTEST_NESTED_HOST" default:"localhost"`
	}
}

func clearTestEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CPTEST_NAME", "CPTEST_PORT", "CPTEST_DEBUG",
		"CPTEST_RATIO", "CPTEST_TIMEOUT", "CPTEST_NESTED_HOST",
	} {
		os.Unsetenv(key)
	}
}

func TestParseEnv_Defaults(t *testing.T) {
	clearTestEnv(t)

	var cfg testConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatal(err)
	}

	if cfg.Name != "dispatch" || cfg.Port != 3000 || cfg.Debug {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Ratio != 0.85 {
		t.Fatalf("want ratio 0.85, got %v", cfg.Ratio)
	}
	if cfg.Timeout != 15*time.Minute {
		t.Fatalf("want 15m timeout, got %v", cfg.Timeout)
	}
	if cfg.Nested.Host != "localhost" {
		t.Fatalf("nested defaults not applied: %+v", cfg.Nested)
	}
}

func TestParseEnv_EnvironmentWinsOverDefault(t *testing.T) {
	clearTestEnv(t)
	t.Setenv("CPTEST_PORT", "8080")
	t.Setenv("CPTEST_TIMEOUT", "30s")

	var cfg testConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 8080 {
		t.Fatalf("want port 8080, got %d", cfg.Port)
	}
	if cfg.Timeout != 30*time.Second {
		t.Fatalf("want 30s timeout, got %v", cfg.Timeout)
	}
}

func TestParseEnv_InvalidValue(t *testing.T) {
	clearTestEnv(t)
	t.Setenv("CPTEST_PORT", "not-a-number")

	var cfg testConfig
	if err := ParseEnv(&cfg); err == nil {
		t.Fatal("expected an error for a non-numeric port")
	}
}

func TestParseEnv_RejectsNonPointer(t *testing.T) {
	var cfg testConfig
	if err := ParseEnv(cfg); err == nil {
		t.Fatal("expected an error for a non-pointer config")
	}
}

func TestLoadYamlFile_SectionsAndSubstitution(t *testing.T) {
	clearTestEnv(t)
	os.Unsetenv("CPYAML_DATABASE_HOST")
	os.Unsetenv("CPYAML_DATABASE_PORT")
	os.Unsetenv("CPYAML_LOG_LEVEL")
	t.Setenv("CPTEST_SUBST", "from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `# dispatch config
cpyaml_database:
  host: db.internal
  port: 5432
cpyaml_log:
  level: "${CPTEST_SUBST:-INFO}"
  missing: ${CPTEST_ABSENT:-DEBUG}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := LoadYamlFile(path); err != nil {
		t.Fatal(err)
	}

	if got := os.Getenv("CPYAML_DATABASE_HOST"); got != "db.internal" {
		t.Fatalf("want db.internal, got %q", got)
	}
	if got := os.Getenv("CPYAML_DATABASE_PORT"); got != "5432" {
		t.Fatalf("want 5432, got %q", got)
	}
	if got := os.Getenv("CPYAML_LOG_LEVEL"); got != "from-env" {
		t.Fatalf("substitution should prefer the live env var, got %q", got)
	}
	if got := os.Getenv("CPYAML_LOG_MISSING"); got != "DEBUG" {
		t.Fatalf("substitution should fall back to the default, got %q", got)
	}

	os.Unsetenv("CPYAML_DATABASE_HOST")
	os.Unsetenv("CPYAML_DATABASE_PORT")
	os.Unsetenv("CPYAML_LOG_LEVEL")
	os.Unsetenv("CPYAML_LOG_MISSING")
}

func TestLoadYamlFile_ExistingEnvWins(t *testing.T) {
	t.Setenv("CPYAML_APP_NAME", "already-set")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "cpyaml_app:\n  name: from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := LoadYamlFile(path); err != nil {
		t.Fatal(err)
	}

	if got := os.Getenv("CPYAML_APP_NAME"); got != "already-set" {
		t.Fatalf("environment must win over the file, got %q", got)
	}
}

func TestLoadAndParseEnv_EmptyPathSkipsFile(t *testing.T) {
	clearTestEnv(t)

	var cfg testConfig
	if err := LoadAndParseEnv("", &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "dispatch" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}
