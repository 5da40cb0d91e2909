package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	ModeRemote = "remote"
	ModeDemo   = "demo"
)

// EnvPrefix prefixes every environment override, e.g. SHIFTREPORT_OCR_API_KEY.
const EnvPrefix = "SHIFTREPORT"

// Config models shiftreport.yml.
type Config struct {
	Mode     string   `yaml:"mode"`
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Storage  Storage  `yaml:"storage"`
	Demo     Demo     `yaml:"demo"`
	Auth     Auth     `yaml:"auth"`
	OCR      OCR      `yaml:"ocr"`
	PDF      PDF      `yaml:"pdf"`
	Log      Log      `yaml:"log"`
}

type Server struct {
	Addr     string `yaml:"addr"`
	BasePath string `yaml:"base_path"`
}

type Database struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type Storage struct {
	Kind            string `yaml:"kind"`
	Dir             string `yaml:"dir"`
	PublicBaseURL   string `yaml:"public_base_url"`
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"`
}

type Demo struct {
	DSN           string `yaml:"dsn"`
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`
	AdminName     string `yaml:"admin_name"`
}

type Auth struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type OCR struct {
	APIKey        string   `yaml:"api_key"`
	Model         string   `yaml:"model"`
	BannedTerms   []string `yaml:"banned_terms"`
	QualityFactor float64  `yaml:"quality_factor"`
}

type PDF struct {
	FontPath     string       `yaml:"font_path"`
	BoldFontPath string       `yaml:"bold_font_path"`
	Timezone     string       `yaml:"timezone"`
	Organization Organization `yaml:"organization"`
}

type Organization struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Tel     string `yaml:"tel"`
	Fax     string `yaml:"fax"`
}

type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Mode:     ModeRemote,
		Server:   Server{Addr: "127.0.0.1:8080", BasePath: "/v1"},
		Database: Database{Driver: "sqlite"},
		Storage:  Storage{Kind: "dir"},
		Auth:     Auth{TokenTTL: 24 * time.Hour},
		OCR:      OCR{Model: "gemini-2.5-flash", QualityFactor: 0.85},
		PDF:      PDF{Timezone: "Asia/Tokyo"},
		Log:      Log{Level: "info"},
	}
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeRemote, ModeDemo:
	default:
		return fmt.Errorf("config.mode must be %q or %q", ModeRemote, ModeDemo)
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("config.database.driver %q not supported", c.Database.Driver)
	}
	if c.Database.Driver == "mysql" && c.Database.DSN == "" {
		return fmt.Errorf("config.database.dsn is required for mysql")
	}
	switch c.Storage.Kind {
	case "dir":
	case "firebase":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("config.storage.bucket is required for firebase storage")
		}
	default:
		return fmt.Errorf("config.storage.kind %q not supported", c.Storage.Kind)
	}
	if !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("config.auth.token_ttl must be positive")
	}
	if c.OCR.QualityFactor <= 0 || c.OCR.QualityFactor > 1 {
		return fmt.Errorf("config.ocr.quality_factor must be in (0, 1]")
	}
	if _, err := time.LoadLocation(c.PDF.Timezone); err != nil {
		return fmt.Errorf("config.pdf.timezone: %w", err)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level %q not supported", c.Log.Level)
	}
	return nil
}

// Location returns the zone used for zone-less input and printed dates.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.PDF.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "shiftreport.yml")
}

// FromYAML parses config over the defaults and validates it.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads <workspace>/.env and the config file, then applies SHIFTREPORT_*
// environment overrides. path overrides the default file location; a missing
// file means defaults.
func Load(workspace, path string) (*Config, error) {
	if workspace == "" {
		workspace = "."
	}
	envFile := filepath.Join(workspace, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	if path == "" {
		path = Path(workspace)
	}
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config yaml %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	strs := map[string]*string{
		"mode":                     &c.Mode,
		"server.addr":              &c.Server.Addr,
		"server.base_path":         &c.Server.BasePath,
		"database.driver":          &c.Database.Driver,
		"database.dsn":             &c.Database.DSN,
		"storage.kind":             &c.Storage.Kind,
		"storage.dir":              &c.Storage.Dir,
		"storage.public_base_url":  &c.Storage.PublicBaseURL,
		"storage.bucket":           &c.Storage.Bucket,
		"storage.credentials_file": &c.Storage.CredentialsFile,
		"demo.dsn":                 &c.Demo.DSN,
		"demo.admin_email":         &c.Demo.AdminEmail,
		"demo.admin_password":      &c.Demo.AdminPassword,
		"demo.admin_name":          &c.Demo.AdminName,
		"auth.jwt_secret":          &c.Auth.JWTSecret,
		"ocr.api_key":              &c.OCR.APIKey,
		"ocr.model":                &c.OCR.Model,
		"pdf.font_path":            &c.PDF.FontPath,
		"pdf.bold_font_path":       &c.PDF.BoldFontPath,
		"pdf.timezone":             &c.PDF.Timezone,
		"pdf.organization.name":    &c.PDF.Organization.Name,
		"pdf.organization.address": &c.PDF.Organization.Address,
		"pdf.organization.tel":     &c.PDF.Organization.Tel,
		"pdf.organization.fax":     &c.PDF.Organization.Fax,
		"log.level":                &c.Log.Level,
	}
	for key, dst := range strs {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	if v.IsSet("auth.token_ttl") {
		ttl, err := time.ParseDuration(v.GetString("auth.token_ttl"))
		if err != nil {
			return fmt.Errorf("%s_AUTH_TOKEN_TTL: %w", EnvPrefix, err)
		}
		c.Auth.TokenTTL = ttl
	}
	if v.IsSet("ocr.quality_factor") {
		c.OCR.QualityFactor = v.GetFloat64("ocr.quality_factor")
	}
	if v.IsSet("ocr.banned_terms") {
		c.OCR.BannedTerms = splitList(v.GetString("ocr.banned_terms"))
	}
	if v.IsSet("log.json") {
		c.Log.JSON = v.GetBool("log.json")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Template is the commented starter file written by `shiftreport init`.
const Template = `# shiftreport configuration. Every key can be overridden with
# SHIFTREPORT_<SECTION>_<KEY>, e.g. SHIFTREPORT_OCR_API_KEY.
mode: remote            # remote | demo

server:
  addr: 127.0.0.1:8080
  base_path: /v1

database:
  driver: sqlite        # sqlite | mysql
  dsn: ""               # default: .shiftreport/shiftreport.db

storage:
  kind: dir             # dir | firebase
  dir: ""               # default: .shiftreport/photos
  public_base_url: ""
  bucket: ""
  credentials_file: ""

demo:
  dsn: ""               # default: .shiftreport/demo.db
  admin_email: admin@celutrust.co.jp
  admin_password: admin123

auth:
  jwt_secret: ""
  token_ttl: 24h

ocr:
  api_key: ""
  model: gemini-2.5-flash
  quality_factor: 0.85

pdf:
  font_path: ""         # japanese .ttf; default: first installed IPAex/IPA/Takao/VL Gothic
  bold_font_path: ""
  timezone: Asia/Tokyo
  organization:
    name: セリュートラスト株式会社

log:
  level: info
  json: false
`
