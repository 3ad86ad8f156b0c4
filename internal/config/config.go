package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full startup configuration for the probedge core.
type Config struct {
	Symbols  []string       `yaml:"symbols"`
	Paths    PathsConfig    `yaml:"paths"`
	Risk     RiskConfig     `yaml:"risk"`
	Cutovers CutoversConfig `yaml:"cutovers"`
	Picker   PickerConfig   `yaml:"picker"`
	Log      LogConfig      `yaml:"log"`

	// MetricsAddr is where the internal Prometheus registry is served
	// read-only. Load turns an empty value into ":9090"; a Config whose
	// MetricsAddr is empty runs without the metrics server.
	MetricsAddr string `yaml:"metrics_addr"`

	// Mode, DataDir, EnableAgg5, ResetState are populated from the
	// environment (MODE, DATA_DIR, ENABLE_AGG5, RESET_STATE) by
	// applyEnvOverrides, not from YAML.
	Mode       string `yaml:"-"`
	DataDir    string `yaml:"-"`
	EnableAgg5 bool   `yaml:"-"`
	ResetState bool   `yaml:"-"`
}

// PathsConfig is where the core reads input CSVs and writes artifacts.
type PathsConfig struct {
	Intraday string `yaml:"intraday"`
	Masters  string `yaml:"masters"`
	Journal  string `yaml:"journal"`
	State    string `yaml:"state"`
}

// RiskConfig controls position sizing and the daily loss guard.
type RiskConfig struct {
	DailyRs   float64 `yaml:"daily_rs"`
	PerTradeRs float64 `yaml:"per_trade_rs"`
	RAtrMult  float64 `yaml:"r_atr_mult"`
}

// CutoversConfig holds the hard IST cutover times, as "HH:MM:SS" strings.
type CutoversConfig struct {
	PDC        string `yaml:"pdc"`
	OL         string `yaml:"ol"`
	OT         string `yaml:"ot"`
	EODFlatten string `yaml:"eod_flatten"`
}

// PickerConfig tunes the frequency-table picker.
type PickerConfig struct {
	NminL3      int     `yaml:"nmin_l3"`
	NminL2      int     `yaml:"nmin_l2"`
	NminL1      int     `yaml:"nmin_l1"`
	ConfMin     float64 `yaml:"conf_min"`
	TRGuardConf float64 `yaml:"tr_guard_conf"`
	OTThreshold float64 `yaml:"ot_threshold"`
}

// LogConfig controls the format and level of slog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML config at path, overlays an optional .env file,
// applies environment-variable overrides, then fills in defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// MustParseCutover parses one of the CutoversConfig strings into a
// time.Duration offset from midnight.
func MustParseCutover(hms string) time.Duration {
	t, err := time.Parse("15:04:05", hms)
	if err != nil {
		panic(fmt.Sprintf("config: invalid cutover %q: %v", hms, err))
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("ENABLE_AGG5"); v != "" {
		cfg.EnableAgg5 = v == "1" || v == "true"
	}
	if v := os.Getenv("RESET_STATE"); v != "" {
		cfg.ResetState = v == "1" || v == "true"
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Mode == "" {
		cfg.Mode = "PAPER"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "."
	}
	if cfg.Paths.Intraday == "" {
		cfg.Paths.Intraday = "intraday"
	}
	if cfg.Paths.Masters == "" {
		cfg.Paths.Masters = "masters"
	}
	if cfg.Paths.Journal == "" {
		cfg.Paths.Journal = "journal.db"
	}
	if cfg.Paths.State == "" {
		cfg.Paths.State = "live_state.json"
	}
	if cfg.Risk.DailyRs <= 0 {
		cfg.Risk.DailyRs = 10000
	}
	if cfg.Risk.PerTradeRs <= 0 {
		cfg.Risk.PerTradeRs = 1000
	}
	if cfg.Risk.RAtrMult <= 0 {
		cfg.Risk.RAtrMult = 1.0
	}
	if cfg.Cutovers.PDC == "" {
		cfg.Cutovers.PDC = "09:25:00"
	}
	if cfg.Cutovers.OL == "" {
		cfg.Cutovers.OL = "09:30:00"
	}
	if cfg.Cutovers.OT == "" {
		cfg.Cutovers.OT = "09:40:01"
	}
	if cfg.Cutovers.EODFlatten == "" {
		cfg.Cutovers.EODFlatten = "15:05:00"
	}
	if cfg.Picker.NminL3 <= 0 {
		cfg.Picker.NminL3 = 8
	}
	if cfg.Picker.NminL2 <= 0 {
		cfg.Picker.NminL2 = 12
	}
	if cfg.Picker.NminL1 <= 0 {
		cfg.Picker.NminL1 = 20
	}
	if cfg.Picker.ConfMin <= 0 {
		cfg.Picker.ConfMin = 0.55
	}
	if cfg.Picker.TRGuardConf <= 0 {
		cfg.Picker.TRGuardConf = 0.65
	}
	if cfg.Picker.OTThreshold <= 0 {
		cfg.Picker.OTThreshold = 0.003
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = ":9090"
	}
}
