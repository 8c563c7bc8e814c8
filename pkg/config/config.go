package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Flags holds parsed command-line flag values and which were explicitly set.
type Flags struct {
	LogDir   string
	Frontend string
	Admin    string
	Config   string
	Set      map[string]bool
}

// EnvResult records whether any recognized environment variable was set.
type EnvResult struct {
	EnvUsed bool
}

// EffectiveConfigResult is the outcome of resolving flags/env/file/defaults
// into one Config, along with which source won.
type EffectiveConfigResult struct {
	Config *Config
	DBPath string
	Source string // "flags", "config", "env", or "defaults"
}

// ParseConfigFlags defines and parses the command-line flags every
// cmd/logd invocation accepts.
func ParseConfigFlags() Flags {
	logDirPtr := flag.String("log-dir", "", "commit log directory")
	frontendPtr := flag.String("frontend-addr", "", "frontend TCP listen address")
	adminPtr := flag.String("admin-addr", "", "admin HTTP listen address")
	cfgPtr := flag.String("config", "./config.yaml", "path to YAML config file")
	flag.Parse()

	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return Flags{LogDir: *logDirPtr, Frontend: *frontendPtr, Admin: *adminPtr, Config: *cfgPtr, Set: setFlags}
}

// Load reads and parses a YAML config file, starting from Default() so
// any field the file omits keeps its documented default.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// ParseConfigFile resolves the config path (flag wins over env) and loads
// it. A missing file is not an error — callers fall back to defaults/env.
func ParseConfigFile(flags Flags) (*Config, bool, error) {
	path := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

// ResolveConfigPath decides the config file path using the flag-provided
// value and the ASYNCLOGD_CONFIG environment variable when the flag was
// not explicitly set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("ASYNCLOGD_CONFIG"); p != "" {
		return p
	}
	return flagPath
}

// ParseConfigEnvs reads environment variables into a config overlay
// starting from Default(), and reports whether any recognized variable
// was present.
func ParseConfigEnvs() (*Config, EnvResult) {
	cfg := Default()
	envUsed := false

	setStr := func(dst *string, name string) {
		if v := os.Getenv(name); v != "" {
			envUsed = true
			*dst = v
		}
	}
	setInt := func(dst *int, name string) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				envUsed = true
				*dst = n
			}
		}
	}
	setFloat := func(dst *float64, name string) {
		if v := os.Getenv(name); v != "" {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				envUsed = true
				*dst = f
			}
		}
	}
	setBool := func(dst *bool, name string) {
		if v := os.Getenv(name); v != "" {
			envUsed = true
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "1", "true", "yes":
				*dst = true
			default:
				*dst = false
			}
		}
	}
	setSize := func(dst *SizeBytes, name string) {
		if v := os.Getenv(name); v != "" {
			var s SizeBytes
			if err := (&s).UnmarshalYAML(&yaml.Node{Value: v}); err == nil {
				envUsed = true
				*dst = s
			}
		}
	}
	setDuration := func(dst *Duration, name string) {
		if v := os.Getenv(name); v != "" {
			var d Duration
			if err := (&d).UnmarshalYAML(&yaml.Node{Value: v}); err == nil {
				envUsed = true
				*dst = d
			}
		}
	}

	setStr(&cfg.Engine.LogDir, "ASYNCLOGD_LOG_DIR")
	setInt(&cfg.Engine.IndexMaxItems, "ASYNCLOGD_INDEX_MAX_ITEMS")
	setSize(&cfg.Engine.SegmentMaxBytes, "ASYNCLOGD_SEGMENT_MAX_BYTES")
	setDuration(&cfg.Engine.FlushInterval, "ASYNCLOGD_FLUSH_INTERVAL")
	setInt(&cfg.Engine.PoolCapacity, "ASYNCLOGD_POOL_CAPACITY")
	setSize(&cfg.Engine.PoolBufInitialBytes, "ASYNCLOGD_POOL_BUF_INITIAL_BYTES")

	setStr(&cfg.Frontend.Address, "ASYNCLOGD_FRONTEND_ADDRESS")
	setFloat(&cfg.Frontend.MaxRequestsPerSec, "ASYNCLOGD_FRONTEND_MAX_REQUESTS_PER_SEC")
	setInt(&cfg.Frontend.MaxRequestsBurst, "ASYNCLOGD_FRONTEND_MAX_REQUESTS_BURST")

	setStr(&cfg.Admin.Address, "ASYNCLOGD_ADMIN_ADDRESS")
	setStr(&cfg.Admin.DocsDir, "ASYNCLOGD_ADMIN_DOCS_DIR")

	setBool(&cfg.Retention.Enabled, "ASYNCLOGD_RETENTION_ENABLED")
	setStr(&cfg.Retention.Cron, "ASYNCLOGD_RETENTION_CRON")
	setInt(&cfg.Retention.KeepSegments, "ASYNCLOGD_RETENTION_KEEP_SEGMENTS")

	return &cfg, EnvResult{EnvUsed: envUsed}
}

// LoadEffectiveConfig applies a flags > config file > env > defaults
// precedence policy and returns the single config that wins, annotating
// which source was used.
//
// An explicit --config always requires that file to exist. Otherwise, any
// explicitly-set flag (log-dir/frontend-addr/admin-addr) overrides the
// corresponding field on top of whichever of file/env/defaults applies;
// fileCfg wins over envCfg when both exist ("prefer file, fall back to
// env" ordering).
func LoadEffectiveConfig(flags Flags, fileCfg *Config, fileExists bool, envCfg *Config, envRes EnvResult) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult

	if flags.Set["config"] && !fileExists {
		return res, fmt.Errorf("config file %s not found", flags.Config)
	}

	base := Default()
	source := "defaults"
	switch {
	case fileExists:
		base = *fileCfg
		source = "config"
	case envRes.EnvUsed:
		base = *envCfg
		source = "env"
	}

	if flags.Set["log-dir"] {
		base.Engine.LogDir = flags.LogDir
		source = "flags"
	}
	if flags.Set["frontend-addr"] {
		base.Frontend.Address = flags.Frontend
		source = "flags"
	}
	if flags.Set["admin-addr"] {
		base.Admin.Address = flags.Admin
		source = "flags"
	}

	res.Config = &base
	res.DBPath = base.Engine.LogDir
	res.Source = source
	return res, nil
}
