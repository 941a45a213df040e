package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/schedctl/internal/env"
	"github.com/loykin/schedctl/internal/logger"
)

// EnvPrefix prefixes environment overrides: server.listen -> SCHEDCTL_SERVER_LISTEN.
const EnvPrefix = "SCHEDCTL"

// Scheduler modes.
const (
	ModeProcess   = "process"
	ModeContainer = "container"
)

// Container liveness probes.
const (
	ProbeCLI = "cli"
	ProbeAPI = "api"
)

// Config is the top-level TOML structure of the service.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logs      LogsConfig      `mapstructure:"logs"`
	Settings  SettingsConfig  `mapstructure:"settings"`
	History   HistoryConfig   `mapstructure:"history"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`

	// File is the absolute path of the loaded file, empty when none was read.
	File string `mapstructure:"-"`
}

type ServerConfig struct {
	Listen    string     `mapstructure:"listen"`
	BasePath  string     `mapstructure:"base_path"`
	StaticDir string     `mapstructure:"static_dir"`
	PIDFile   string     `mapstructure:"pidfile"`
	LogFile   string     `mapstructure:"logfile"`
	TLS       *TLSConfig `mapstructure:"tls"`
}

// TLSConfig configures HTTPS for the control plane.
type TLSConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	CertFile     string `mapstructure:"cert_file"`
	KeyFile      string `mapstructure:"key_file"`
	Dir          string `mapstructure:"dir"`           // holds tls.crt/tls.key
	AutoGenerate bool   `mapstructure:"auto_generate"` // self-signed pair in Dir when absent
	MinVersion   string `mapstructure:"min_version"`
	MaxVersion   string `mapstructure:"max_version"`
}

type SchedulerConfig struct {
	Name         string          `mapstructure:"name"`
	Mode         string          `mapstructure:"mode"`
	Command      string          `mapstructure:"command"`
	WorkDir      string          `mapstructure:"work_dir"`
	Env          []string        `mapstructure:"env"`
	EnvFiles     []string        `mapstructure:"env_files"`
	UseOSEnv     bool            `mapstructure:"use_os_env"`
	Grace        time.Duration   `mapstructure:"grace"`
	StopTimeout  time.Duration   `mapstructure:"stop_timeout"`
	StopCommand  string          `mapstructure:"stop_command"`
	ProbeCommand string          `mapstructure:"probe_command"`
	Registry     string          `mapstructure:"registry"`
	CaptureBytes int             `mapstructure:"capture_bytes"`
	Log          SchedulerLog    `mapstructure:"log"`
	Container    ContainerConfig `mapstructure:"container"`
}

// SchedulerLog is where the scheduler's stdout/stderr go in process mode.
type SchedulerLog struct {
	Dir        string `mapstructure:"dir"`
	Stdout     string `mapstructure:"stdout"`
	Stderr     string `mapstructure:"stderr"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type ContainerConfig struct {
	CLI        string   `mapstructure:"cli"`
	Name       string   `mapstructure:"name"`
	StartArgs  []string `mapstructure:"start_args"`
	StopArgs   []string `mapstructure:"stop_args"`
	Probe      string   `mapstructure:"probe"`
	DockerHost string   `mapstructure:"docker_host"`
	LogTail    int      `mapstructure:"log_tail"`
}

type LogsConfig struct {
	Dir         string `mapstructure:"dir"`
	Ext         string `mapstructure:"ext"`
	SummaryFile string `mapstructure:"summary_file"`
	DateFile    string `mapstructure:"date_file"` // relative to dir; base name is a time layout
	TailFile    string `mapstructure:"tail_file"` // defaults to the scheduler stdout log
	TailLines   int    `mapstructure:"tail_lines"`
}

type SettingsConfig struct {
	Path string `mapstructure:"path"`
}

type HistoryConfig struct {
	Sinks []string `mapstructure:"sinks"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LogConfig configures the service's own logger.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Color      bool   `mapstructure:"color"`
	TimeStamps bool   `mapstructure:"timestamps"`
	Source     bool   `mapstructure:"source"`
	File       string `mapstructure:"file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "127.0.0.1:6001")
	v.SetDefault("server.base_path", "/api")
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.pidfile", "")
	v.SetDefault("server.logfile", "")
	v.SetDefault("server.tls.enabled", false)
	v.SetDefault("server.tls.cert_file", "")
	v.SetDefault("server.tls.key_file", "")
	v.SetDefault("server.tls.dir", "")
	v.SetDefault("server.tls.auto_generate", false)
	v.SetDefault("server.tls.min_version", "")
	v.SetDefault("server.tls.max_version", "")

	v.SetDefault("scheduler.name", "scheduler")
	v.SetDefault("scheduler.mode", ModeProcess)
	v.SetDefault("scheduler.command", "")
	v.SetDefault("scheduler.work_dir", "")
	v.SetDefault("scheduler.env", []string{})
	v.SetDefault("scheduler.env_files", []string{})
	v.SetDefault("scheduler.use_os_env", true)
	v.SetDefault("scheduler.grace", "2s")
	v.SetDefault("scheduler.stop_timeout", "10s")
	v.SetDefault("scheduler.stop_command", "")
	v.SetDefault("scheduler.probe_command", "")
	v.SetDefault("scheduler.registry", "run/scheduler.pid")
	v.SetDefault("scheduler.capture_bytes", 64<<10)
	v.SetDefault("scheduler.log.dir", "")
	v.SetDefault("scheduler.log.stdout", "logs/scheduler.log")
	v.SetDefault("scheduler.log.stderr", "logs/scheduler.log")
	v.SetDefault("scheduler.log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("scheduler.log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("scheduler.log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("scheduler.log.compress", false)
	v.SetDefault("scheduler.container.cli", "docker")
	v.SetDefault("scheduler.container.name", "scheduler")
	v.SetDefault("scheduler.container.start_args", []string{})
	v.SetDefault("scheduler.container.stop_args", []string{})
	v.SetDefault("scheduler.container.probe", ProbeCLI)
	v.SetDefault("scheduler.container.docker_host", "")
	v.SetDefault("scheduler.container.log_tail", 100)

	v.SetDefault("logs.dir", "logs")
	v.SetDefault("logs.ext", ".txt")
	v.SetDefault("logs.summary_file", "logs/service.log")
	v.SetDefault("logs.date_file", "logs/lama-02-01-06.log")
	v.SetDefault("logs.tail_file", "")
	v.SetDefault("logs.tail_lines", 100)

	v.SetDefault("settings.path", "settings.ini")
	v.SetDefault("history.sinks", []string{})
	v.SetDefault("metrics.enabled", false)

	v.SetDefault("log.level", logger.LevelInfo)
	v.SetDefault("log.format", logger.FormatText)
	v.SetDefault("log.color", false)
	v.SetDefault("log.timestamps", true)
	v.SetDefault("log.source", false)
	v.SetDefault("log.file", "")
}

// Load reads path (TOML) when given, applies SCHEDCTL_* environment
// overrides on top of the defaults, resolves relative paths against the
// file's directory and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	base, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	var file string
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if abs, err := filepath.Abs(path); err == nil {
			file = abs
			base = filepath.Dir(abs)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = file
	cfg.resolvePaths(base)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) resolvePaths(base string) {
	abs := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) && !strings.Contains(*p, "://") {
			*p = filepath.Join(base, *p)
		}
	}
	abs(&c.Server.StaticDir)
	abs(&c.Server.PIDFile)
	abs(&c.Server.LogFile)
	if c.Server.TLS != nil {
		abs(&c.Server.TLS.CertFile)
		abs(&c.Server.TLS.KeyFile)
		abs(&c.Server.TLS.Dir)
	}
	abs(&c.Scheduler.WorkDir)
	abs(&c.Scheduler.Log.Dir)
	abs(&c.Scheduler.Log.Stdout)
	abs(&c.Scheduler.Log.Stderr)
	for i := range c.Scheduler.EnvFiles {
		abs(&c.Scheduler.EnvFiles[i])
	}
	if r := c.Scheduler.Registry; strings.HasPrefix(r, "file://") {
		p := strings.TrimPrefix(r, "file://")
		abs(&p)
		c.Scheduler.Registry = "file://" + p
	} else {
		abs(&c.Scheduler.Registry)
	}
	abs(&c.Logs.Dir)
	if d := c.Logs.DateFile; d != "" && !filepath.IsAbs(d) {
		c.Logs.DateFile = filepath.Join(c.Logs.Dir, d)
	}
	abs(&c.Logs.SummaryFile)
	abs(&c.Logs.TailFile)
	abs(&c.Settings.Path)
	abs(&c.Log.File)
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Listen) == "" {
		errs = append(errs, errors.New("server.listen is required"))
	}
	if bp := c.Server.BasePath; bp != "" && !strings.HasPrefix(bp, "/") {
		errs = append(errs, fmt.Errorf("server.base_path %q must start with /", bp))
	}
	if t := c.Server.TLS; t != nil && t.Enabled {
		if (t.CertFile == "" || t.KeyFile == "") && t.Dir == "" {
			errs = append(errs, errors.New("server.tls requires cert_file and key_file, or dir"))
		}
	}
	if strings.TrimSpace(c.Scheduler.Name) == "" {
		errs = append(errs, errors.New("scheduler.name is required"))
	}
	switch c.Scheduler.Mode {
	case ModeProcess:
		if strings.TrimSpace(c.Scheduler.Command) == "" {
			errs = append(errs, errors.New("scheduler.command is required in process mode"))
		}
	case ModeContainer:
		switch c.Scheduler.Container.Probe {
		case ProbeCLI, ProbeAPI:
		default:
			errs = append(errs, fmt.Errorf("unknown scheduler.container.probe %q (want %s or %s)", c.Scheduler.Container.Probe, ProbeCLI, ProbeAPI))
		}
		if strings.TrimSpace(c.Scheduler.Container.Name) == "" {
			errs = append(errs, errors.New("scheduler.container.name is required in container mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown scheduler.mode %q (want %s or %s)", c.Scheduler.Mode, ModeProcess, ModeContainer))
	}
	if c.Scheduler.Registry == "" {
		errs = append(errs, errors.New("scheduler.registry is required"))
	}
	return errors.Join(errs...)
}

// SchedulerFileConfig maps scheduler.log to the logger's writer config.
func (c *Config) SchedulerFileConfig() logger.FileConfig {
	l := c.Scheduler.Log
	return logger.FileConfig{
		Dir:        l.Dir,
		StdoutPath: l.Stdout,
		StderrPath: l.Stderr,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
	}
}

// TailFile is the file served by the scheduler log endpoint.
func (c *Config) TailFile() string {
	if c.Logs.TailFile != "" {
		return c.Logs.TailFile
	}
	if c.Scheduler.Log.Stdout != "" {
		return c.Scheduler.Log.Stdout
	}
	if c.Scheduler.Log.Dir != "" {
		return filepath.Join(c.Scheduler.Log.Dir, c.Scheduler.Name+".stdout.log")
	}
	return filepath.Join(c.Logs.Dir, c.Scheduler.Name+".log")
}

// SlogConfig maps [log] to the logger's slog config.
func (c *Config) SlogConfig() logger.SlogConfig {
	return logger.SlogConfig{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		Color:      c.Log.Color,
		TimeStamps: c.Log.TimeStamps,
		Source:     c.Log.Source,
		File:       c.Log.File,
	}
}

// SchedulerEnv composes the scheduler environment: the OS environment when
// use_os_env is set, then env_files in order, then the env list.
func (c *Config) SchedulerEnv() (*env.Env, error) {
	e := env.New()
	if !c.Scheduler.UseOSEnv {
		e.Isolated()
	}
	for _, p := range c.Scheduler.EnvFiles {
		pairs, err := loadEnvFile(p)
		if err != nil {
			return nil, fmt.Errorf("env file %s: %w", p, err)
		}
		for _, kv := range pairs {
			e.Set(kv[0], kv[1])
		}
	}
	for _, kv := range c.Scheduler.Env {
		if k, v, ok := strings.Cut(kv, "="); ok {
			e.Set(strings.TrimSpace(k), v)
		}
	}
	return e, nil
}

// loadEnvFile parses KEY=VALUE lines in order. Blank lines, # comments and
// an optional "export " prefix are skipped; one pair of surrounding quotes is
// stripped from values.
func loadEnvFile(path string) ([][2]string, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var out [][2]string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if n := len(v); n >= 2 && (v[0] == '"' && v[n-1] == '"' || v[0] == '\'' && v[n-1] == '\'') {
			v = v[1 : n-1]
		}
		if k != "" {
			out = append(out, [2]string{k, v})
		}
	}
	return out, nil
}
