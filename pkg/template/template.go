// Package template generates starter schedctl.toml files.
package template

import (
	"bytes"
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

// TemplateType selects which starter configuration to generate.
type TemplateType string

const (
	TypeProcess      TemplateType = "process"
	TypeContainer    TemplateType = "container"
	TypeContainerAPI TemplateType = "container-api"
	TypeSQL          TemplateType = "sql"
)

// StarterConfig mirrors the subset of the service config a new deployment
// usually edits.
type StarterConfig struct {
	Server    ServerSection    `toml:"server"`
	Scheduler SchedulerSection `toml:"scheduler"`
	Logs      LogsSection      `toml:"logs"`
	Settings  SettingsSection  `toml:"settings"`
	History   *HistorySection  `toml:"history,omitempty"`
	Metrics   MetricsSection   `toml:"metrics"`
	Log       LogSection       `toml:"log"`
}

type ServerSection struct {
	Listen   string `toml:"listen"`
	BasePath string `toml:"base_path"`
	PIDFile  string `toml:"pidfile,omitempty"`
}

type SchedulerSection struct {
	Name        string            `toml:"name"`
	Mode        string            `toml:"mode"`
	Command     string            `toml:"command,omitempty"`
	WorkDir     string            `toml:"work_dir,omitempty"`
	Env         []string          `toml:"env,omitempty"`
	Grace       string            `toml:"grace"`
	StopTimeout string            `toml:"stop_timeout,omitempty"`
	Registry    string            `toml:"registry"`
	Log         *SchedulerLog     `toml:"log,omitempty"`
	Container   *ContainerSection `toml:"container,omitempty"`
}

type SchedulerLog struct {
	Stdout    string `toml:"stdout"`
	Stderr    string `toml:"stderr"`
	MaxSizeMB int    `toml:"max_size_mb"`
}

type ContainerSection struct {
	CLI        string   `toml:"cli"`
	Name       string   `toml:"name"`
	StartArgs  []string `toml:"start_args"`
	StopArgs   []string `toml:"stop_args"`
	Probe      string   `toml:"probe"`
	DockerHost string   `toml:"docker_host,omitempty"`
}

type LogsSection struct {
	Dir         string `toml:"dir"`
	SummaryFile string `toml:"summary_file"`
	DateFile    string `toml:"date_file"`
	TailLines   int    `toml:"tail_lines"`
}

type SettingsSection struct {
	Path string `toml:"path"`
}

type HistorySection struct {
	Sinks []string `toml:"sinks"`
}

type MetricsSection struct {
	Enabled bool `toml:"enabled"`
}

type LogSection struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Color  bool   `toml:"color"`
}

// Generator provides template generation functionality
type Generator struct{}

// NewGenerator creates a new template generator
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate builds the starter config for templateType. name is the
// scheduler name and, in container modes, the container name.
func (g *Generator) Generate(templateType TemplateType, name string) (*StarterConfig, error) {
	if name == "" {
		name = "scheduler"
	}
	switch templateType {
	case TypeProcess, "":
		return g.base(name), nil
	case TypeContainer:
		return g.container(name, "cli"), nil
	case TypeContainerAPI:
		c := g.container(name, "api")
		c.Scheduler.Container.DockerHost = "unix:///var/run/docker.sock"
		return c, nil
	case TypeSQL:
		c := g.base(name)
		c.Scheduler.Registry = "sqlite://run/schedctl.db"
		c.History = &HistorySection{Sinks: []string{"sqlite://run/schedctl.db"}}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown template type: %s (supported: process, container, container-api, sql)", templateType)
	}
}

// GenerateTOML renders the starter config as TOML.
func (g *Generator) GenerateTOML(templateType TemplateType, name string) ([]byte, error) {
	cfg, err := g.Generate(templateType, name)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to marshal template: %w", err)
	}
	return buf.Bytes(), nil
}

// GetSupportedTypes returns a list of all supported template types
func (g *Generator) GetSupportedTypes() []string {
	return []string{
		string(TypeProcess),
		string(TypeContainer),
		string(TypeContainerAPI),
		string(TypeSQL),
	}
}

func (g *Generator) base(name string) *StarterConfig {
	return &StarterConfig{
		Server: ServerSection{Listen: "127.0.0.1:6001", BasePath: "/api", PIDFile: "run/schedctl.pid"},
		Scheduler: SchedulerSection{
			Name:        name,
			Mode:        "process",
			Command:     "python -m " + name,
			Env:         []string{"SCHEDULER_ENV=production"},
			Grace:       "2s",
			StopTimeout: "10s",
			Registry:    "run/" + name + ".pid",
			Log: &SchedulerLog{
				Stdout:    "logs/" + name + ".log",
				Stderr:    "logs/" + name + ".log",
				MaxSizeMB: 10,
			},
		},
		Logs:     LogsSection{Dir: "logs", SummaryFile: "logs/service.log", DateFile: "logs/lama-02-01-06.log", TailLines: 100},
		Settings: SettingsSection{Path: "settings.ini"},
		Metrics:  MetricsSection{Enabled: true},
		Log:      LogSection{Level: "info", Format: "text", Color: true},
	}
}

func (g *Generator) container(name, probe string) *StarterConfig {
	c := g.base(name)
	c.Scheduler.Mode = "container"
	c.Scheduler.Command = ""
	c.Scheduler.Env = nil
	c.Scheduler.Log = nil
	c.Scheduler.Grace = "5s"
	c.Scheduler.Container = &ContainerSection{
		CLI:       "docker",
		Name:      name,
		StartArgs: []string{"start", name},
		StopArgs:  []string{"stop", name},
		Probe:     probe,
	}
	return c
}
