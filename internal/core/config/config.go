// Package config provides the Gantry configuration loader.
// Config is loaded by merging gantry.yaml → ~/.gantry/config.yaml → GANTRY_* env vars.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	v1 "github.com/gantry-build/gantry/api/v1"
	"github.com/gantry-build/gantry/pkg/netutil"
)

// sensitiveKeyRegex matches config keys that should be redacted in output.
var sensitiveKeyRegex = regexp.MustCompile(`(?i)(password|token|secret|passphrase)`)

// Runner names accepted by toolchain.runner.
const (
	RunnerLocal     = "local"
	RunnerContainer = "container"
	RunnerAgent     = "agent"
)

// Defaults contains factory-default values applied before any config file is loaded.
var Defaults = map[string]any{
	"project.root":                ".",
	"toolchain.configuration":     "debug",
	"toolchain.runner":            RunnerLocal,
	"toolchain.container.command": "msbuild",
	"package.source_dir":          "PackageSource",
	"package.output_dir":          "DeploymentPackages",
	"log.level":                   "info",
	"log.format":                  "text",
}

// ─────────────────────────────────────────────────────────────────────────────
// Config types
// ─────────────────────────────────────────────────────────────────────────────

// Config is the fully-decoded project configuration.
type Config struct {
	Version    string         `mapstructure:"version"`
	Project    ProjectConfig  `mapstructure:"project"`
	Toolchain  Toolchain      `mapstructure:"toolchain"`
	Descriptor v1.Descriptor  `mapstructure:"descriptor"`
	Package    PackageConfig  `mapstructure:"package"`
	Agents     []v1.AgentSpec `mapstructure:"agents"`
	Plugins    PluginsConfig  `mapstructure:"plugins"`
	Log        LogConfig      `mapstructure:"log"`

	// User is the invoking OS user, resolved once at load time.
	// Never read from the environment mid-build.
	User string `mapstructure:"-"`
}

// ProjectConfig holds project-level metadata.
type ProjectConfig struct {
	Name string `mapstructure:"name"`
	Root string `mapstructure:"root"`
}

// Toolchain holds the external tool paths and runner selection.
type Toolchain struct {
	MSBuild       string          `mapstructure:"msbuild"`
	NuGet         string          `mapstructure:"nuget"`
	Configuration string          `mapstructure:"configuration"`
	OutputDir     string          `mapstructure:"output_dir"`
	Runner        string          `mapstructure:"runner"` // local | container | agent
	Container     ContainerConfig `mapstructure:"container"`
	Agent         string          `mapstructure:"agent"`
}

// ContainerConfig configures the containerised compiler runner.
type ContainerConfig struct {
	Image   string `mapstructure:"image"`
	Command string `mapstructure:"command"`
}

// PackageConfig holds the NuGet packaging settings.
type PackageConfig struct {
	ContentDir string `mapstructure:"content_dir"` // path under the output dir to package
	SourceDir  string `mapstructure:"source_dir"`  // staging dir for package content
	OutputDir  string `mapstructure:"output_dir"`  // where generated packages land
	SpecName   string `mapstructure:"spec_name"`
	Template   string `mapstructure:"template"` // optional nuspec template file
}

// PluginsConfig controls plugin loading.
type PluginsConfig struct {
	Dir string `mapstructure:"dir"`
}

// LogConfig controls logging behaviour.
type LogConfig struct {
	Level  string `mapstructure:"level"` // debug | info | warn | error
	File   string `mapstructure:"file"`
	Format string `mapstructure:"format"` // json | text
}

// ─────────────────────────────────────────────────────────────────────────────
// Loader
// ─────────────────────────────────────────────────────────────────────────────

// Load discovers and loads the configuration, walking up directories to find
// gantry.yaml, then merging it with the global config and environment variables.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()

	// Apply defaults
	for k, val := range Defaults {
		v.SetDefault(k, val)
	}

	// Environment variable binding: GANTRY_LOG_LEVEL → log.level
	v.SetEnvPrefix("GANTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load global config (~/.gantry/config.yaml) if it exists
	globalCfg := filepath.Join(gantryHome(), "config.yaml")
	if _, err := os.Stat(globalCfg); err == nil {
		v.SetConfigFile(globalCfg)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read global config: %w", err)
		}
	}

	// Load project config
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		path, err := discoverProjectConfig()
		if err == nil {
			v.SetConfigFile(path)
		}
	}

	if v.ConfigFileUsed() != "" || explicitPath != "" {
		if err := v.MergeInConfig(); err != nil && explicitPath != "" {
			return nil, fmt.Errorf("read project config %q: %w", explicitPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := resolve(&cfg); err != nil {
		return nil, fmt.Errorf("resolve config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// AgentByName returns the AgentSpec with the given name, or nil.
func (c *Config) AgentByName(name string) *v1.AgentSpec {
	for i := range c.Agents {
		if c.Agents[i].Name == name {
			return &c.Agents[i]
		}
	}
	return nil
}

// IsSensitiveKey returns true if key matches a known sensitive pattern.
func IsSensitiveKey(key string) bool {
	return sensitiveKeyRegex.MatchString(key)
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

// discoverProjectConfig walks up from the CWD looking for gantry.yaml.
func discoverProjectConfig() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, "gantry.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("gantry.yaml not found (searched up from %s)", func() string { d, _ := os.Getwd(); return d }())
}

// resolve makes every ambient-environment lookup exactly once, turning the
// partially-filled Config into absolute paths and concrete tool locations.
func resolve(cfg *Config) error {
	root, err := filepath.Abs(os.ExpandEnv(cfg.Project.Root))
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}
	cfg.Project.Root = root

	if cfg.Toolchain.MSBuild == "" {
		cfg.Toolchain.MSBuild = DefaultMSBuildPath()
	} else {
		cfg.Toolchain.MSBuild = os.ExpandEnv(cfg.Toolchain.MSBuild)
	}
	if cfg.Toolchain.NuGet == "" {
		cfg.Toolchain.NuGet = DefaultNuGetPath()
	} else {
		cfg.Toolchain.NuGet = os.ExpandEnv(cfg.Toolchain.NuGet)
	}

	if cfg.Toolchain.OutputDir == "" {
		cfg.Toolchain.OutputDir = filepath.Join(root, "BuildOutput")
	} else if !filepath.IsAbs(cfg.Toolchain.OutputDir) {
		cfg.Toolchain.OutputDir = filepath.Join(root, cfg.Toolchain.OutputDir)
	}

	if !filepath.IsAbs(cfg.Package.SourceDir) {
		cfg.Package.SourceDir = filepath.Join(root, cfg.Package.SourceDir)
	}
	if !filepath.IsAbs(cfg.Package.OutputDir) {
		cfg.Package.OutputDir = filepath.Join(root, cfg.Package.OutputDir)
	}

	if cfg.Plugins.Dir == "" {
		cfg.Plugins.Dir = filepath.Join(gantryHome(), "plugins")
	}

	for i := range cfg.Agents {
		cfg.Agents[i].Key = os.ExpandEnv(cfg.Agents[i].Key)
		if cfg.Agents[i].Port == 0 {
			cfg.Agents[i].Port = 22
		}
	}

	cfg.User = invokingUser()
	return nil
}

// validate performs semantic validation on the loaded config.
func validate(cfg *Config) error {
	switch cfg.Toolchain.Runner {
	case RunnerLocal:
	case RunnerContainer:
		if cfg.Toolchain.Container.Image == "" {
			return fmt.Errorf("toolchain.runner is %q but toolchain.container.image is not set", RunnerContainer)
		}
	case RunnerAgent:
		if cfg.Toolchain.Agent == "" {
			return fmt.Errorf("toolchain.runner is %q but toolchain.agent is not set", RunnerAgent)
		}
	default:
		return fmt.Errorf("unknown toolchain.runner %q (want local, container or agent)", cfg.Toolchain.Runner)
	}

	seen := map[string]bool{}
	for _, agent := range cfg.Agents {
		if agent.Name == "" {
			return fmt.Errorf("agent with empty name is not allowed")
		}
		if !netutil.IsValidAgentName(agent.Name) {
			return fmt.Errorf("invalid agent name: %q", agent.Name)
		}
		if seen[agent.Name] {
			return fmt.Errorf("duplicate agent name: %q", agent.Name)
		}
		seen[agent.Name] = true
		if agent.Host == "" {
			return fmt.Errorf("agent %q: host is required", agent.Name)
		}
	}
	return nil
}

// invokingUser resolves the current OS user name, lowercased later at the
// point of annotation.
func invokingUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	if name := os.Getenv("USERNAME"); name != "" {
		return name
	}
	return "unknown"
}

// DefaultMSBuildPath returns the platform default compiler location. On
// Windows this is the .NET Framework install under %WINDIR%; elsewhere the
// PATH is consulted for an msbuild shim (Mono, dotnet wrappers).
func DefaultMSBuildPath() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("WINDIR"), "Microsoft.NET", "Framework64", "v4.0.30319", "msbuild.exe")
	}
	if path, err := exec.LookPath("msbuild"); err == nil {
		return path
	}
	return "msbuild"
}

// DefaultNuGetPath returns the platform default packaging tool location.
func DefaultNuGetPath() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(`C:\`, "nuget", "nuget.exe")
	}
	if path, err := exec.LookPath("nuget"); err == nil {
		return path
	}
	return "nuget"
}

// gantryHome returns the Gantry home directory (~/.gantry).
func gantryHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gantry"
	}
	return filepath.Join(home, ".gantry")
}

// GantryHome is the exported variant for use by other packages.
func GantryHome() string {
	return gantryHome()
}

// DefaultConfigTemplate is the content written by `gantry init`.
const DefaultConfigTemplate = `# gantry.yaml - project build manifest
version: "1"

project:
  name: my-app
  root: .

toolchain:
  # msbuild: C:\Windows\Microsoft.NET\Framework64\v4.0.30319\msbuild.exe
  # nuget: C:\nuget\nuget.exe
  configuration: debug
  # output_dir: BuildOutput
  runner: local
  # container:
  #   image: mcr.microsoft.com/dotnet/framework/sdk:4.8
  #   command: msbuild
  # agent: win-builder

descriptor:
  title: My App
  description: A description of my app
  company: My Company
  product: My Product
  copyright: Copyright 2012, My Company, All rights reserved
  # version: "1.0"
  # file_version: "1.0"

package:
  # content_dir: _PublishedWebsites/My.Web
  # spec_name: My.Web
  # source_dir: PackageSource
  # output_dir: DeploymentPackages

# agents:
#   - name: win-builder
#     host: 192.168.1.40
#     user: builder
#     key: ~/.ssh/gantry_ed25519
#     port: 22

log:
  level: info
  format: text
`
