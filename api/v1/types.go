// Package v1 defines the public data types shared across all Gantry layers.
package v1

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Status enumerations
// ─────────────────────────────────────────────────────────────────────────────

// BuildStatus is the terminal state of a recorded build.
type BuildStatus string

const (
	BuildSucceeded BuildStatus = "succeeded"
	BuildFailed    BuildStatus = "failed"
)

// PackageStatus is the terminal state of a recorded packaging run.
type PackageStatus string

const (
	PackageSucceeded PackageStatus = "succeeded"
	PackageFailed    PackageStatus = "failed"
)

// AgentStatus represents the reachability of a remote build agent.
type AgentStatus string

const (
	AgentReady       AgentStatus = "ready"
	AgentUnreachable AgentStatus = "unreachable"
	AgentUnknown     AgentStatus = "unknown"
)

// ─────────────────────────────────────────────────────────────────────────────
// Specification types (derived from gantry.yaml)
// ─────────────────────────────────────────────────────────────────────────────

// Descriptor is the fixed set of assembly attributes injected into generated
// metadata files. Every field is string-valued; boolean attributes are carried
// as "true"/"false" because that is how they appear in the rendered source.
type Descriptor struct {
	ClsCompliant         string `yaml:"cls_compliant"         mapstructure:"cls_compliant"`
	ComVisible           string `yaml:"com_visible"           mapstructure:"com_visible"`
	Title                string `yaml:"title"                 mapstructure:"title"`
	Description          string `yaml:"description"           mapstructure:"description"`
	Company              string `yaml:"company"               mapstructure:"company"`
	Product              string `yaml:"product"               mapstructure:"product"`
	Copyright            string `yaml:"copyright"             mapstructure:"copyright"`
	Version              string `yaml:"version"               mapstructure:"version"`
	InformationalVersion string `yaml:"informational_version" mapstructure:"informational_version"`
	FileVersion          string `yaml:"file_version"          mapstructure:"file_version"`
}

// WithDefaults returns a copy with every unset field filled with its default:
// "false" for the boolean attributes, "1.0" for the version attributes,
// "1.0 (<configuration>)" for the informational version, empty otherwise.
func (d Descriptor) WithDefaults(configuration string) Descriptor {
	if d.ClsCompliant == "" {
		d.ClsCompliant = "false"
	}
	if d.ComVisible == "" {
		d.ComVisible = "false"
	}
	if d.Version == "" {
		d.Version = "1.0"
	}
	if d.FileVersion == "" {
		d.FileVersion = "1.0"
	}
	if d.InformationalVersion == "" {
		d.InformationalVersion = "1.0 (" + configuration + ")"
	}
	return d
}

// Tokens returns the substitution map consumed by the metadata renderer.
// Every key listed here must be present for rendering to succeed.
func (d Descriptor) Tokens() map[string]string {
	return map[string]string{
		"ClsCompliant":         d.ClsCompliant,
		"ComVisible":           d.ComVisible,
		"Title":                d.Title,
		"Description":          d.Description,
		"Company":              d.Company,
		"Product":              d.Product,
		"Copyright":            d.Copyright,
		"Version":              d.Version,
		"InformationalVersion": d.InformationalVersion,
		"FileVersion":          d.FileVersion,
	}
}

// AgentSpec is the declarative definition of a remote build agent.
type AgentSpec struct {
	Name string `yaml:"name" mapstructure:"name" json:"name"`
	Host string `yaml:"host" mapstructure:"host" json:"host"`
	Port int    `yaml:"port" mapstructure:"port" json:"port"`
	User string `yaml:"user" mapstructure:"user" json:"user"`
	Key  string `yaml:"key"  mapstructure:"key"  json:"key"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Runtime state types (persisted in BoltDB)
// ─────────────────────────────────────────────────────────────────────────────

// AgentInfo is the persisted runtime record for a registered agent.
type AgentInfo struct {
	Spec      AgentSpec   `json:"spec"`
	Status    AgentStatus `json:"status"`
	LastSeen  time.Time   `json:"last_seen"`
	FailCount int         `json:"fail_count"`
}

// BuildRecord is an immutable audit record of one build invocation.
type BuildRecord struct {
	ID            string      `json:"id"`
	ProjectFile   string      `json:"project_file"`
	Configuration string      `json:"configuration"`
	Version       string      `json:"version"`
	Runner        string      `json:"runner"`
	MetadataFiles int         `json:"metadata_files"`
	OutputDir     string      `json:"output_dir"`
	StartedAt     time.Time   `json:"started_at"`
	CompletedAt   time.Time   `json:"completed_at"`
	DurationMS    int64       `json:"duration_ms"`
	Status        BuildStatus `json:"status"`
	ExitCode      int         `json:"exit_code"`
	Error         string      `json:"error,omitempty"`
}

// PackageRecord is an immutable audit record of one packaging run.
type PackageRecord struct {
	ID        string        `json:"id"`
	SpecFile  string        `json:"spec_file"`
	Version   string        `json:"version"`
	TargetDir string        `json:"target_dir"`
	OutputDir string        `json:"output_dir"`
	CreatedAt time.Time     `json:"created_at"`
	Status    PackageStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
}
