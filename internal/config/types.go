package config

import "time"

// Config represents the complete phylopipe configuration.
type Config struct {
	LogLevel    string          `yaml:"log_level"`
	InputDir    string          `yaml:"input_dir"`
	OutputDir   string          `yaml:"output_dir"`
	Samples     []string        `yaml:"samples,omitempty"`
	SamplesFile string          `yaml:"samples_file,omitempty"`
	RegionTag   string          `yaml:"region_tag"`
	Tools       ToolsConfig     `yaml:"tools"`
	Bootstrap   BootstrapConfig `yaml:"bootstrap"`
	Embed       EmbedConfig     `yaml:"embed"`
	Ledger      LedgerConfig    `yaml:"ledger"`
}

// ToolsConfig names the external programs and their fixed options. The
// default argv of each tool is a compatibility contract with the published
// pipeline; only the program paths are expected to vary between hosts.
type ToolsConfig struct {
	Barrnap  string        `yaml:"barrnap"`
	Kingdom  string        `yaml:"kingdom"`
	Bedtools string        `yaml:"bedtools"`
	Mafft    string        `yaml:"mafft"`
	FastTree string        `yaml:"fasttree"`
	Embedder []string      `yaml:"embedder,omitempty"`
	Timeout  time.Duration `yaml:"timeout"` // 0 disables the tool timeout
}

// BootstrapConfig defines the replicate workflow.
type BootstrapConfig struct {
	Alignment  string `yaml:"alignment"`
	Dir        string `yaml:"dir"`
	Replicates int    `yaml:"replicates"`
	Seed       int64  `yaml:"seed"`    // 0 seeds from the clock
	Workers    int    `yaml:"workers"` // bounded pool size, 1 = sequential
}

// EmbedConfig defines the image embedding workflow.
type EmbedConfig struct {
	ImageDir  string `yaml:"image_dir"`
	TensorDir string `yaml:"tensor_dir"`
}

// LedgerConfig defines the run ledger database.
type LedgerConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"` // nil means enabled
	Path    string `yaml:"path,omitempty"`    // default {output_dir}/phylopipe.db
}

// LedgerEnabled reports whether the run ledger should be written.
func (c *Config) LedgerEnabled() bool {
	return c.Ledger.Enabled == nil || *c.Ledger.Enabled
}
