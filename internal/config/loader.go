package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a YAML file, interpolates
// ${ENV_VAR} references, applies defaults, and validates. Any error here
// is fatal to the whole batch: no work item runs against a broken config.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	interpolated := interpolateEnvVars(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(interpolated), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// interpolateEnvVars replaces ${VAR} with the environment value. Unset
// variables interpolate to the empty string, which validation then catches
// if the field was required.
func interpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RegionTag == "" {
		cfg.RegionTag = "18S"
	}
	if cfg.Tools.Barrnap == "" {
		cfg.Tools.Barrnap = "barrnap"
	}
	if cfg.Tools.Kingdom == "" {
		cfg.Tools.Kingdom = "euk"
	}
	if cfg.Tools.Bedtools == "" {
		cfg.Tools.Bedtools = "bedtools"
	}
	if cfg.Tools.Mafft == "" {
		cfg.Tools.Mafft = "mafft"
	}
	if cfg.Tools.FastTree == "" {
		cfg.Tools.FastTree = "FastTree"
	}
	if cfg.Bootstrap.Replicates == 0 {
		cfg.Bootstrap.Replicates = 100
	}
	if cfg.Bootstrap.Workers == 0 {
		cfg.Bootstrap.Workers = 1
	}
	if cfg.Bootstrap.Dir == "" && cfg.OutputDir != "" {
		cfg.Bootstrap.Dir = filepath.Join(cfg.OutputDir, "bootstrap_trees")
	}
	if cfg.Bootstrap.Alignment == "" && cfg.OutputDir != "" {
		cfg.Bootstrap.Alignment = filepath.Join(cfg.OutputDir, "aligned_18s.fasta")
	}
	if cfg.Ledger.Path == "" && cfg.OutputDir != "" {
		cfg.Ledger.Path = filepath.Join(cfg.OutputDir, "phylopipe.db")
	}
}

func validate(cfg *Config) error {
	if cfg.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}
	if cfg.Tools.Timeout < 0 {
		return fmt.Errorf("tools.timeout must not be negative")
	}
	if cfg.Bootstrap.Replicates < 0 {
		return fmt.Errorf("bootstrap.replicates must not be negative")
	}
	if cfg.Bootstrap.Workers < 1 {
		return fmt.Errorf("bootstrap.workers must be at least 1")
	}
	if len(cfg.Samples) > 0 && cfg.SamplesFile != "" {
		return fmt.Errorf("samples and samples_file are mutually exclusive")
	}
	return nil
}

// SampleIDs resolves the ordered work list, either inline or from
// samples_file (one ID per line, blank lines and # comments skipped).
func (c *Config) SampleIDs() ([]string, error) {
	if len(c.Samples) > 0 {
		return c.Samples, nil
	}
	if c.SamplesFile == "" {
		return nil, fmt.Errorf("no samples configured: set samples or samples_file")
	}

	f, err := os.Open(c.SamplesFile)
	if err != nil {
		return nil, fmt.Errorf("open samples file: %w", err)
	}
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read samples file: %w", err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("samples file %s contains no sample IDs", c.SamplesFile)
	}
	return ids, nil
}
