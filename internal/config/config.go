package config

import (
	"fmt"
	"runtime"

	"github.com/spf13/viper"
)

// Config represents the scanner configuration
type Config struct {
	// Scan settings
	Path    string `mapstructure:"path"`    // root path to scan
	Workers int    `mapstructure:"workers"` // number of worker goroutines

	// Catalog sources
	RulesPath     string   `mapstructure:"rules_path"`     // signature ruleset file or directory
	HashLists     []string `mapstructure:"hash_lists"`     // known-bad digest list files
	FilenameLists []string `mapstructure:"filename_lists"` // filename/path pattern files

	// Archive settings
	ScanArchives bool   `mapstructure:"scan_archives"` // expand and scan archive contents
	MaxDepth     int    `mapstructure:"max_depth"`     // maximum archive nesting depth
	MaxExpansion string `mapstructure:"max_expansion"` // decompressed-size budget per container, e.g. "512M"

	// Forensic artifact settings
	ScanEvtx     bool `mapstructure:"scan_evtx"`     // scan Windows event log records
	ScanRegistry bool `mapstructure:"scan_registry"` // scan Windows registry hive values

	// Hash settings
	HashAlgorithms []string `mapstructure:"hash_algorithms"` // digests computed per target

	// Filename similarity settings
	Levenshtein bool `mapstructure:"levenshtein"` // flag filenames resembling well-known system binaries

	// Walk settings
	Exclude []string `mapstructure:"exclude"` // directory names to skip

	// Report settings
	ReportFormat string `mapstructure:"report_format"` // text, json, csv
	OutputFile   string `mapstructure:"output_file"`   // output file path, empty for stdout
}

// LoadConfig loads configuration from environment variables and defaults
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("scan_archives", true)
	v.SetDefault("max_depth", 8)
	v.SetDefault("max_expansion", "512M")
	v.SetDefault("scan_evtx", false)
	v.SetDefault("scan_registry", false)
	v.SetDefault("hash_algorithms", []string{"md5", "sha1", "sha256"})
	v.SetDefault("levenshtein", false)
	v.SetDefault("exclude", []string{".git", ".svn", ".hg", "proc", "sys", "dev"})
	v.SetDefault("report_format", "text")

	// Read environment variables
	v.SetEnvPrefix("CERBERUS")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration for values the scan cannot run with
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("no scan path configured")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative")
	}
	if c.MaxExpansionBytes() <= 0 {
		return fmt.Errorf("invalid max_expansion %q", c.MaxExpansion)
	}
	for _, algo := range c.HashAlgorithms {
		switch algo {
		case "md5", "sha1", "sha256", "blake3":
		default:
			return fmt.Errorf("unknown hash algorithm %q", algo)
		}
	}
	return nil
}

// MaxExpansionBytes returns the decompressed-size budget in bytes
func (c *Config) MaxExpansionBytes() int64 {
	return ParseSize(c.MaxExpansion)
}

// WorkerCount returns the effective worker pool size
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// ParseSize parses size string (e.g., "650K", "1M") to bytes
func ParseSize(sizeStr string) int64 {
	if len(sizeStr) == 0 {
		return 0
	}

	// Get last character (unit)
	last := sizeStr[len(sizeStr)-1]
	var multiplier int64 = 1

	switch last {
	case 'K', 'k':
		multiplier = 1024
		sizeStr = sizeStr[:len(sizeStr)-1]
	case 'M', 'm':
		multiplier = 1024 * 1024
		sizeStr = sizeStr[:len(sizeStr)-1]
	case 'G', 'g':
		multiplier = 1024 * 1024 * 1024
		sizeStr = sizeStr[:len(sizeStr)-1]
	}

	// Parse number
	var size int64
	fmt.Sscanf(sizeStr, "%d", &size)

	return size * multiplier
}
