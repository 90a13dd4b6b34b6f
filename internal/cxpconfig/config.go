// Package cxpconfig loads the archive engine's tunable defaults from
// .cxp.yaml (project) and CXP_* environment overrides, in that precedence
// order (env wins), mirroring the teacher's layered configuration scheme.
package cxpconfig

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete tunable surface of the archive engine.
type Config struct {
	Chunker    ChunkerConfig    `yaml:"chunker" json:"chunker"`
	Compress   CompressConfig   `yaml:"compress" json:"compress"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Scanner    ScannerConfig    `yaml:"scanner" json:"scanner"`
	Manager    ManagerConfig    `yaml:"manager" json:"manager"`
}

// ChunkerConfig tunes content-defined chunking.
type ChunkerConfig struct {
	MinSize    int `yaml:"min_size" json:"min_size"`
	TargetSize int `yaml:"target_size" json:"target_size"`
	MaxSize    int `yaml:"max_size" json:"max_size"`
}

// CompressConfig tunes the Zstandard compressor.
type CompressConfig struct {
	Level int `yaml:"level" json:"level"`
}

// EmbeddingsConfig names the model used, if any, purely for manifest metadata
//; the engine never loads model weights itself.
type EmbeddingsConfig struct {
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
}

// ScannerConfig sets the default Smart Scanner profile.
type ScannerConfig struct {
	DefaultProfile string `yaml:"default_profile" json:"default_profile"`
	MaxFileSize    int64  `yaml:"max_file_size" json:"max_file_size"`
}

// ManagerConfig tunes the Archive Manager.
type ManagerConfig struct {
	MaxMemoryBytes    int64 `yaml:"max_memory_bytes" json:"max_memory_bytes"`
	MaxCachedArchives int   `yaml:"max_cached_archives" json:"max_cached_archives"`
	PreloadHot        bool  `yaml:"preload_hot" json:"preload_hot"`
}

// Default returns the spec's documented default values.
func Default() Config {
	return Config{
		Chunker: ChunkerConfig{
			MinSize:    2048,
			TargetSize: 4096,
			MaxSize:    8192,
		},
		Compress: CompressConfig{Level: 3},
		Embeddings: EmbeddingsConfig{
			BatchSize: 32,
		},
		Scanner: ScannerConfig{
			DefaultProfile: "developer",
			MaxFileSize:    10 * 1024 * 1024,
		},
		Manager: ManagerConfig{
			MaxMemoryBytes:    500 * 1024 * 1024,
			MaxCachedArchives: 50,
			PreloadHot:        true,
		},
	}
}

// Load reads path (if it exists) over the defaults, then applies CXP_*
// environment overrides. A missing path is not an error: defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if uerr := yaml.Unmarshal(data, &cfg); uerr != nil {
				return cfg, uerr
			}
		} else if !os.IsNotExist(err) {
			return cfg, err
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides reads CXP_* variables with highest precedence.
func applyEnvOverrides(cfg *Config) {
	if v, ok := lookupEnvInt("CXP_CHUNK_TARGET_SIZE"); ok {
		cfg.Chunker.TargetSize = v
	}
	if v, ok := lookupEnvInt("CXP_COMPRESS_LEVEL"); ok {
		cfg.Compress.Level = v
	}
	if v, ok := os.LookupEnv("CXP_EMBEDDING_MODEL"); ok {
		cfg.Embeddings.Model = v
	}
	if v, ok := lookupEnvInt64("CXP_MANAGER_MAX_MEMORY_BYTES"); ok {
		cfg.Manager.MaxMemoryBytes = v
	}
	if v, ok := lookupEnvBool("CXP_MANAGER_PRELOAD_HOT"); ok {
		cfg.Manager.PreloadHot = v
	}
}

func lookupEnvInt(name string) (int, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

func lookupEnvInt64(name string) (int64, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func lookupEnvBool(name string) (bool, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, false
	}
	return b, true
}
