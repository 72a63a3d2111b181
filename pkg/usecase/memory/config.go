package memory

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// RetrieverConfig controls memory retrieval for a query.
type RetrieverConfig struct {
	// Minimum cosine similarity for a memory to be returned. Default 0.3
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	// Maximum number of memories returned. Default 3
	MaxContextItems int `yaml:"max_context_items"`
}

// SchedulerConfig controls how often memory stages run.
type SchedulerConfig struct {
	// Flash extraction runs when the user turn count is a multiple. Default 1
	FlashInterval int `yaml:"flash_interval"`
	// Long-term consolidation runs when the user turn count is a multiple. Default 10
	LongTermInterval int `yaml:"long_term_interval"`
}

// FlashConfig controls flash fact extraction.
type FlashConfig struct {
	// Number of recent events rendered into the prompt. Default 10
	MaxHistoryToProcess int `yaml:"max_history_to_process"`
	// Cap on facts taken from the pattern fallback parse. Default 4
	MaxFlashMemory int `yaml:"max_flash_memory"`
	// Similarity at which an earlier fact in a batch is dropped. Default 0.9
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// LongTermConfig controls long-term consolidation.
type LongTermConfig struct {
	// Number of recent events rendered into the prompt. Default 10
	MaxHistoryToProcess int `yaml:"max_history_to_process"`
}

// MergeConfig controls merging new memories into a snapshot.
type MergeConfig struct {
	// Similarity at which a new record duplicates a kept one. Default 0.9
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	// Defaults 200, 200 and 500
	MaxFlashMemories    int `yaml:"max_flash_memories"`
	MaxLongTermMemories int `yaml:"max_long_term_memories"`
	MaxHistoryEvents    int `yaml:"max_history_events"`
}

// Config aggregates the tuning surface of all memory stages.
type Config struct {
	Retriever RetrieverConfig `yaml:"retriever"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Flash     FlashConfig     `yaml:"flash"`
	LongTerm  LongTermConfig  `yaml:"long_term"`
	Merge     MergeConfig     `yaml:"merge"`
}

const (
	DefaultRetrievalThreshold  = 0.3
	DefaultMaxContextItems     = 3
	DefaultFlashInterval       = 1
	DefaultLongTermInterval    = 10
	DefaultMaxHistoryToProcess = 10
	DefaultMaxFlashMemory      = 4
	DefaultDedupThreshold      = 0.9
	DefaultMaxFlashMemories    = 200
	DefaultMaxLongTermMemories = 200
	DefaultMaxHistoryEvents    = 500
)

// DefaultConfig returns a Config with every field set to its default
func DefaultConfig() Config {
	return Config{}.WithDefaults()
}

// WithDefaults fills zero or negative fields with defaults.
func (c Config) WithDefaults() Config {
	c.Retriever = c.Retriever.WithDefaults()
	c.Scheduler = c.Scheduler.WithDefaults()
	c.Flash = c.Flash.WithDefaults()
	c.LongTerm = c.LongTerm.WithDefaults()
	c.Merge = c.Merge.WithDefaults()
	return c
}

func (c RetrieverConfig) WithDefaults() RetrieverConfig {
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = DefaultRetrievalThreshold
	}
	if c.MaxContextItems <= 0 {
		c.MaxContextItems = DefaultMaxContextItems
	}
	return c
}

func (c SchedulerConfig) WithDefaults() SchedulerConfig {
	if c.FlashInterval <= 0 {
		c.FlashInterval = DefaultFlashInterval
	}
	if c.LongTermInterval <= 0 {
		c.LongTermInterval = DefaultLongTermInterval
	}
	return c
}

func (c FlashConfig) WithDefaults() FlashConfig {
	if c.MaxHistoryToProcess <= 0 {
		c.MaxHistoryToProcess = DefaultMaxHistoryToProcess
	}
	if c.MaxFlashMemory <= 0 {
		c.MaxFlashMemory = DefaultMaxFlashMemory
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = DefaultDedupThreshold
	}
	return c
}

func (c LongTermConfig) WithDefaults() LongTermConfig {
	if c.MaxHistoryToProcess <= 0 {
		c.MaxHistoryToProcess = DefaultMaxHistoryToProcess
	}
	return c
}

func (c MergeConfig) WithDefaults() MergeConfig {
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = DefaultDedupThreshold
	}
	if c.MaxFlashMemories <= 0 {
		c.MaxFlashMemories = DefaultMaxFlashMemories
	}
	if c.MaxLongTermMemories <= 0 {
		c.MaxLongTermMemories = DefaultMaxLongTermMemories
	}
	if c.MaxHistoryEvents <= 0 {
		c.MaxHistoryEvents = DefaultMaxHistoryEvents
	}
	return c
}

// LoadConfig reads a YAML config file. Missing fields take their defaults.
func LoadConfig(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, goerr.Wrap(err, "failed to read memory config file", goerr.V("file", path))
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, goerr.Wrap(err, "failed to parse YAML config", goerr.V("file", path))
	}

	return cfg.WithDefaults(), nil
}
