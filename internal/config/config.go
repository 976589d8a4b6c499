// Package config loads and validates handoffd's configuration: a YAML
// document with top-level handoff/endpoint/database/logging/general
// sections, validated against an embedded JSON schema before being decoded
// into typed structs, then defaulted and redactable for logging.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// HandoffConfig describes the local handoff site: the buffer files arrive
// in and the holding area they're moved to once transferred.
type HandoffConfig struct {
	Buffer  string `yaml:"buffer" mapstructure:"buffer"`
	Holding string `yaml:"holding" mapstructure:"holding"`
}

// EndpointConfig describes the remote site and how to reach it.
type EndpointConfig struct {
	User     string            `yaml:"user" mapstructure:"user"`
	Host     string            `yaml:"host" mapstructure:"host"`
	Buffer   string            `yaml:"buffer" mapstructure:"buffer"`
	Staging  string            `yaml:"staging" mapstructure:"staging"`
	Port     int               `yaml:"port" mapstructure:"port"`
	Commands map[string]string `yaml:"commands" mapstructure:"commands"`
}

// DatabaseConfig describes the ledger's connection.
type DatabaseConfig struct {
	Engine    string `yaml:"engine" mapstructure:"engine"`
	PoolClass string `yaml:"pool_class" mapstructure:"pool_class"`
	Echo      bool   `yaml:"echo" mapstructure:"echo"`
}

// LoggingConfig configures the process-wide logger.
type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// GeneralConfig holds the pipeline's tunables. TimeoutSec is a pointer so a
// YAML `null`/absent value can be told apart from an explicit number; an
// explicit 0 is treated like an absent value (no timeout), see Timeout.
type GeneralConfig struct {
	ChunkSize      int      `yaml:"chunk_size" mapstructure:"chunk_size"`
	NumThreads     int      `yaml:"num_threads" mapstructure:"num_threads"`
	TimeoutSec     *int     `yaml:"timeout" mapstructure:"timeout"`
	Pause          int      `yaml:"pause" mapstructure:"pause"`
	ExpirationTime int      `yaml:"expiration_time" mapstructure:"expiration_time"`
	ExcludeList    []string `yaml:"exclude_list" mapstructure:"exclude_list"`
	ChecksumMethod string   `yaml:"checksum_method" mapstructure:"checksum_method"`
}

// Timeout returns the configured subprocess timeout, or 0 (no limit) if
// unset or set to 0.
func (g GeneralConfig) Timeout() time.Duration {
	if g.TimeoutSec == nil {
		return 0
	}
	return time.Duration(*g.TimeoutSec) * time.Second
}

// Config is the fully decoded configuration document.
type Config struct {
	Handoff  HandoffConfig  `yaml:"handoff" mapstructure:"handoff"`
	Endpoint EndpointConfig `yaml:"endpoint" mapstructure:"endpoint"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
	General  GeneralConfig  `yaml:"general" mapstructure:"general"`
}

// defaults mirrors utils.Defaults: chunk_size=10, num_threads=1,
// timeout=nil, pause=1, expiration_time=86400, exclude_list=[],
// checksum_method=blake2.
func applyDefaults(g *GeneralConfig) {
	if g.ChunkSize == 0 {
		g.ChunkSize = 10
	}
	if g.NumThreads == 0 {
		g.NumThreads = 1
	}
	if g.Pause == 0 {
		g.Pause = 1
	}
	if g.ExpirationTime == 0 {
		g.ExpirationTime = 86400
	}
	if g.ExcludeList == nil {
		g.ExcludeList = []string{}
	}
	if g.ChecksumMethod == "" {
		g.ChecksumMethod = "blake2"
	}
}

// Load reads path, validates it against Schema, and decodes it into a
// Config with defaults applied. Validation happens before decoding so a
// malformed document is reported in terms of the schema, not a Go type
// mismatch.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := Validate(doc); err != nil {
		return nil, err
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("config: building decoder: %w", err)
	}
	if err := decoder.Decode(doc); err != nil {
		return nil, fmt.Errorf("config: decoding %s: %w", path, err)
	}

	applyDefaults(&cfg.General)
	return &cfg, nil
}

// Validate checks doc (as decoded from YAML/JSON) against Schema.
func Validate(doc map[string]interface{}) error {
	schemaLoader := gojsonschema.NewStringLoader(Schema)
	docLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("config: validating schema: %w", err)
	}
	if !result.Valid() {
		msg := "config: document does not match schema:"
		for _, e := range result.Errors() {
			msg += "\n  - " + e.String()
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}

// Redact returns a copy of the configuration safe to log: command templates
// and the database engine string can embed credentials (e.g. an ssh -i
// keyfile flag, a DSN password), so they are replaced wholesale rather than
// scanned for secret-looking substrings.
func (c *Config) Redact() map[string]interface{} {
	return map[string]interface{}{
		"handoff": c.Handoff,
		"endpoint": map[string]interface{}{
			"user":     c.Endpoint.User,
			"host":     c.Endpoint.Host,
			"buffer":   c.Endpoint.Buffer,
			"staging":  c.Endpoint.Staging,
			"port":     c.Endpoint.Port,
			"commands": "***REDACTED***",
		},
		"database": map[string]interface{}{
			"engine":     "***REDACTED***",
			"pool_class": c.Database.PoolClass,
			"echo":       c.Database.Echo,
		},
		"logging": c.Logging,
		"general": c.General,
	}
}

// Schema is the JSON-schema handoffd's configuration document must satisfy,
// per spec.md §6's required-keys table.
const Schema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["handoff", "endpoint", "database"],
	"properties": {
		"handoff": {
			"type": "object",
			"required": ["buffer", "holding"],
			"properties": {
				"buffer": {"type": "string"},
				"holding": {"type": "string"}
			}
		},
		"endpoint": {
			"type": "object",
			"required": ["user", "host", "buffer"],
			"properties": {
				"user": {"type": "string"},
				"host": {"type": "string"},
				"buffer": {"type": "string"},
				"staging": {"type": "string"},
				"port": {"type": "integer"},
				"commands": {
					"type": "object",
					"additionalProperties": {"type": "string"}
				}
			}
		},
		"database": {
			"type": "object",
			"required": ["engine"],
			"properties": {
				"engine": {"type": "string"},
				"pool_class": {"type": "string"},
				"echo": {"type": "boolean"}
			}
		},
		"logging": {
			"type": "object",
			"properties": {
				"level": {"type": "string"}
			}
		},
		"general": {
			"type": "object",
			"properties": {
				"chunk_size": {"type": "integer", "minimum": 1},
				"num_threads": {"type": "integer", "minimum": 1},
				"timeout": {"type": ["integer", "null"], "minimum": 0},
				"pause": {"type": "integer", "minimum": 0},
				"expiration_time": {"type": "integer", "minimum": 0},
				"exclude_list": {
					"type": "array",
					"items": {"type": "string"}
				},
				"checksum_method": {"type": "string", "enum": ["blake2", "md5", "sha1", "xxhash"]}
			}
		}
	}
}`
