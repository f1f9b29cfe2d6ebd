// Package config loads and validates the broker configuration file.
package config

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	domainerrors "github.com/secure-app-framework/saf-broker/domain/errors"
	"github.com/secure-app-framework/saf-broker/domain/policy"
	"gopkg.in/yaml.v3"
)

// BrokerConfig is the root of the YAML configuration file.
type BrokerConfig struct {
	// Workspace is the directory components may access.
	Workspace string        `yaml:"workspace" json:"workspace,omitempty" jsonschema:"description=Workspace directory exposed to components"`
	Audit     AuditConfig   `yaml:"audit" json:"audit"`
	Network   NetworkConfig `yaml:"network" json:"network"`
	Random    RandomConfig  `yaml:"random" json:"random"`
	Log       LogConfig     `yaml:"log" json:"log"`
	Engine    EngineConfig  `yaml:"engine" json:"engine"`
}

// AuditConfig configures the hash-chained audit log.
type AuditConfig struct {
	Path        string `yaml:"path" json:"path" validate:"required" jsonschema:"description=Audit log file; must lie outside the workspace,default=~/.saf-broker/audit.log"`
	Accumulator string `yaml:"accumulator" json:"accumulator" validate:"oneof=xxhash blake3" jsonschema:"enum=xxhash,enum=blake3,default=xxhash"`
	// KeyHex is the 32-byte blake3 key, hex encoded. Ignored for xxhash.
	KeyHex string `yaml:"key_hex" json:"key_hex,omitempty" validate:"omitempty,hexadecimal,len=64"`
	Fsync  bool   `yaml:"fsync" json:"fsync" jsonschema:"default=true"`
}

// NetworkConfig configures the outbound fetch policy.
type NetworkConfig struct {
	AllowedDomains []string `yaml:"allowed_domains" json:"allowed_domains" validate:"dive,hostname_rfc1123" jsonschema:"description=Exact hostnames components may fetch from"`
	MaxBytes       int64    `yaml:"max_bytes" json:"max_bytes" validate:"gt=0" jsonschema:"default=10485760"`
	Timeout        string   `yaml:"timeout" json:"timeout" validate:"duration" jsonschema:"default=30s"`
	MaxRedirects   int      `yaml:"max_redirects" json:"max_redirects" validate:"gte=0,lte=20" jsonschema:"default=5"`
	AllowPrivate   bool     `yaml:"allow_private" json:"allow_private"`
	// Static serves the fixed demo routes instead of the network.
	Static bool `yaml:"static" json:"static"`
}

// RandomConfig selects the source behind rand.fill.
type RandomConfig struct {
	Mode string `yaml:"mode" json:"mode" validate:"oneof=seeded entropy" jsonschema:"enum=seeded,enum=entropy,default=entropy"`
	Seed uint64 `yaml:"seed" json:"seed"`
}

// LogConfig configures operational logging.
type LogConfig struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`
	Format string `yaml:"format" json:"format" validate:"oneof=text json" jsonschema:"enum=text,enum=json,default=text"`
}

// EngineConfig configures the WebAssembly runtime.
type EngineConfig struct {
	WASI             bool   `yaml:"wasi" json:"wasi"`
	ErrorMode        string `yaml:"error_mode" json:"error_mode" validate:"oneof=trap response" jsonschema:"enum=trap,enum=response,default=trap"`
	MemoryLimitPages uint32 `yaml:"memory_limit_pages" json:"memory_limit_pages,omitempty" validate:"lte=65536"`
	MaxRequestSize   uint32 `yaml:"max_request_size" json:"max_request_size" validate:"gt=0" jsonschema:"default=1048576"`
}

// Default returns the configuration used for keys the file leaves out.
func Default() BrokerConfig {
	return BrokerConfig{
		Audit: AuditConfig{
			Path:        defaultAuditPath(),
			Accumulator: "xxhash",
			Fsync:       true,
		},
		Network: NetworkConfig{
			MaxBytes:     policy.DefaultMaxBytes,
			Timeout:      "30s",
			MaxRedirects: 5,
		},
		Random: RandomConfig{Mode: "entropy"},
		Log:    LogConfig{Level: "info", Format: "text"},
		Engine: EngineConfig{
			ErrorMode:      "trap",
			MaxRequestSize: 1 << 20,
		},
	}
}

// defaultAuditPath keeps the log next to the grant store, away from any
// directory likely to be granted as a workspace.
func defaultAuditPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".saf-broker", "audit.log")
}

// validate is a package-level singleton for better performance.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		return name
	})
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d > 0
	})
	return v
}

// Load reads path and returns the validated configuration.
func Load(path string) (BrokerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BrokerConfig{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default and validates the result. Unknown keys are
// rejected.
func Parse(data []byte) (BrokerConfig, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return BrokerConfig{}, &domainerrors.ConfigError{Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return BrokerConfig{}, err
	}
	return cfg, nil
}

// Validate checks field constraints. The first failing field is reported.
func (c BrokerConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &domainerrors.ConfigError{
				Field: strings.TrimPrefix(fe.Namespace(), "BrokerConfig."),
				Err:   fmt.Errorf("failed %q check (value %v)", fe.Tag(), fe.Value()),
			}
		}
		return &domainerrors.ConfigError{Err: err}
	}
	if c.Audit.Accumulator == "blake3" && c.Audit.KeyHex == "" {
		return &domainerrors.ConfigError{Field: "audit.key_hex", Err: errors.New("required for the blake3 accumulator")}
	}
	return nil
}

// TimeoutDuration returns the parsed network timeout.
func (n NetworkConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(n.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// Key decodes KeyHex. It returns nil when no key is configured.
func (a AuditConfig) Key() ([]byte, error) {
	if a.KeyHex == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(a.KeyHex)
	if err != nil {
		return nil, &domainerrors.ConfigError{Field: "audit.key_hex", Err: err}
	}
	return key, nil
}
