package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"impactline/internal/ontology"
)

const FileName = "impactline.yml"

// Config models impactline.yml.
type Config struct {
	Store struct {
		Driver        string `yaml:"driver" validate:"oneof=sqlite badger memory"`
		Path          string `yaml:"path"`
		Transactional bool   `yaml:"transactional"`
	} `yaml:"store"`
	IDs struct {
		Kind string `yaml:"kind" validate:"oneof=uuid ulid"`
	} `yaml:"ids"`
	Ontology struct {
		MaxTags              int  `yaml:"max_tags" validate:"gte=0"`
		MaxLinkedItems       int  `yaml:"max_linked_items" validate:"gte=0"`
		MaxDocumentTitle     int  `yaml:"max_document_title" validate:"gte=1"`
		AutoCreateObjectives bool `yaml:"auto_create_objectives"`
	} `yaml:"ontology"`
	Audit struct {
		ReadLimit   int `yaml:"read_limit" validate:"gte=1"`
		ExportLimit int `yaml:"export_limit" validate:"gte=1"`
		RecentLimit int `yaml:"recent_limit" validate:"gte=1"`
	} `yaml:"audit"`
	Log struct {
		Level  string `yaml:"level" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" validate:"oneof=text json"`
	} `yaml:"log"`
	Server struct {
		Addr             string `yaml:"addr" validate:"required,hostname_port"`
		BasePath         string `yaml:"base_path" validate:"basepath"`
		AllowActorHeader bool   `yaml:"allow_actor_header"`
		JWTIssuer        string `yaml:"jwt_issuer"`
	} `yaml:"server"`
}

var validate = validator.New()

func init() {
	_ = validate.RegisterValidation("basepath", func(fl validator.FieldLevel) bool {
		p := fl.Field().String()
		return p == "" || (strings.HasPrefix(p, "/") && !strings.HasSuffix(p, "/"))
	})
}

// Limits returns the ontology limits the config sets.
func (c *Config) Limits() ontology.Limits {
	return ontology.Limits{
		MaxTags:        c.Ontology.MaxTags,
		MaxLinkedItems: c.Ontology.MaxLinkedItems,
		MaxTitleLength: c.Ontology.MaxDocumentTitle,
	}
}

// Validate checks struct tags and reports every failing field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %s", strings.ToLower(fe.Namespace()), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// Load reads config from workspace; a missing file yields defaults.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultTemplate), &cfg); err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return &cfg
}

// FromYAML overlays raw YAML on the defaults and validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `store:
  driver: sqlite
  path: ""
  transactional: true

ids:
  kind: uuid

ontology:
  max_tags: 10
  max_linked_items: 20
  max_document_title: 200
  auto_create_objectives: true

audit:
  read_limit: 1000
  export_limit: 10000
  recent_limit: 50

log:
  level: info
  format: text

server:
  addr: 127.0.0.1:8080
  base_path: /v0
  allow_actor_header: true
`
