package yamlconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Document is the schema of an aspect configuration file.
//
//	services:
//	  - contract: example.com/app.Repository
//	    implementation: example.com/app.PostgresRepository
//	    scope: singleton
//	    aspects:
//	      - factory: github.com/centraunit/aop/logging.Factory
//	        sortOrder: 2
//	        methods: [Find, Save]
type Document struct {
	Services []ServiceDocument `yaml:"services" validate:"dive"`
}

// ServiceDocument configures one registration. Implementation may be left out to
// target a registration made in code for the same contract.
type ServiceDocument struct {
	Contract       string           `yaml:"contract" validate:"required"`
	Implementation string           `yaml:"implementation"`
	Scope          string           `yaml:"scope" validate:"omitempty,oneof=transient scoped singleton"`
	Aspects        []AspectDocument `yaml:"aspects" validate:"dive"`
}

// AspectDocument attaches one aspect factory. Without methods it covers the whole contract.
type AspectDocument struct {
	Factory   string   `yaml:"factory" validate:"required"`
	SortOrder *int     `yaml:"sortOrder" validate:"omitempty,min=1"`
	Methods   []string `yaml:"methods" validate:"dive,required"`
}

var validate = validator.New()

// ReadDocument reads and validates the document at path.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// ParseDocument decodes and validates a document. Unknown keys are rejected.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode aspect configuration: %w", err)
	}
	if err := validate.Struct(&doc); err != nil {
		return nil, fmt.Errorf("invalid aspect configuration: %w", err)
	}
	return &doc, nil
}
