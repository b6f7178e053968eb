package chapters

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/chapter.json
var schemaFS embed.FS

// ErrInvalidRecord is returned for records that fail schema validation.
var ErrInvalidRecord = errors.New("invalid chapter record")

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func recordSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		data, err := schemaFS.ReadFile("schemas/chapter.json")
		if err != nil {
			schemaErr = fmt.Errorf("failed to read chapter schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("chapter.json", bytes.NewReader(data)); err != nil {
			schemaErr = fmt.Errorf("failed to load chapter schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("chapter.json")
	})
	return compiledSchema, schemaErr
}

// ValidateRecord checks a raw record against the chapter schema.
func ValidateRecord(raw json.RawMessage) error {
	schema, err := recordSchema()
	if err != nil {
		return err
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return nil
}
