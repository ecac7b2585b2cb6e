package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	compileMu sync.Mutex
	compiled  = make(map[string]*jsonschema.Schema)
)

// Validate checks a raw JSON payload against the named schema.
// Compiled schemas are cached for the life of the process.
func Validate(name string, payload []byte) error {
	s, err := compile(name)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", name, err)
	}

	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%s payload does not match schema: %w", name, err)
	}
	return nil
}

func compile(name string) (*jsonschema.Schema, error) {
	compileMu.Lock()
	defer compileMu.Unlock()

	if s, ok := compiled[name]; ok {
		return s, nil
	}

	def, err := Get(name)
	if err != nil {
		return nil, err
	}

	url := filename(name)
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader([]byte(def.Source))); err != nil {
		return nil, fmt.Errorf("failed to load schema %s: %w", name, err)
	}
	s, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	compiled[name] = s
	return s, nil
}
