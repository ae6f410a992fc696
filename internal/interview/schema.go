package interview

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	configSchema   = mustSchema("schemas/chat_config.json")
	questionSchema = mustSchema("schemas/questions.json")
)

func mustSchema(name string) *gojsonschema.Schema {
	raw, err := schemaFS.ReadFile(name)
	if err != nil {
		panic(err)
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("compile %s: %v", name, err))
	}
	return s
}

// ParseConfig validates raw against the chat config schema and decodes it.
func ParseConfig(raw json.RawMessage) (ChatConfig, error) {
	if err := validateJSON(configSchema, raw, ErrInvalidConfig); err != nil {
		return ChatConfig{}, err
	}
	var cfg ChatConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return ChatConfig{}, &ValidationError{Err: ErrInvalidConfig, Details: map[string]string{"config": err.Error()}}
	}
	for i := range cfg.Technologies {
		cfg.Technologies[i].Technology = strings.TrimSpace(cfg.Technologies[i].Technology)
	}
	return cfg, nil
}

// ParseQuestions validates a question bank document: an array of
// {text, technology, complexity} objects.
func ParseQuestions(raw []byte) ([]QuestionInput, error) {
	if err := validateJSON(questionSchema, raw, ErrInvalidInput); err != nil {
		return nil, err
	}
	var out []QuestionInput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return out, nil
}

func validateJSON(schema *gojsonschema.Schema, raw []byte, sentinel error) error {
	if len(raw) == 0 {
		return &ValidationError{Err: sentinel, Details: map[string]string{"(root)": "required"}}
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return &ValidationError{Err: sentinel, Details: map[string]string{"(root)": err.Error()}}
	}
	if result.Valid() {
		return nil
	}
	details := make(map[string]string, len(result.Errors()))
	for _, e := range result.Errors() {
		details[e.Field()] = e.Description()
	}
	return &ValidationError{Err: sentinel, Details: details}
}
