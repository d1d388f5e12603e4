// Package llm provides options pattern for LLM generation parameters.
package llm

import "encoding/json"

// GenerateOptions holds parameters for one LLM generation.
// Defaults come from config.yaml (llm section), call sites may override them.
type GenerateOptions struct {
	// Model is the model identifier (e.g., "openai/gpt-4o-mini")
	Model string

	// Temperature controls randomness in responses (0.0 = deterministic)
	Temperature float64

	// MaxTokens limits the response length
	MaxTokens int

	// Format specifies response format: "", "json_object" or "json_schema"
	Format string

	// Schema is the JSON schema used when Format is "json_schema"
	Schema json.Marshaler

	// SchemaName names the schema in the request
	SchemaName string
}

// GenerateOption is a functional option for configuring GenerateOptions.
type GenerateOption func(*GenerateOptions)

// WithModel sets the model for generation.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

// WithTemperature sets the temperature for generation.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

// WithMaxTokens sets the maximum tokens for generation.
func WithMaxTokens(tokens int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = tokens
	}
}

// WithFormat sets the response format for generation.
// Use "json_object" for structured JSON output.
func WithFormat(format string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Format = format
	}
}

// WithSchema sets a strict JSON schema and switches Format to "json_schema".
func WithSchema(name string, schema json.Marshaler) GenerateOption {
	return func(o *GenerateOptions) {
		o.Format = "json_schema"
		o.SchemaName = name
		o.Schema = schema
	}
}

// ApplyOptions folds opts over base.
func ApplyOptions(base GenerateOptions, opts ...GenerateOption) GenerateOptions {
	for _, opt := range opts {
		if opt != nil {
			opt(&base)
		}
	}
	return base
}
