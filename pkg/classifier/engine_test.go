package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/ilkoid/mastication/pkg/config"
	"github.com/ilkoid/mastication/pkg/llm"
	"github.com/ilkoid/mastication/pkg/prompt"
	"github.com/ilkoid/mastication/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCategories = []string{"events_calendar", "ideas", "misc"}

// fakeProvider возвращает заранее заданный ответ и запоминает запрос.
type fakeProvider struct {
	content  string
	err      error
	messages []llm.Message
	opts     llm.GenerateOptions
	calls    int
}

func (f *fakeProvider) Generate(_ context.Context, messages []llm.Message, opts ...llm.GenerateOption) (llm.Message, error) {
	f.calls++
	f.messages = messages
	f.opts = llm.ApplyOptions(llm.GenerateOptions{}, opts...)
	if f.err != nil {
		return llm.Message{}, f.err
	}
	return llm.Message{Role: llm.RoleAssistant, Content: f.content}, nil
}

func testAppConfig() *config.AppConfig {
	return &config.AppConfig{
		LLM: config.LLMConfig{
			Model:        "test-model",
			Temperature:  0.2,
			MaxTokens:    400,
			SystemPrompt: "You triage notes.",
		},
		Classification: config.ClassificationConfig{
			Categories: testCategories,
			Guidelines: map[string]string{
				"events_calendar": "Appointments and meetings",
			},
		},
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantKind  error
		wantCat   string
		wantTags  []string
		wantSub   *string
		wantError string
	}{
		{
			name:     "plain JSON",
			raw:      `{"category":"ideas","confidence":0.8,"subcategory":null,"summary":"s","tags":["a","b"]}`,
			wantCat:  "ideas",
			wantTags: []string{"a", "b"},
		},
		{
			name:     "fenced JSON",
			raw:      "```json\n{\"category\":\"misc\",\"confidence\":1,\"summary\":\"s\",\"tags\":[]}\n```",
			wantCat:  "misc",
			wantTags: []string{},
		},
		{
			name:     "subcategory present",
			raw:      `{"category":"ideas","confidence":0.5,"subcategory":"app","summary":"s","tags":[]}`,
			wantCat:  "ideas",
			wantTags: []string{},
			wantSub:  strPtr("app"),
		},
		{
			name:     "empty subcategory becomes null",
			raw:      `{"category":"ideas","confidence":0.5,"subcategory":"","summary":"s","tags":[]}`,
			wantCat:  "ideas",
			wantTags: []string{},
		},
		{
			name:      "prose around JSON",
			raw:       `Sure! {"category":"ideas","confidence":0.5,"summary":"s","tags":[]}`,
			wantKind:  ErrResponseFormat,
			wantError: "not a JSON object",
		},
		{
			name:      "empty",
			raw:       "   ",
			wantKind:  ErrResponseFormat,
			wantError: "empty response",
		},
		{
			name:      "array instead of object",
			raw:       `["ideas"]`,
			wantKind:  ErrResponseFormat,
			wantError: "not a JSON object",
		},
		{
			name:      "missing tags",
			raw:       `{"category":"ideas","confidence":0.5,"summary":"s"}`,
			wantKind:  ErrResponseFormat,
			wantError: "missing required field: tags",
		},
		{
			name:      "missing confidence",
			raw:       `{"category":"ideas","summary":"s","tags":[]}`,
			wantKind:  ErrResponseFormat,
			wantError: "missing required field: confidence",
		},
		{
			name:      "confidence as string",
			raw:       `{"category":"ideas","confidence":"0.9","summary":"s","tags":[]}`,
			wantKind:  ErrResponseFormat,
			wantError: "confidence must be a number",
		},
		{
			name:      "tags with numbers",
			raw:       `{"category":"ideas","confidence":0.9,"summary":"s","tags":[1,2]}`,
			wantKind:  ErrResponseFormat,
			wantError: "tags must be an array of strings",
		},
		{
			name:      "null tags",
			raw:       `{"category":"ideas","confidence":0.9,"summary":"s","tags":null}`,
			wantKind:  ErrResponseFormat,
			wantError: "tags must be an array of strings",
		},
		{
			name:      "subcategory as number",
			raw:       `{"category":"ideas","confidence":0.9,"subcategory":5,"summary":"s","tags":[]}`,
			wantKind:  ErrResponseFormat,
			wantError: "subcategory must be a string or null",
		},
		{
			name:     "unknown category",
			raw:      `{"category":"not_a_real_category","confidence":0.9,"summary":"s","tags":[]}`,
			wantKind: ErrInvalidCategory,
		},
		{
			name:     "category case must match",
			raw:      `{"category":"Ideas","confidence":0.9,"summary":"s","tags":[]}`,
			wantKind: ErrInvalidCategory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Parse(tt.raw, testCategories)

			if tt.wantKind != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantKind), "got %v", err)
				if tt.wantError != "" {
					assert.Contains(t, err.Error(), tt.wantError)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantCat, res.Category)
			assert.Equal(t, tt.wantTags, res.Tags)
			assert.Equal(t, tt.wantSub, res.Subcategory)
		})
	}
}

func TestParse_InvalidCategoryDetails(t *testing.T) {
	_, err := Parse(`{"category":"not_a_real_category","confidence":0.9,"summary":"s","tags":[]}`, testCategories)

	var ice *InvalidCategoryError
	require.ErrorAs(t, err, &ice)
	assert.Equal(t, "not_a_real_category", ice.Category)
	assert.Equal(t, testCategories, ice.Allowed)
}

func TestBuildPrompt(t *testing.T) {
	cfg := testAppConfig()
	prompt := BuildPrompt(cfg.Classification, "test_event.txt", "Dentist appointment on Thursday at 3:00 PM")

	assert.True(t, strings.HasPrefix(prompt, "CLASSIFICATION TASK"))
	assert.Contains(t, prompt, "- events_calendar: Appointments and meetings\n")
	assert.Contains(t, prompt, "- ideas: No description available\n")
	assert.Contains(t, prompt, "CONTENT TO CLASSIFY (from file: test_event.txt)")
	assert.Contains(t, prompt, "Dentist appointment on Thursday at 3:00 PM")
	assert.Contains(t, prompt, "Only output the JSON object")

	// Порядок категорий совпадает с конфигурацией
	assert.Less(t, strings.Index(prompt, "- events_calendar"), strings.Index(prompt, "- ideas"))
	assert.Less(t, strings.Index(prompt, "- ideas"), strings.Index(prompt, "- misc"))
}

func TestEngine_Classify_EventScenario(t *testing.T) {
	provider := &fakeProvider{
		content: "```json\n" + `{"category":"events_calendar","confidence":0.95,"subcategory":"appointment","summary":"Dentist visit Thursday 3 PM.","tags":["dentist","appointment"]}` + "\n```",
	}
	engine := New(provider, testAppConfig())

	res, err := engine.Classify(context.Background(), Request{
		FileName: "test_event.txt",
		Content:  "Dentist appointment on Thursday at 3:00 PM",
	})
	require.NoError(t, err)

	assert.Equal(t, "events_calendar", res.Category)
	assert.GreaterOrEqual(t, res.Confidence, 0.9)
	assert.Equal(t, []string{"dentist", "appointment"}, res.Tags)

	require.Len(t, provider.messages, 2)
	assert.Equal(t, llm.RoleSystem, provider.messages[0].Role)
	assert.Equal(t, "You triage notes.", provider.messages[0].Content)
	assert.Equal(t, llm.RoleUser, provider.messages[1].Role)

	assert.Equal(t, "test-model", provider.opts.Model)
	assert.Equal(t, 0.2, provider.opts.Temperature)
	assert.Equal(t, 400, provider.opts.MaxTokens)
}

func TestEngine_NoSystemPrompt(t *testing.T) {
	cfg := testAppConfig()
	cfg.LLM.SystemPrompt = ""

	msgs, err := New(&fakeProvider{}, cfg).Messages(Request{FileName: "a.txt", Content: "x"})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, llm.RoleUser, msgs[0].Role)
}

func TestEngine_TruncatesContent(t *testing.T) {
	cfg := testAppConfig()
	cfg.Processing.MaxContentChars = 5

	msgs, err := New(&fakeProvider{}, cfg).Messages(Request{FileName: "a.txt", Content: "ПриветМир"})
	require.NoError(t, err)
	user := msgs[len(msgs)-1].Content
	assert.Contains(t, user, "Приве\n")
	assert.NotContains(t, user, "ПриветМир")
}

func TestEngine_TransportErrorPassesThrough(t *testing.T) {
	provider := &fakeProvider{err: &llm.RateLimitError{Message: "slow down"}}
	engine := New(provider, testAppConfig())

	_, err := engine.Classify(context.Background(), Request{FileName: "a.txt", Content: "x"})
	assert.True(t, errors.Is(err, llm.ErrRateLimit))
	assert.Equal(t, 1, provider.calls, "no retry inside the engine")
}

func TestEngine_ConfidenceOutOfRangeIsLogged(t *testing.T) {
	var buf bytes.Buffer
	utils.SetOutput(&buf)
	defer utils.SetOutput(os.Stderr)

	provider := &fakeProvider{content: `{"category":"ideas","confidence":1.7,"summary":"s","tags":[]}`}
	res, err := New(provider, testAppConfig()).Classify(context.Background(), Request{FileName: "a.txt", Content: "x"})

	require.NoError(t, err)
	assert.Equal(t, 1.7, res.Confidence)
	assert.Contains(t, buf.String(), "Confidence outside [0, 1]")
}

func TestEngine_JSONSchemaOptions(t *testing.T) {
	cfg := testAppConfig()
	cfg.LLM.ResponseFormat = config.ResponseFormatJSONSchema

	provider := &fakeProvider{content: `{"category":"ideas","confidence":0.5,"subcategory":"","summary":"s","tags":[]}`}
	_, err := New(provider, cfg).Classify(context.Background(), Request{FileName: "a.txt", Content: "x"})
	require.NoError(t, err)

	assert.Equal(t, "json_schema", provider.opts.Format)
	assert.Equal(t, "classification", provider.opts.SchemaName)
	require.NotNil(t, provider.opts.Schema)

	raw, err := json.Marshal(provider.opts.Schema)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"enum":["events_calendar","ideas","misc"]`)
}

func TestEngine_PromptFile(t *testing.T) {
	pf, err := prompt.Parse([]byte(`
config:
  model: "override-model"
  max_tokens: 100
messages:
  - role: system
    content: "Custom system."
  - role: user
    content: "{{range .Categories}}[{{.Name}}={{.Guideline}}]{{end}} {{.FileName}}: {{.Content}}"
`))
	require.NoError(t, err)

	provider := &fakeProvider{content: `{"category":"misc","confidence":0.6,"summary":"s","tags":[]}`}
	res, err := New(provider, testAppConfig(), WithPrompt(pf)).Classify(context.Background(), Request{
		FileName: "n.txt",
		Content:  "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "misc", res.Category)

	require.Len(t, provider.messages, 2)
	assert.Equal(t, "Custom system.", provider.messages[0].Content)
	assert.Equal(t,
		"[events_calendar=Appointments and meetings][ideas=No description available][misc=No description available] n.txt: hello",
		provider.messages[1].Content)

	assert.Equal(t, "override-model", provider.opts.Model)
	assert.Equal(t, 100, provider.opts.MaxTokens)
	assert.Equal(t, 0.2, provider.opts.Temperature, "zero temperature in prompt config keeps llm section value")
}

func strPtr(s string) *string { return &s }
