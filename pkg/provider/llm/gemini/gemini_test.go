package gemini

import (
	"context"
	"testing"

	"google.golang.org/genai"

	"github.com/arcveil/inkbridge/pkg/provider/llm"
)

// TestNew_Validation checks required-field rejection.
func TestNew_Validation(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, "", "gemini-2.5-pro"); err == nil {
		t.Error("expected error for empty API key")
	}
	if _, err := New(ctx, "AIza-test", ""); err == nil {
		t.Error("expected error for empty model")
	}
}

// TestBuildConfig_LiftsSystemMessage checks a leading system message
// becomes SystemInstruction rather than a content turn (§4.1).
func TestBuildConfig_LiftsSystemMessage(t *testing.T) {
	p := &Provider{model: "gemini-2.5-pro"}
	cfg, contents := p.buildConfig(llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You are a translator."},
			{Role: llm.RoleUser, Content: "Translate this."},
		},
	})
	if cfg.SystemInstruction == nil {
		t.Fatal("expected SystemInstruction to be set")
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 remaining content, got %d", len(contents))
	}
}

// TestBuildConfig_AssistantBecomesModelRole checks assistant turns are
// renamed to the "model" role Gemini expects (§4.1).
func TestBuildConfig_AssistantBecomesModelRole(t *testing.T) {
	p := &Provider{model: "gemini-2.5-pro"}
	_, contents := p.buildConfig(llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "hi"},
			{Role: llm.RoleAssistant, Content: "hello"},
		},
	})
	if len(contents) != 2 {
		t.Fatalf("expected 2 contents, got %d", len(contents))
	}
	if contents[1].Role != genai.RoleModel {
		t.Errorf("expected role %q, got %q", genai.RoleModel, contents[1].Role)
	}
}

// TestBuildConfig_JSONModeSetsSchema checks JSON mode attaches the concrete
// response schema rather than a prompt instruction, unlike the Anthropic
// adapter (§4.1).
func TestBuildConfig_JSONModeSetsSchema(t *testing.T) {
	p := &Provider{model: "gemini-2.5-pro"}
	cfg, _ := p.buildConfig(llm.ChatRequest{
		Messages:       []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		ResponseFormat: llm.ResponseFormatJSONObject,
	})
	if cfg.ResponseMIMEType != "application/json" {
		t.Errorf("expected application/json mime type, got %q", cfg.ResponseMIMEType)
	}
	if cfg.ResponseSchema == nil {
		t.Fatal("expected a response schema to be set")
	}
}

// TestResponseSchema_HasSevenCategories checks the seventh "creatures"
// category is present alongside the original six.
func TestResponseSchema_HasSevenCategories(t *testing.T) {
	schema := responseSchema()
	entities, ok := schema.Properties["entities"]
	if !ok {
		t.Fatal("expected an entities property")
	}
	want := []string{"characters", "places", "organizations", "abilities", "titles", "equipment", "creatures"}
	for _, c := range want {
		if _, ok := entities.Properties[c]; !ok {
			t.Errorf("expected category %q in schema", c)
		}
	}
}

// TestMapFinishReason_SafetyBecomesTypedError checks every safety-adjacent
// finish reason surfaces as *llm.SafetyBlocked instead of an empty string
// (§4.1).
func TestMapFinishReason_SafetyBecomesTypedError(t *testing.T) {
	cases := []genai.FinishReason{
		genai.FinishReasonSafety,
		genai.FinishReasonRecitation,
		genai.FinishReasonBlocklist,
		genai.FinishReasonProhibitedContent,
		genai.FinishReasonSPII,
		genai.FinishReasonLanguage,
		genai.FinishReasonOther,
	}
	for _, reason := range cases {
		_, err := mapFinishReason(reason)
		if err == nil {
			t.Errorf("expected error for finish reason %q", reason)
			continue
		}
		var blocked *llm.SafetyBlocked
		if b, ok := err.(*llm.SafetyBlocked); ok {
			blocked = b
		} else {
			t.Errorf("expected *llm.SafetyBlocked for %q, got %T", reason, err)
			continue
		}
		if blocked.Provider != "gemini" {
			t.Errorf("expected provider gemini, got %q", blocked.Provider)
		}
	}
}

// TestMapFinishReason_Stop checks the happy path maps cleanly.
func TestMapFinishReason_Stop(t *testing.T) {
	reason, err := mapFinishReason(genai.FinishReasonStop)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason != llm.FinishStop {
		t.Errorf("expected FinishStop, got %q", reason)
	}
}

// TestMapFinishReason_MaxTokens checks truncation maps to FinishLength
// without surfacing an error here — the caller wraps TruncatedOutput.
func TestMapFinishReason_MaxTokens(t *testing.T) {
	reason, err := mapFinishReason(genai.FinishReasonMaxTokens)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason != llm.FinishLength {
		t.Errorf("expected FinishLength, got %q", reason)
	}
}

// TestCountTokens_Estimation checks the approximation returns a positive
// value proportional to input length.
func TestCountTokens_Estimation(t *testing.T) {
	p := &Provider{}
	msgs := []llm.Message{{Role: llm.RoleUser, Content: "Hello world, this is a test."}}
	count, err := p.CountTokens(msgs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count <= 0 {
		t.Errorf("expected positive token count, got %d", count)
	}
}

// TestMaxChars_Default checks the documented default (§6.3).
func TestMaxChars_Default(t *testing.T) {
	p, err := New(context.Background(), "test-key", "gemini-2.5-pro")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.MaxChars() != defaultMaxChars {
		t.Errorf("expected %d, got %d", defaultMaxChars, p.MaxChars())
	}
}
