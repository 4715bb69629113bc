package google

import (
	"testing"

	"google.golang.org/genai"

	"estimator/pkg/llm"
)

func TestConvertMessages(t *testing.T) {
	contents, system, err := convertMessages([]llm.CompletionMessage{
		{Role: llm.RoleSystem, Content: "You are an estimator"},
		{Role: llm.RoleUser, Content: "Estimate this"},
		{Role: llm.RoleAssistant, Content: "10 person-days"},
		{Role: llm.RoleUser, Content: "Make it cheaper"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if system != "You are an estimator" {
		t.Errorf("system = %q", system)
	}
	if len(contents) != 3 {
		t.Fatalf("len(contents) = %d, want 3", len(contents))
	}

	wantRoles := []genai.Role{genai.RoleUser, genai.RoleModel, genai.RoleUser}
	for i, want := range wantRoles {
		if genai.Role(contents[i].Role) != want {
			t.Errorf("contents[%d].Role = %q, want %q", i, contents[i].Role, want)
		}
	}
}

func TestConvertMessages_Empty(t *testing.T) {
	if _, _, err := convertMessages(nil); err == nil {
		t.Error("expected error for empty message list")
	}

	onlySystem := []llm.CompletionMessage{{Role: llm.RoleSystem, Content: "x"}}
	if _, _, err := convertMessages(onlySystem); err == nil {
		t.Error("expected error for system-only message list")
	}
}
