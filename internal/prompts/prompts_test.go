package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestGetEmbeddedDefault(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())

	prompt, err := store.Get("main_orchestrator_system")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(prompt, "orchestrator") {
		t.Errorf("unexpected prompt content: %q", prompt)
	}
}

func TestGetAcceptsExtension(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())

	withExt, err := store.Get("math_operator_system.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	withoutExt, err := store.Get("math_operator_system")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if withExt != withoutExt {
		t.Error("extension handling should not change the prompt")
	}
}

func TestDiskOverrideWins(t *testing.T) {
	dir := t.TempDir()
	override := "You are a custom orchestrator."
	if err := os.WriteFile(filepath.Join(dir, "main_orchestrator_system.md"), []byte(override+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(dir, zap.NewNop())
	prompt, err := store.Get("main_orchestrator_system")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prompt != override {
		t.Errorf("expected override, got %q", prompt)
	}
}

func TestGetUnknownPrompt(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	if _, err := store.Get("no_such_prompt"); err == nil {
		t.Error("expected error for unknown prompt")
	}
}

func TestAvailableListsAllAgents(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	names := store.Available()

	want := []string{
		"datetime_operator_system",
		"main_orchestrator_system",
		"math_operator_system",
		"weather_operator_system",
	}
	for _, w := range want {
		found := false
		for _, n := range names {
			if n == w {
				found = true
			}
		}
		if !found {
			t.Errorf("missing prompt %q in %v", w, names)
		}
	}
}
