package dictionary

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewHasDefaults(t *testing.T) {
	d := New()
	stats := d.Stats()
	if stats.TotalTerms == 0 {
		t.Fatal("no default terms")
	}
	if stats.TotalCorrections == 0 {
		t.Fatal("no default corrections")
	}
	if !d.Contains("closed guard") {
		t.Error("closed guard missing")
	}
	if d.Corrections()["coast guard"] != "closed guard" {
		t.Error("seed correction missing")
	}
}

func TestGeneratePromptMentionsKeyTerms(t *testing.T) {
	prompt := New().GeneratePrompt()
	for _, term := range []string{"closed guard", "armbar"} {
		if !strings.Contains(prompt, term) {
			t.Errorf("prompt missing %q", term)
		}
	}
	if !strings.Contains(prompt, "Brazilian Jiu-Jitsu") {
		t.Error("prompt missing domain framing")
	}
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "terms.txt")
	content := "guards: rubber guard\n# comment\nsubmissions: twister\nloose line\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := FromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Contains("rubber guard") {
		t.Error("rubber guard not loaded")
	}
	if !d.Contains("twister") {
		t.Error("twister not loaded")
	}
	if !d.Contains("loose line") {
		t.Error("uncategorized line not kept")
	}
}

func TestFromFileMissing(t *testing.T) {
	if _, err := FromFile(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatal("expected error")
	}
}
