package cmd

import (
	"strings"
	"testing"

	"github.com/StreetFDN/roboglobe/internal/narrative"
)

func TestFormatComponents(t *testing.T) {
	components := map[string]float64{
		"news":       60.5,
		"github":     82.0,
		"indexAlpha": 44.4,
	}
	weights := narrative.Weights{"github": 0.10, "news": 0.10, "indexAlpha": 0.30}

	lines := formatComponents(components, weights)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	// Sorted by component name.
	if !strings.HasPrefix(lines[0], "github") {
		t.Errorf("expected github first, got %q", lines[0])
	}
	if !strings.Contains(lines[0], "82.0") || !strings.Contains(lines[0], "(weight 0.10)") {
		t.Errorf("unexpected github line: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "indexAlpha") {
		t.Errorf("expected indexAlpha second, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "60.5") {
		t.Errorf("unexpected news line: %q", lines[2])
	}
}

func TestFormatComponentsUnweighted(t *testing.T) {
	lines := formatComponents(map[string]float64{"news": 50.0}, narrative.Weights{})
	if len(lines) != 1 || !strings.Contains(lines[0], "(weight 0.00)") {
		t.Errorf("expected zero weight rendered, got %v", lines)
	}
}

func TestOpenBrowserRejectsNonHTTP(t *testing.T) {
	for _, raw := range []string{"file:///etc/passwd", "javascript:alert(1)", "ftp://example.com", ""} {
		if err := openBrowser(raw); err == nil {
			t.Errorf("openBrowser(%q): expected error, got nil", raw)
		}
	}
}
