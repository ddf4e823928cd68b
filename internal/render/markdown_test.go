package render

import (
	"strings"
	"testing"
)

const sample = "## Presenting complaint\nChest pain for 2 days.\n\n## Plan\n- ECG\n- Troponin\n"

func TestHTML(t *testing.T) {
	out := HTML(sample)
	if !strings.Contains(out, "<h2>Presenting complaint</h2>") {
		t.Fatalf("heading not rendered: %s", out)
	}
	if !strings.Contains(out, "<li>ECG</li>") {
		t.Fatalf("list not rendered: %s", out)
	}
	if HTML("  ") != "" {
		t.Fatalf("blank input should render empty")
	}
}

func TestHTMLEscapesRawHTML(t *testing.T) {
	out := HTML("hello <script>alert(1)</script>")
	if strings.Contains(out, "<script>") {
		t.Fatalf("raw html must be skipped: %s", out)
	}
}

func TestPlainText(t *testing.T) {
	out, err := PlainText(sample)
	if err != nil {
		t.Fatalf("plain text: %v", err)
	}
	for _, want := range []string{"PRESENTING COMPLAINT", "Chest pain for 2 days.", "- ECG", "- Troponin"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestHeadings(t *testing.T) {
	got := Headings(sample)
	if len(got) != 2 || got[0] != "Presenting complaint" || got[1] != "Plan" {
		t.Fatalf("unexpected headings: %v", got)
	}
}
