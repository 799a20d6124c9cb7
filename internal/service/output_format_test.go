package service

import (
	"strings"
	"testing"
)

func TestFormatModelOutput_Empty(t *testing.T) {
	if got := FormatModelOutput("   \n "); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestFormatModelOutput_StripsBOM(t *testing.T) {
	if got := FormatModelOutput("\uFEFFhello"); got != "hello" {
		t.Fatalf("expected BOM stripped, got %q", got)
	}
}

func TestFormatModelOutput_ClosesUnbalancedFence(t *testing.T) {
	in := "Try this:\n```go\nfunc main() {}\n"
	got := FormatModelOutput(in)
	if !strings.HasSuffix(got, "```") {
		t.Fatalf("expected closing fence appended, got %q", got)
	}
}

func TestFormatModelOutput_TagsUntaggedGoFence(t *testing.T) {
	in := "Use this:\n```\npackage main\n\nfunc main() {}\n```\nDone."
	got := FormatModelOutput(in)
	if !strings.Contains(got, "```go\n") {
		t.Fatalf("expected go tag on fence, got %q", got)
	}
}

func TestFormatModelOutput_LeavesTaggedFencesAlone(t *testing.T) {
	in := "```python\nprint('hi')\n```"
	if got := FormatModelOutput(in); got != in {
		t.Fatalf("tagged fence must not change, got %q", got)
	}
}

func TestFormatModelOutput_PlainTextUntouched(t *testing.T) {
	in := "Just an explanation with no code."
	if got := FormatModelOutput(in); got != in {
		t.Fatalf("plain text must not change, got %q", got)
	}
}

func TestDetectCodeLanguage_Rules(t *testing.T) {
	cases := []struct {
		name string
		code string
		want string
	}{
		{"go package", "package main\n\nfunc main() {}", "go"},
		{"go func", "func add(a, b int) int { return a + b }", "go"},
		{"python def", "def add(a, b):\n    return a + b", "python"},
		{"python import", "from os import path", "python"},
		{"bash shebang", "#!/bin/bash\nls -la", "bash"},
		{"bash npm", "npm install express", "bash"},
		{"json object", `{"name": "test", "value": 1}`, "json"},
		{"javascript const", "const total = items.length", "javascript"},
		{"javascript arrow", "items.map(i => i.id)", "javascript"},
		{"unknown", "some prose, not code", ""},
		{"empty", "   ", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectCodeLanguage(tc.code); got != tc.want {
				t.Fatalf("DetectCodeLanguage(%q) = %q, want %q", tc.code, got, tc.want)
			}
		})
	}
}
