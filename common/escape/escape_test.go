package escape

import "testing"

func TestEncode_DoublesBareBraces(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"no braces", "hello world", "hello world"},
		{"single open", "{", "{{"},
		{"single close", "}", "}}"},
		{"placeholder", "Hello {name}!", "Hello {{name}}!"},
		{"already escaped", "Hello {{name}}!", "Hello {{name}}!"},
		{"mixed", "a {b} c {{d}} e", "a {{b}} c {{d}} e"},
		{"json snippet", `{"a": 1}`, `{{"a": 1}}`},
		{"triple run keeps pair doubles leftover", "{{{", "{{{{"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Encode(tc.in)
			if got != tc.want {
				t.Errorf("Encode(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestEncode_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		"{", "}", "{}", "{{}}",
		"Hello {name}, your balance is {balance}.",
		"Hello {{name}}, partially {escaped}.",
		"{{{", "}}}", "{{{{}}}}",
		"<Section>\nUse {tool} when asked.\n</Section>",
	}

	for _, s := range inputs {
		once := Encode(s)
		twice := Encode(once)
		if once != twice {
			t.Errorf("Encode not idempotent for %q: first %q, second %q", s, once, twice)
		}
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	// Round-trip holds for inputs without pre-existing doubled braces
	inputs := []string{
		"",
		"no braces at all",
		"{", "}", "{}",
		"Hello {name}!",
		`{"key": {"nested": true}}`,
		"multi\nline {var}\ntext",
	}

	for _, s := range inputs {
		got := Decode(Encode(s))
		if got != s {
			t.Errorf("Decode(Encode(%q)) = %q, want original", s, got)
		}
	}
}

func TestDecode_Contraction(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"{{", "{"},
		{"}}", "}"},
		{"{{name}}", "{name}"},
		{"no braces", "no braces"},
		{"{single}", "{single}"},
	}

	for _, tc := range cases {
		if got := Decode(tc.in); got != tc.want {
			t.Errorf("Decode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsEscaped(t *testing.T) {
	if !IsEscaped("Hello {{name}}!") {
		t.Error("fully escaped content should report IsEscaped")
	}
	if IsEscaped("Hello {name}!") {
		t.Error("bare braces should not report IsEscaped")
	}
	if !IsEscaped("no braces") {
		t.Error("content without braces is trivially escaped")
	}
}
