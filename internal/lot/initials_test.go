package lot

import "testing"

func TestInitials(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple word", "Pane", "PE"},
		{"single character", "X", "XX"},
		{"single lowercase character", "q", "QQ"},
		{"empty", "", "XX"},
		{"whitespace only", "  \t ", "XX"},
		{"internal whitespace stripped", " Al Bi ", "AI"},
		{"two words", "Mario Rossi", "MI"},
		{"already uppercase", "PANETTONE", "PE"},
		{"digits kept", "Pane 2", "P2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Initials(tc.input); got != tc.expected {
				t.Fatalf("Initials(%q) = %q, expected %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitialsCollide(t *testing.T) {
	// The derivation is lossy: distinct names may share initials. This is
	// load-bearing for reconciliation, which must return candidate lists.
	if Initials("Alba") != Initials("Arancia") {
		t.Fatalf("expected Alba and Arancia to share initials")
	}
	if Initials("Alba") != "AA" {
		t.Fatalf("expected AA, got %q", Initials("Alba"))
	}
}
