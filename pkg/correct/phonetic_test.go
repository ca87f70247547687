package correct

import "testing"

func TestNoop_ReturnsInput(t *testing.T) {
	t.Parallel()

	if got := (Noop{}).Correct("anything at all"); got != "anything at all" {
		t.Errorf("Noop.Correct = %q", got)
	}
}

func TestPhonetic_EmptyVocabularyNeverRewrites(t *testing.T) {
	t.Parallel()

	c := NewPhonetic(nil)
	if got := c.Correct("kubernetes cluster"); got != "kubernetes cluster" {
		t.Errorf("Correct = %q, want input unchanged", got)
	}
}

func TestPhonetic_CorrectsMisheardName(t *testing.T) {
	t.Parallel()

	c := NewPhonetic([]string{"Kubernetes", "PostgreSQL"})

	tests := []struct {
		in   string
		want string
	}{
		{"deploy to coobernetes now", "deploy to Kubernetes now"},
		{"restart postgresql please", "restart postgresql please"}, // already correct, case ignored
		{"completely unrelated words", "completely unrelated words"},
	}
	for _, tt := range tests {
		if got := c.Correct(tt.in); got != tt.want {
			t.Errorf("Correct(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPhonetic_PreservesPunctuation(t *testing.T) {
	t.Parallel()

	c := NewPhonetic([]string{"Eldrinax"})
	got := c.Correct("ask eldrinacks, then leave")
	if got != "ask Eldrinax, then leave" {
		t.Errorf("Correct = %q, want punctuation preserved around the replacement", got)
	}
}

func TestPhonetic_RequiresPhoneticOverlap(t *testing.T) {
	t.Parallel()

	// "cat" and "Kubernetes" share no metaphone codes; even a generous
	// minimum score must not let string similarity alone rewrite.
	c := NewPhonetic([]string{"Kubernetes"}, WithMinScore(0.1))
	if got := c.Correct("the cat sat"); got != "the cat sat" {
		t.Errorf("Correct = %q, want no rewrite without phonetic overlap", got)
	}
}

func TestPhonetic_MinScoreGatesRewrites(t *testing.T) {
	t.Parallel()

	// With an impossible minimum score nothing rewrites, phonetic match or
	// not.
	c := NewPhonetic([]string{"Kubernetes"}, WithMinScore(1.1))
	if got := c.Correct("deploy to coobernetes now"); got != "deploy to coobernetes now" {
		t.Errorf("Correct = %q, want no rewrite above max score", got)
	}
}

func TestPhonetic_EmptyInput(t *testing.T) {
	t.Parallel()

	c := NewPhonetic([]string{"Anything"})
	if got := c.Correct(""); got != "" {
		t.Errorf("Correct(\"\") = %q", got)
	}
}
