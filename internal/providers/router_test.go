package providers

import "testing"

func TestRoute(t *testing.T) {
	cases := []struct {
		modelID string
		want    Provider
	}{
		{"llama-3.3-70b-versatile", ProviderGroq},
		{"llama-3.1-8b-instant", ProviderGroq},
		{"mixtral-8x7b-32768", ProviderGroq},
		{"whisper-large-v3", ProviderGroq},
		{"anthropic/claude-sonnet-4", ProviderOpenRouter},
		{"openai/gpt-4o", ProviderOpenRouter},
		{"some/unknown-model", ProviderOpenRouter},
		{"", ProviderOpenRouter},
	}

	for _, tc := range cases {
		if got := Route(tc.modelID); got != tc.want {
			t.Errorf("Route(%q) = %s, want %s", tc.modelID, got, tc.want)
		}
	}
}

func TestRandomSelector(t *testing.T) {
	selector := NewRandomSelector([]string{"key-a", "key-b", "", "key-c"}, 42)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := selector.Select()
		if err != nil {
			t.Fatalf("select returned error: %v", err)
		}
		if key == "" {
			t.Fatalf("empty keys must be filtered out")
		}
		seen[key] = true
	}

	if len(seen) != 3 {
		t.Fatalf("expected all 3 keys to be used over 100 picks, saw %d", len(seen))
	}
}

func TestRandomSelectorNoKeys(t *testing.T) {
	selector := NewRandomSelector(nil, 1)
	if _, err := selector.Select(); err != ErrNoCredentials {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}
