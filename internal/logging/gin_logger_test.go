package logging

import "testing"

func TestMaskCredential(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sk-chatads-1234567890", "sk-c...7890"},
		{"abcdef", "ab...ef"},
		{"abc", "a...c"},
		{"ab", "ab"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := MaskCredential(tt.in); got != tt.want {
			t.Errorf("MaskCredential(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMaskSensitiveQuery(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"api key masked", "api_key=sk-chatads-1234567890", "api_key=sk-c...7890"},
		{"token masked", "access_token=abcdef", "access_token=ab...ef"},
		{"plain params untouched", "message=best+laptop&country=US", "message=best+laptop&country=US"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		got := maskSensitiveQuery(tt.raw)
		if got != tt.want {
			t.Errorf("%s: maskSensitiveQuery(%q) = %q, want %q", tt.name, tt.raw, got, tt.want)
		}
	}
}
