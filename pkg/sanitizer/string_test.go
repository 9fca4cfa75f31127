package sanitizer

import "testing"

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "trim spaces",
			input: "  weekly standup  ",
			want:  "weekly standup",
		},
		{
			name:  "multiple spaces between words",
			input: "weekly    standup",
			want:  "weekly standup",
		},
		{
			name:  "tabs and newlines",
			input: "weekly\t\nstandup",
			want:  "weekly standup",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "   \t\n  ",
			want:  "",
		},
		{
			name:  "preserve special characters",
			input: " Café & Spa™ ",
			want:  "Café & Spa™",
		},
		{
			name:  "hebrew characters",
			input: " חדר ישיבות ",
			want:  "חדר ישיבות",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimAndNormalize(tt.input)
			if got != tt.want {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeNote(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain note",
			input: "team sync",
			want:  "team sync",
		},
		{
			name:  "collapse whitespace",
			input: "  team \t sync \n with  design ",
			want:  "team sync with design",
		},
		{
			name:  "drop control characters",
			input: "team\x00 sync\x1b[31m",
			want:  "team sync[31m",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
		{
			name:  "emoji survives",
			input: "standup 🎉",
			want:  "standup 🎉",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeNote(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeNote(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
