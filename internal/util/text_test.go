package util

import "testing"

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{
			name:   "empty",
			header: "",
			want:   "",
		},
		{
			name:   "lowercases",
			header: "Voltage",
			want:   "voltage",
		},
		{
			name:   "strips positional suffix",
			header: "Voltage.1",
			want:   "voltage",
		},
		{
			name:   "strips multi digit suffix",
			header: "Voltage.12",
			want:   "voltage",
		},
		{
			name:   "keeps inner dots",
			header: "cell.voltage",
			want:   "cell.voltage",
		},
		{
			name:   "collapses whitespace",
			header: "  Particle   Size  ",
			want:   "particle size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeHeader(tt.header); got != tt.want {
				t.Errorf("NormalizeHeader(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestNormalizeHeaderSuffixEquivalence(t *testing.T) {
	pairs := [][2]string{
		{"Voltage", "Voltage.1"},
		{"ratio", "ratio.2"},
		{"Particle Size", "Particle Size.3"},
	}

	for _, pair := range pairs {
		if NormalizeHeader(pair[0]) != NormalizeHeader(pair[1]) {
			t.Errorf("NormalizeHeader(%q) != NormalizeHeader(%q)", pair[0], pair[1])
		}
	}
}

func TestSanitizeEmbeddingText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "replaces newlines",
			text: "particle\nsize",
			want: "particle size",
		},
		{
			name: "drops quotes",
			text: `"conductivity" of 'membrane'`,
			want: "conductivity of membrane",
		},
		{
			name: "trims",
			text: "  loading  ",
			want: "loading",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeEmbeddingText(tt.text); got != tt.want {
				t.Errorf("SanitizeEmbeddingText(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestSanitizePostgresText(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{
			name:  "passes clean text",
			value: "Pt",
			want:  "Pt",
		},
		{
			name:  "strips nul bytes",
			value: "Pt\x00Pd",
			want:  "PtPd",
		},
		{
			name:  "strips invalid utf8",
			value: "Pt\xff",
			want:  "Pt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizePostgresText(tt.value); got != tt.want {
				t.Errorf("SanitizePostgresText(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}
