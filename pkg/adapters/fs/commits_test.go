package fs

import "testing"

func TestFormatCommitMessage(t *testing.T) {
	tests := []struct {
		name    string
		ctype   string
		scope   string
		subject string
		body    string
		want    string
	}{
		{
			name:    "simple",
			ctype:   "feat",
			subject: "create water_cycle",
			want:    "feat: create water_cycle\n\nCommitted-by: nodebook",
		},
		{
			name:    "with scope",
			ctype:   "docs",
			scope:   "alice",
			subject: "update water_cycle",
			want:    "docs(alice): update water_cycle\n\nCommitted-by: nodebook",
		},
		{
			name:    "with body",
			ctype:   "feat",
			scope:   "alice",
			subject: "create water_cycle",
			body:    "  Water Cycle\n",
			want:    "feat(alice): create water_cycle\n\nWater Cycle\n\nCommitted-by: nodebook",
		},
		{
			name:    "default type",
			subject: "ignore scratch files",
			want:    "chore: ignore scratch files\n\nCommitted-by: nodebook",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatCommitMessage(tt.ctype, tt.scope, tt.subject, tt.body)
			if got != tt.want {
				t.Errorf("FormatCommitMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
