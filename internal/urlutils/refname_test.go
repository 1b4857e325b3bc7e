package urlutils

import (
	"errors"
	"testing"
)

func TestValidateBranch(t *testing.T) {
	tests := []struct {
		name    string
		branch  string
		wantErr bool
	}{
		{name: "simple", branch: "main"},
		{name: "nested", branch: "feature/x"},
		{name: "dotted version", branch: "release-1.2"},
		{name: "empty", branch: "", wantErr: true},
		{name: "leading dash", branch: "-bad", wantErr: true},
		{name: "double dot", branch: "bad..name", wantErr: true},
		{name: "trailing slash", branch: "bad/", wantErr: true},
		{name: "leading slash", branch: "/bad", wantErr: true},
		{name: "trailing dot", branch: "bad.", wantErr: true},
		{name: "space", branch: "bad name", wantErr: true},
		{name: "lone at", branch: "@", wantErr: true},
		{name: "reflog syntax", branch: "ref@{1}", wantErr: true},
		{name: "double slash", branch: "a//b", wantErr: true},
		{name: "tilde", branch: "a~1", wantErr: true},
		{name: "caret", branch: "a^", wantErr: true},
		{name: "colon", branch: "a:b", wantErr: true},
		{name: "question mark", branch: "a?", wantErr: true},
		{name: "asterisk", branch: "a*", wantErr: true},
		{name: "open bracket", branch: "a[b", wantErr: true},
		{name: "backslash", branch: `a\b`, wantErr: true},
		{name: "tab", branch: "a\tb", wantErr: true},
		{name: "DEL", branch: "a\x7fb", wantErr: true},
		{name: "component starting with dot", branch: "feature/.hidden", wantErr: true},
		{name: "lock suffix", branch: "main.lock", wantErr: true},
		{name: "at inside name", branch: "user@host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBranch(tt.branch)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidBranch) {
					t.Errorf("ValidateBranch(%q) error = %v, want %v", tt.branch, err, ErrInvalidBranch)
				}
				return
			}
			if err != nil {
				t.Errorf("ValidateBranch(%q) unexpected error: %v", tt.branch, err)
			}
		})
	}
}
