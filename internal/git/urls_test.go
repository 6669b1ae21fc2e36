package git

import (
	"errors"
	"testing"
)

func TestParseRemoteURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want ParsedURL
	}{
		{
			name: "https",
			url:  "https://github.com/acme/widgets",
			want: ParsedURL{Provider: "github", Owner: "acme", Name: "widgets", URL: "https://github.com/acme/widgets"},
		},
		{
			name: "https with git suffix",
			url:  "https://github.com/acme/widgets.git",
			want: ParsedURL{Provider: "github", Owner: "acme", Name: "widgets", URL: "https://github.com/acme/widgets.git"},
		},
		{
			name: "scp style",
			url:  "git@github.com:acme/widgets.git",
			want: ParsedURL{Provider: "github", Owner: "acme", Name: "widgets", URL: "git@github.com:acme/widgets.git"},
		},
		{
			name: "scp style without user",
			url:  "gitlab.example.com:acme/widgets",
			want: ParsedURL{Provider: "gitlab", Owner: "acme", Name: "widgets", URL: "gitlab.example.com:acme/widgets"},
		},
		{
			name: "bitbucket host",
			url:  "https://bitbucket.org/acme/widgets",
			want: ParsedURL{Provider: "bitbucket", Owner: "acme", Name: "widgets", URL: "https://bitbucket.org/acme/widgets"},
		},
		{
			name: "unknown host falls back to first label",
			url:  "https://code.example.com/acme/widgets",
			want: ParsedURL{Provider: "code", Owner: "acme", Name: "widgets", URL: "https://code.example.com/acme/widgets"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRemoteURL(tt.url)
			if err != nil {
				t.Fatalf("ParseRemoteURL(%q): %v", tt.url, err)
			}
			if got != tt.want {
				t.Errorf("ParseRemoteURL(%q) = %+v, want %+v", tt.url, got, tt.want)
			}
		})
	}
}

func TestParseRemoteURLInvalid(t *testing.T) {
	urls := []string{
		"",
		"   ",
		"ftp://github.com/acme/widgets",
		"https://github.com/widgets",
		"https://github.com/acme/",
		"no-separator",
		":acme/widgets",
		"git@github.com:widgets",
	}

	for _, url := range urls {
		if _, err := ParseRemoteURL(url); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("ParseRemoteURL(%q) = %v, want ErrInvalidURL", url, err)
		}
	}
}
