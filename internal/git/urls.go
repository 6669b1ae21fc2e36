package git

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseRemoteURL parses an HTTPS-style or scp-style remote URL into its
// provider/owner/name parts.
//
//	https://github.com/acme/widgets.git
//	git@github.com:acme/widgets.git
func ParseRemoteURL(raw string) (ParsedURL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ParsedURL{}, fmt.Errorf("%w: empty url", ErrInvalidURL)
	}

	if strings.Contains(raw, "://") {
		return parseHTTPURL(raw)
	}

	return parseSCPURL(raw)
}

func parseHTTPURL(raw string) (ParsedURL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ParsedURL{}, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ParsedURL{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, parsed.Scheme)
	}

	owner, name, err := splitRepoPath(strings.TrimPrefix(parsed.Path, "/"))
	if err != nil {
		return ParsedURL{}, err
	}

	return ParsedURL{
		Provider: providerFor(parsed.Hostname()),
		Owner:    owner,
		Name:     name,
		URL:      raw,
	}, nil
}

// parseSCPURL handles [user@]host:owner/name[.git].
func parseSCPURL(raw string) (ParsedURL, error) {
	host, path, ok := strings.Cut(raw, ":")
	if !ok {
		return ParsedURL{}, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}

	if _, after, found := strings.Cut(host, "@"); found {
		host = after
	}
	if host == "" {
		return ParsedURL{}, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}

	owner, name, err := splitRepoPath(path)
	if err != nil {
		return ParsedURL{}, err
	}

	return ParsedURL{
		Provider: providerFor(host),
		Owner:    owner,
		Name:     name,
		URL:      raw,
	}, nil
}

func splitRepoPath(path string) (string, string, error) {
	path = strings.TrimSuffix(path, ".git")

	owner, name, ok := strings.Cut(path, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("%w: expected owner/name, got %q", ErrInvalidURL, path)
	}

	return owner, name, nil
}

// providerFor maps a hostname onto a host family by substring, falling back
// to the first hostname label.
func providerFor(host string) string {
	switch {
	case strings.Contains(host, "github"):
		return "github"
	case strings.Contains(host, "gitlab"):
		return "gitlab"
	case strings.Contains(host, "bitbucket"):
		return "bitbucket"
	}

	label, _, _ := strings.Cut(host, ".")
	if label == "" {
		return "unknown"
	}

	return label
}
