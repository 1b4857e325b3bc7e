// Package urlutils provides utilities for handling deployment remote URLs.
// Only public GitHub HTTPS repository URLs are accepted; the SSH form used
// for cloning and pushing is derived from them.
package urlutils

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const githubHost = "github.com"

var (
	// ErrInvalidURL indicates that the provided URL is not valid
	ErrInvalidURL = errors.New("invalid URL format")

	// ErrInvalidHost indicates that the host is not github.com
	ErrInvalidHost = errors.New("invalid GitHub host")

	// ErrInvalidPath indicates that the URL path is not a valid repository path
	ErrInvalidPath = errors.New("invalid repository path")

	// ErrEmptyToken indicates that an empty token was provided
	ErrEmptyToken = errors.New("empty token provided")

	// ErrNotHTTPS indicates that the URL does not use HTTPS protocol
	ErrNotHTTPS = errors.New("URL must use HTTPS protocol")
)

// ParseHTTPSURL parses and validates a GitHub HTTPS URL.
// It accepts URLs in the following formats:
//   - https://github.com/owner/repo
//   - https://github.com/owner/repo.git
//
// The returned URL always carries the .git suffix.
func ParseHTTPSURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("%w: empty URL", ErrInvalidURL)
	}
	if strings.HasPrefix(rawURL, "git@") {
		return nil, ErrNotHTTPS
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q", ErrNotHTTPS, parsedURL.Scheme)
	}
	if parsedURL.User != nil || parsedURL.RawQuery != "" || parsedURL.Fragment != "" {
		return nil, fmt.Errorf("%w: credentials, query and fragment are not allowed", ErrInvalidURL)
	}
	if !strings.EqualFold(parsedURL.Host, githubHost) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHost, parsedURL.Host)
	}

	owner, repo, err := splitRepoPath(parsedURL.Path)
	if err != nil {
		return nil, err
	}

	return &url.URL{
		Scheme: "https",
		Host:   githubHost,
		Path:   "/" + owner + "/" + repo + ".git",
	}, nil
}

// splitRepoPath requires exactly two non-empty segments: owner and repository.
func splitRepoPath(path string) (owner, repo string, err error) {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: URL must include owner and repository", ErrInvalidPath)
	}

	owner = parts[0]
	repo = strings.TrimSuffix(parts[1], ".git")
	if owner == "" || repo == "" {
		return "", "", fmt.Errorf("%w: owner and repository must be non-empty", ErrInvalidPath)
	}
	if strings.ContainsAny(owner+repo, " \t:@") {
		return "", "", fmt.Errorf("%w: invalid characters in %s/%s", ErrInvalidPath, owner, repo)
	}
	return owner, repo, nil
}

// SSHURL derives the SSH push form git@github.com:owner/repo.git from a URL
// returned by ParseHTTPSURL.
func SSHURL(httpsURL *url.URL) (string, error) {
	if httpsURL == nil {
		return "", fmt.Errorf("%w: nil URL provided", ErrInvalidURL)
	}
	owner, repo, err := splitRepoPath(httpsURL.Path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("git@%s:%s/%s.git", githubHost, owner, repo), nil
}

// FormatTokenURL formats a GitHub URL with the provided token.
// It creates a new URL with the token embedded as the user info component.
// The original URL is not modified.
func FormatTokenURL(parsedURL *url.URL, token string) (*url.URL, error) {
	if parsedURL == nil {
		return nil, fmt.Errorf("%w: nil URL provided", ErrInvalidURL)
	}

	if token == "" {
		return nil, ErrEmptyToken
	}

	tokenURL := *parsedURL
	tokenURL.User = url.User(token)

	return &tokenURL, nil
}

// ValidateURL checks if the provided URL is an accepted GitHub repository URL.
func ValidateURL(rawURL string) error {
	_, err := ParseHTTPSURL(rawURL)
	return err
}

// Redact strips credentials from a URL for logging.
func Redact(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.User != nil {
		u.User = nil
		return u.String()
	}
	return rawURL
}
