package url

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseAndValidate parses a URL string and validates it has a scheme and host.
func ParseAndValidate(rawURL string) (*url.URL, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("url cannot be empty")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("url must be absolute with scheme (http/https) and host")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("url scheme must be http or https")
	}

	return parsedURL, nil
}

// ValidateBaseURL checks a base URL that locations are joined onto. Empty is
// allowed and means locations are used as given. Query strings and fragments
// are rejected since every location would end up inside them.
func ValidateBaseURL(rawURL string) error {
	if rawURL == "" {
		return nil
	}

	parsedURL, err := ParseAndValidate(rawURL)
	if err != nil {
		return err
	}

	if parsedURL.RawQuery != "" || parsedURL.Fragment != "" || strings.ContainsAny(rawURL, "?#") {
		return fmt.Errorf("base url cannot contain a query or fragment")
	}

	return nil
}
