package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/CompassSecurity/custompatterns/pkg/engine"
	"github.com/docker/go-units"
)

// ValidateURL validates that a string is a valid URL.
func ValidateURL(urlStr string, fieldName string) error {
	if urlStr == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", fieldName, err)
	}

	if parsed.Scheme == "" {
		return fmt.Errorf("%s must include a scheme (http/https)", fieldName)
	}

	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", fieldName)
	}

	return nil
}

// ParseSize parses a human-readable size string (e.g., "500MB", "1GB") into bytes.
func ParseSize(sizeStr string, fieldName string) (int64, error) {
	size, err := units.RAMInBytes(sizeStr)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", fieldName, err)
	}
	if size < 0 {
		return 0, fmt.Errorf("%s cannot be negative", fieldName)
	}
	return size, nil
}

// ValidateToken validates that a token is not empty.
func ValidateToken(token string, fieldName string) error {
	if token == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

// ValidateThreadCount validates that the thread count is within acceptable bounds.
func ValidateThreadCount(threads int) error {
	if threads < 1 {
		return fmt.Errorf("thread count must be at least 1, got %d", threads)
	}
	if threads > 100 {
		return fmt.Errorf("thread count too high (max 100), got %d", threads)
	}
	return nil
}

// ValidateEngine validates that name is a known match engine.
func ValidateEngine(name string) error {
	if !slices.Contains(engine.Names(), name) {
		return fmt.Errorf("unknown match engine %q (available: %s)", name, strings.Join(engine.Names(), ", "))
	}
	return nil
}

// ParseRepository splits an owner/repo string.
func ParseRepository(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("repository must be in owner/repo form, got %q", repo)
	}
	return owner, name, nil
}
