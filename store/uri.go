package store

import (
	"fmt"
	"net/url"
	"strings"
)

// Config describes how to reach the graph database.
type Config struct {
	// URI is "sqlite://<path>" or a bare file path.
	URI string `json:"uri" yaml:"uri"`
	// Username and Password enable SQLite user authentication. This needs
	// the sqlite_userauth build tag; without it Open refuses credentials
	// with ErrAuthUnsupported.
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	// EmbeddingDim sizes the node-embedding table. Zero disables it.
	EmbeddingDim int `json:"embedding_dim,omitempty" yaml:"embedding_dim,omitempty"`
}

// ParseURI extracts the database file path from a connection URI.
func ParseURI(uri string) (string, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return "", ErrNoURI
	}
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri, nil
	}
	switch strings.ToLower(scheme) {
	case "sqlite", "sqlite3", "file":
		if rest == "" {
			return "", fmt.Errorf("%w: %q has no path", ErrNoURI, uri)
		}
		return rest, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURI, scheme)
	}
}

// dsn builds the go-sqlite3 data source name for path.
func dsn(path, username, password string) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", "30000")
	if username != "" {
		q.Set("_auth", "")
		q.Set("_auth_user", username)
		q.Set("_auth_pass", password)
	}
	return "file:" + path + "?" + q.Encode()
}
