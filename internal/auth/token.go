package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const tokenFileName = "mcp_token"

// LoadOrCreateToken reads the MCP bearer token from dir/mcp_token, or
// generates and persists a new 256-bit hex-encoded token if the file is
// missing or empty.
func LoadOrCreateToken(dir string) (string, error) {
	path := filepath.Join(dir, tokenFileName)

	data, err := os.ReadFile(path)
	if err == nil {
		if tok := strings.TrimSpace(string(data)); tok != "" {
			return tok, nil
		}
	}

	return RotateToken(dir)
}

// RotateToken generates a new token, replacing the existing one.
// Connected MCP clients must be reconfigured afterwards.
func RotateToken(dir string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}

	if err := writeToken(dir, filepath.Join(dir, tokenFileName), token); err != nil {
		return "", err
	}

	return token, nil
}

// TokenPath returns where LoadOrCreateToken keeps the token for dir.
func TokenPath(dir string) string {
	return filepath.Join(dir, tokenFileName)
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func writeToken(dir, path, token string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating token dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(token), 0600); err != nil {
		return fmt.Errorf("writing token: %w", err)
	}
	return nil
}
