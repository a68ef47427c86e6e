package creds

// In this file: JSON file persistence for an issued credential, so a token
// obtained through the authorize flow survives process restarts.

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// credsFileMode keeps the token readable by the owner only.
const credsFileMode = 0o600

// SaveFile writes the credential to path as JSON. Parent directories are
// created as needed.
func SaveFile(path string, c Credential) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := os.WriteFile(path, data, credsFileMode); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// LoadFile reads a credential previously written by SaveFile. A missing or
// empty token is reported as ErrNotAuthenticated so callers can fall back to
// the authorize flow.
func LoadFile(path string) (Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credential{}, ErrNotAuthenticated
		}
		return Credential{}, fmt.Errorf("read credentials: %w", err)
	}
	var c Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return Credential{}, fmt.Errorf("decode credentials: %w", err)
	}
	if c.AccessToken == "" {
		return Credential{}, ErrNotAuthenticated
	}
	return c, nil
}
