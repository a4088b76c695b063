// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package auth resolves the Granola bearer token through an ordered chain of
// providers: explicit flag, environment variable, secrets directory, and
// finally the Granola desktop app's session file.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdiddy/granary/internal/secrets"
)

// TokenEnvVar is the environment variable consulted by EnvProvider.
const TokenEnvVar = "GRANARY_TOKEN"

// tokenSecretKey is the filename looked up in the secrets directory.
const tokenSecretKey = "granola-token"

// Provider yields a bearer token from one source. Token returns ok=false
// when the source has nothing to offer; a non-nil error means the source
// exists but could not be read, which aborts resolution.
type Provider interface {
	Name() string
	Token() (token string, ok bool, err error)
}

// ResolveToken walks the providers in order and returns the first token
// found. It fails with a list of the sources tried when none yields one.
func ResolveToken(providers ...Provider) (string, error) {
	tried := make([]string, 0, len(providers))
	for _, p := range providers {
		token, ok, err := p.Token()
		if err != nil {
			return "", fmt.Errorf("%s: %w", p.Name(), err)
		}
		if ok {
			return token, nil
		}
		tried = append(tried, p.Name())
	}
	return "", fmt.Errorf("no bearer token found (tried: %v); provide one via --token, %s, or log in to Granola", tried, TokenEnvVar)
}

// DefaultChain builds the standard provider order. cliToken is the --token
// flag value; secretsDir is the .secrets/ directory.
func DefaultChain(cliToken, secretsDir string) []Provider {
	return []Provider{
		StaticProvider{Value: cliToken},
		EnvProvider{Var: TokenEnvVar},
		SecretsDirProvider{Dir: secretsDir},
		SessionFileProvider{},
	}
}

// StaticProvider returns a fixed value, typically from a CLI flag.
type StaticProvider struct {
	Value string
}

func (p StaticProvider) Name() string { return "flag" }

func (p StaticProvider) Token() (string, bool, error) {
	return p.Value, p.Value != "", nil
}

// EnvProvider reads the token from an environment variable.
type EnvProvider struct {
	Var string
}

func (p EnvProvider) Name() string { return "env " + p.Var }

func (p EnvProvider) Token() (string, bool, error) {
	v := os.Getenv(p.Var)
	return v, v != "", nil
}

// SecretsDirProvider reads the token from the granola-token file in a
// secrets directory.
type SecretsDirProvider struct {
	Dir string
}

func (p SecretsDirProvider) Name() string { return "secrets dir" }

func (p SecretsDirProvider) Token() (string, bool, error) {
	if p.Dir == "" {
		return "", false, nil
	}
	s, err := secrets.Load(p.Dir)
	if err != nil {
		return "", false, err
	}
	v, ok := s[tokenSecretKey]
	return v, ok, nil
}

// SessionFileProvider extracts the access token from the Granola desktop
// app's session file. Path overrides the default location for tests.
type SessionFileProvider struct {
	Path string
}

func (p SessionFileProvider) Name() string { return "granola session" }

func (p SessionFileProvider) Token() (string, bool, error) {
	path := p.Path
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", false, nil
		}
		path = filepath.Join(home, "Library", "Application Support", "Granola", "supabase.json")
	}
	return parseSessionFile(path)
}

// parseSessionFile reads supabase.json and digs out
// workos_tokens.access_token. The workos_tokens field is itself a
// JSON-encoded string, so it is decoded twice.
func parseSessionFile(path string) (string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading session file %s: %w", path, err)
	}

	var session struct {
		WorkosTokens string `json:"workos_tokens"`
	}
	if err := json.Unmarshal(data, &session); err != nil {
		return "", false, fmt.Errorf("parsing session file %s: %w", path, err)
	}
	if session.WorkosTokens == "" {
		return "", false, nil
	}

	var workos struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal([]byte(session.WorkosTokens), &workos); err != nil {
		return "", false, fmt.Errorf("parsing workos tokens in %s: %w", path, err)
	}
	return workos.AccessToken, workos.AccessToken != "", nil
}
