// Package config loads sfmctools.yaml and resolves credentials.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"github.com/petal-labs/sfmctools/sfmc"
)

const (
	projectConfigName = "sfmctools.yaml"
	homeConfigDir     = ".sfmctools"
	homeConfigName    = "config.yaml"

	// KeyringService is the OS keychain service holding sfmctools secrets.
	KeyringService = "sfmctools"
	keyringPrefix  = "keyring:"
)

// ErrNotFound reports an explicit config path that does not exist.
var ErrNotFound = errors.New("config file not found")

// Environment variables overriding file values.
const (
	EnvSubdomain   = "SFMC_SUBDOMAIN"
	EnvClientID    = "SFMC_CLIENT_ID"
	EnvAccessToken = "SFMC_ACCESS_TOKEN"
	EnvAuthBaseURL = "SFMC_AUTH_BASE_URL"
)

// File is the declarative config shape of sfmctools.yaml.
type File struct {
	SFMC      SFMC      `yaml:"sfmc"`
	Server    Server    `yaml:"server"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// SFMC holds the pre-configured values the tool catalogue needs.
type SFMC struct {
	Subdomain   string `yaml:"subdomain"`
	ClientID    string `yaml:"client_id"`
	AccessToken string `yaml:"access_token"`
	AuthBaseURL string `yaml:"auth_base_url,omitempty"`
	TimeoutMS   int    `yaml:"timeout_ms,omitempty"`
}

// Server configures the HTTP API surface.
type Server struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
	MaxBody    int64  `yaml:"max_body"`
}

// Telemetry configures trace export.
type Telemetry struct {
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
	ServiceName  string `yaml:"service_name"`
}

// Default returns the configuration used when no file is found.
func Default() File {
	return File{
		SFMC: SFMC{
			TimeoutMS: 30000,
		},
		Server: Server{
			Host:       "127.0.0.1",
			Port:       8080,
			CORSOrigin: "*",
			MaxBody:    1 << 20,
		},
		Telemetry: Telemetry{
			ServiceName: "sfmctools",
		},
	}
}

// ToolConfig converts the sfmc section into the catalogue config.
func (s SFMC) ToolConfig() sfmc.Config {
	return sfmc.Config{
		Subdomain:   s.Subdomain,
		ClientID:    s.ClientID,
		AccessToken: s.AccessToken,
		AuthBaseURL: s.AuthBaseURL,
		TimeoutMS:   s.TimeoutMS,
	}
}

// DiscoverPath resolves the config location with first-match semantics:
// explicit path, then ./sfmctools.yaml, then ~/.sfmctools/config.yaml.
func DiscoverPath(explicitPath string) (string, bool, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("resolve working directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("resolve user home: %w", err)
	}
	return DiscoverPathFrom(explicitPath, cwd, homeDir)
}

// DiscoverPathFrom is a testable variant of DiscoverPath.
func DiscoverPathFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	candidates := make([]string, 0, 2)
	explicit := strings.TrimSpace(explicitPath) != ""
	if explicit {
		candidates = append(candidates, filepath.Clean(strings.TrimSpace(explicitPath)))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		candidates = append(candidates, filepath.Join(homeDir, homeConfigDir, homeConfigName))
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			if explicit {
				return "", false, fmt.Errorf("%w: %s", ErrNotFound, candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("checking config path %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

// Load reads path over the defaults. ${VAR} references are expanded before
// parsing.
func Load(path string) (File, error) {
	cfg := Default()
	// #nosec G304 -- path resolved from explicit local config discovery.
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading config %q: %w", path, err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return File{}, fmt.Errorf("parsing config %q: %w", path, err)
	}
	return cfg, nil
}

// Resolve discovers and loads the config file (if any), applies environment
// overrides and resolves keychain references. It returns the path used, or
// "" when running on defaults.
func Resolve(explicitPath string, secrets SecretResolver) (File, string, error) {
	cfg := Default()
	path, found, err := DiscoverPath(explicitPath)
	if err != nil {
		return File{}, "", err
	}
	if found {
		if cfg, err = Load(path); err != nil {
			return File{}, "", err
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.ResolveSecrets(secrets); err != nil {
		return File{}, "", err
	}
	return cfg, path, nil
}

// ApplyEnv overrides sfmc values from the environment.
func (f *File) ApplyEnv(lookup func(string) (string, bool)) {
	overrides := []struct {
		key    string
		target *string
	}{
		{EnvSubdomain, &f.SFMC.Subdomain},
		{EnvClientID, &f.SFMC.ClientID},
		{EnvAccessToken, &f.SFMC.AccessToken},
		{EnvAuthBaseURL, &f.SFMC.AuthBaseURL},
	}
	for _, o := range overrides {
		if value, ok := lookup(o.key); ok && strings.TrimSpace(value) != "" {
			*o.target = strings.TrimSpace(value)
		}
	}
}

// SecretResolver looks up a named secret.
type SecretResolver func(name string) (string, error)

// KeyringSecrets resolves secrets from the OS keychain.
func KeyringSecrets(name string) (string, error) {
	value, err := keyring.Get(KeyringService, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("secret %q not found in keychain service %q", name, KeyringService)
		}
		return "", fmt.Errorf("reading secret %q from keychain: %w", name, err)
	}
	return value, nil
}

// StoreSecret writes a secret to the OS keychain.
func StoreSecret(name, value string) error {
	return keyring.Set(KeyringService, name, value)
}

// ResolveSecrets replaces "keyring:<name>" values with the stored secret.
func (f *File) ResolveSecrets(resolve SecretResolver) error {
	targets := []*string{&f.SFMC.ClientID, &f.SFMC.AccessToken}
	for _, target := range targets {
		value := strings.TrimSpace(*target)
		if !strings.HasPrefix(value, keyringPrefix) {
			continue
		}
		if resolve == nil {
			return fmt.Errorf("config references %q but no secret resolver is configured", value)
		}
		secret, err := resolve(strings.TrimPrefix(value, keyringPrefix))
		if err != nil {
			return err
		}
		*target = secret
	}
	return nil
}
