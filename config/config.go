// Package config loads upload link configuration from a YAML file, with
// ${VAR} environment expansion and optional .env preloading.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/ppvolto/apollo-upload-client/uploadlink"
)

// DefaultFilenames are the config file names searched by FindConfigFile.
var DefaultFilenames = []string{".uploadlink.yml", "uploadlink.yml", ".uploadlink.yaml", "uploadlink.yaml"}

// Config is the YAML configuration of an upload link endpoint.
//
//	endpoint:
//	  url: https://api.example.com/graphql
//	  headers:
//	    Authorization: Bearer ${API_TOKEN}
//	  credentials: include
//	include_extensions: true
//	timeout: 30s
type Config struct {
	Endpoint          EndpointConfig `yaml:"endpoint"`
	IncludeExtensions bool           `yaml:"include_extensions,omitempty"`
	Timeout           string         `yaml:"timeout,omitempty"`
}

// EndpointConfig are the allowed options for the endpoint section.
type EndpointConfig struct {
	URL         string            `yaml:"url"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	Credentials string            `yaml:"credentials,omitempty"`
}

// FindConfigFile walks from dir up to the filesystem root looking for the
// first file matching one of names.
func FindConfigFile(dir string, names []string) (string, error) {
	if dir == "." {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("unable to get working dir: %w", err)
		}
		dir = wd
	}
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("unable to get directory %q: %w", dir, err)
	}

	cfg := findConfigInDir(dir, names)
	for cfg == "" && dir != filepath.Dir(dir) {
		dir = filepath.Dir(dir)
		cfg = findConfigInDir(dir, names)
	}

	if cfg == "" {
		return "", os.ErrNotExist
	}

	return cfg, nil
}

func findConfigInDir(dir string, names []string) string {
	for _, name := range names {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

type loader struct {
	dotenv []string
}

// LoadOption adjusts how Load reads a config file.
type LoadOption func(*loader)

// WithDotEnv preloads environment variables from the given .env files before
// ${VAR} expansion runs. Missing files are skipped.
func WithDotEnv(files ...string) LoadOption {
	return func(l *loader) {
		l.dotenv = append(l.dotenv, files...)
	}
}

// Load reads, env-expands and strictly decodes the config at path.
func Load(path string, opts ...LoadOption) (*Config, error) {
	var l loader
	for _, opt := range opts {
		opt(&l)
	}
	for _, file := range l.dotenv {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return nil, fmt.Errorf("unable to load env file %q: %w", file, err)
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config: %w", err)
	}

	var cfg Config
	expanded := []byte(os.ExpandEnv(string(b)))
	if err := yaml.UnmarshalWithOptions(expanded, &cfg, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("unable to parse config: %w", err)
	}

	if cfg.Endpoint.URL == "" {
		return nil, errors.New("config: endpoint.url is required")
	}
	switch uploadlink.Credentials(cfg.Endpoint.Credentials) {
	case uploadlink.CredentialsDefault, uploadlink.CredentialsOmit,
		uploadlink.CredentialsSameOrigin, uploadlink.CredentialsInclude:
	default:
		return nil, fmt.Errorf("config: unknown credentials mode %q", cfg.Endpoint.Credentials)
	}
	if cfg.Timeout != "" {
		if _, err := time.ParseDuration(cfg.Timeout); err != nil {
			return nil, fmt.Errorf("config: invalid timeout: %w", err)
		}
	}

	return &cfg, nil
}

// Options translates the config into link construction options.
func (c *Config) Options() (uploadlink.Options, error) {
	headers := http.Header{}
	for k, v := range c.Endpoint.Headers {
		headers.Set(k, v)
	}

	opts := uploadlink.Options{
		URI:               c.Endpoint.URL,
		Headers:           headers,
		Credentials:       uploadlink.Credentials(c.Endpoint.Credentials),
		IncludeExtensions: c.IncludeExtensions,
	}
	if c.Timeout != "" {
		timeout, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return uploadlink.Options{}, fmt.Errorf("config: invalid timeout: %w", err)
		}
		opts.Fetch = &http.Client{Timeout: timeout}
	}

	return opts, nil
}

// Link constructs the upload link described by the config.
func (c *Config) Link(interceptors ...uploadlink.Interceptor) (*uploadlink.UploadLink, error) {
	opts, err := c.Options()
	if err != nil {
		return nil, err
	}

	return uploadlink.New(opts, interceptors...)
}
