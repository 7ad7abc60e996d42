// Package config builds the run configuration from the environment, with
// command-line flags taking precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

// Backend selects the collection implementation.
type Backend string

const (
	BackendCosmos   Backend = "cosmos"
	BackendDynamoDB Backend = "dynamodb"
	BackendMemory   Backend = "memory"
)

// Environment variables read by Load.
const (
	EnvPrimaryKey = "COSMOS_PRIMARY_KEY"
	EnvAccount    = "COSMOS_ACCOUNT"
	EnvLocation   = "LOCATION"
	EnvDatabase   = "DATABASE_NAME"
	EnvCollection = "COLLECTION_NAME"
	EnvEndpoint   = "COSMOS_ENDPOINT"
	EnvBackend    = "DOCSAMPLE_BACKEND"
)

var (
	// ErrMissing is matched by every MissingError.
	ErrMissing = errors.New("docsample: missing required configuration")

	// ErrBackend is returned for an unknown backend name.
	ErrBackend = errors.New("docsample: unknown backend")
)

// MissingError lists every required variable that was not set.
type MissingError struct {
	Vars []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%v: set %s", ErrMissing, strings.Join(e.Vars, ", "))
}

func (e *MissingError) Unwrap() error {
	return ErrMissing
}

// Config is built once at startup and passed down explicitly.
type Config struct {
	Backend Backend

	// PrimaryKey is read from the environment only, never from flags.
	PrimaryKey string

	Account    string
	Location   string
	Database   string
	Collection string

	// Endpoint optionally overrides the service endpoint (emulators, DynamoDB Local).
	Endpoint string
}

// Load parses args over values taken from getenv and validates the result.
// Flag errors and usage are written to output.
func Load(args []string, getenv func(string) string, output io.Writer) (Config, error) {
	backend := getenv(EnvBackend)
	if backend == "" {
		backend = string(BackendCosmos)
	}
	cfg := Config{
		PrimaryKey: getenv(EnvPrimaryKey),
		Account:    getenv(EnvAccount),
		Location:   getenv(EnvLocation),
		Database:   getenv(EnvDatabase),
		Collection: getenv(EnvCollection),
		Endpoint:   getenv(EnvEndpoint),
	}

	fs := flag.NewFlagSet("docsample", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&backend, "backend", backend, "collection backend: cosmos, dynamodb or memory (env "+EnvBackend+")")
	fs.StringVar(&cfg.Account, "account", cfg.Account, "Cosmos DB account name (env "+EnvAccount+")")
	fs.StringVar(&cfg.Location, "location", cfg.Location, "preferred region (env "+EnvLocation+")")
	fs.StringVar(&cfg.Database, "database", cfg.Database, "database name (env "+EnvDatabase+")")
	fs.StringVar(&cfg.Collection, "collection", cfg.Collection, "collection or table name (env "+EnvCollection+")")
	fs.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "service endpoint override (env "+EnvEndpoint+")")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.Backend = Backend(backend)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every value the backend needs is present.
func (c Config) Validate() error {
	var required []struct{ name, value string }
	switch c.Backend {
	case BackendCosmos:
		required = []struct{ name, value string }{
			{EnvPrimaryKey, c.PrimaryKey},
			{EnvAccount, c.Account},
			{EnvLocation, c.Location},
			{EnvDatabase, c.Database},
			{EnvCollection, c.Collection},
		}
	case BackendDynamoDB:
		required = []struct{ name, value string }{
			{EnvLocation, c.Location},
			{EnvCollection, c.Collection},
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w %q", ErrBackend, c.Backend)
	}

	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return &MissingError{Vars: missing}
	}
	return nil
}
