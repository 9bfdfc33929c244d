package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/dainotech/beespace-demo/pkg/logging"
)

// ErrNoCredentials is returned when no source yields a usable service account.
var ErrNoCredentials = errors.New("google credentials not found")

// ServiceAccount is the subset of a Google service-account key the warehouse
// client needs. JSON keeps the original document for the client library.
type ServiceAccount struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`

	JSON []byte `json:"-"`
}

// Valid reports whether the account carries the fields needed to sign
// requests.
func (sa *ServiceAccount) Valid() bool {
	return sa != nil && sa.ClientEmail != "" && sa.PrivateKey != ""
}

// CredentialsJSON returns a key document for option.WithCredentialsJSON.
func (sa *ServiceAccount) CredentialsJSON() []byte {
	if len(sa.JSON) > 0 {
		return sa.JSON
	}
	typ := sa.Type
	if typ == "" {
		typ = "service_account"
	}
	doc, _ := json.Marshal(map[string]string{
		"type":         typ,
		"project_id":   sa.ProjectID,
		"client_email": sa.ClientEmail,
		"private_key":  sa.PrivateKey,
	})
	return doc
}

// ParseServiceAccount decodes a service-account key document.
func ParseServiceAccount(raw []byte) (*ServiceAccount, error) {
	var sa ServiceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, fmt.Errorf("parse service account: %w", err)
	}
	sa.JSON = append([]byte(nil), raw...)
	return &sa, nil
}

// CredentialSource yields a service account, or nil when it has none.
// An error means the source exists but is unusable.
type CredentialSource interface {
	Name() string
	Load() (*ServiceAccount, error)
}

type envCredentials struct {
	key    string
	lookup func(string) string
}

// EnvCredentials reads a JSON key from the environment variable key.
// A nil lookup uses os.Getenv.
func EnvCredentials(key string, lookup func(string) string) CredentialSource {
	if lookup == nil {
		lookup = os.Getenv
	}
	return envCredentials{key: key, lookup: lookup}
}

func (e envCredentials) Name() string { return "env:" + e.key }

func (e envCredentials) Load() (*ServiceAccount, error) {
	raw := strings.TrimSpace(e.lookup(e.key))
	if raw == "" {
		return nil, nil
	}
	return ParseServiceAccount([]byte(raw))
}

type fileCredentials struct {
	path     string
	readFile func(string) ([]byte, error)
}

// FileCredentials reads a JSON key file. A nil readFile uses os.ReadFile.
func FileCredentials(path string, readFile func(string) ([]byte, error)) CredentialSource {
	if readFile == nil {
		readFile = os.ReadFile
	}
	return fileCredentials{path: path, readFile: readFile}
}

func (f fileCredentials) Name() string { return "file:" + f.path }

func (f fileCredentials) Load() (*ServiceAccount, error) {
	raw, err := f.readFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return ParseServiceAccount(raw)
}

// ResolveCredentials tries sources in order and returns the first valid
// account. Unusable sources are logged and skipped. Any source after the
// first is a fallback and is logged as a warning when it wins.
func ResolveCredentials(logger logging.Logger, sources ...CredentialSource) (*ServiceAccount, error) {
	for i, src := range sources {
		sa, err := src.Load()
		if err != nil {
			logger.WithError(err).WithField("source", src.Name()).Error("Failed to load Google credentials")
			continue
		}
		if sa == nil {
			continue
		}
		if !sa.Valid() {
			logger.WithField("source", src.Name()).Error("Google credentials missing client_email or private_key")
			continue
		}
		if i > 0 {
			logger.WithField("source", src.Name()).Warn("Using fallback Google credentials")
		}
		return sa, nil
	}
	return nil, ErrNoCredentials
}
