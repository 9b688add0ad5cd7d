package duckdb

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds DuckDB-specific configuration.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	// Extensions to install and load (e.g., "httpfs", "spatial", "json")
	Extensions []string `mapstructure:"extensions"`

	// Secrets give DuckDB credentials for tables read from object storage.
	Secrets []SecretConfig `mapstructure:"secrets"`

	// Settings to apply at session level (e.g., memory_limit, threads)
	Settings map[string]string `mapstructure:"settings"`
}

// SecretConfig is one CREATE SECRET statement.
type SecretConfig struct {
	// Type is the secret type: s3, gcs, r2, azure.
	Type string `mapstructure:"type"`

	// Provider is config (explicit keys) or credential_chain.
	Provider string `mapstructure:"provider"`

	Region string `mapstructure:"region"`

	// Scope limits the secret to path prefixes. A single string is accepted.
	Scope []string `mapstructure:"scope"`

	KeyID    string `mapstructure:"key_id"`
	Secret   string `mapstructure:"secret"`
	Endpoint string `mapstructure:"endpoint"`

	// URLStyle is vhost or path.
	URLStyle string `mapstructure:"url_style"`

	UseSSL *bool `mapstructure:"use_ssl"`
}

// createSecretSQL renders s as a named temporary secret.
func createSecretSQL(name string, s SecretConfig) string {
	parts := []string{"TYPE " + s.Type}
	if s.Provider != "" {
		parts = append(parts, "PROVIDER "+s.Provider)
	}
	for _, opt := range []struct{ key, value string }{
		{"REGION", s.Region},
		{"KEY_ID", s.KeyID},
		{"SECRET", s.Secret},
		{"ENDPOINT", s.Endpoint},
		{"URL_STYLE", s.URLStyle},
	} {
		if opt.value != "" {
			parts = append(parts, opt.key+" "+quoteString(opt.value))
		}
	}
	switch len(s.Scope) {
	case 0:
	case 1:
		parts = append(parts, "SCOPE "+quoteString(s.Scope[0]))
	default:
		scopes := make([]string, len(s.Scope))
		for i, sc := range s.Scope {
			scopes[i] = quoteString(sc)
		}
		parts = append(parts, "SCOPE ("+strings.Join(scopes, ", ")+")")
	}
	if s.UseSSL != nil {
		parts = append(parts, fmt.Sprintf("USE_SSL %t", *s.UseSSL))
	}
	return fmt.Sprintf("CREATE SECRET %s (%s)", name, strings.Join(parts, ", "))
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// isKeyword reports whether s is safe to splice unquoted.
func isKeyword(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// parseParams decodes the raw target params into Params.
func parseParams(raw map[string]any) (*Params, error) {
	params := &Params{}
	if len(raw) == 0 {
		return params, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           params,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create params decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid duckdb params: %w", err)
	}
	for i, s := range params.Secrets {
		if !isKeyword(s.Type) {
			return nil, fmt.Errorf("invalid duckdb params: secrets[%d].type %q is not a secret type", i, s.Type)
		}
		if s.Provider != "" && !isKeyword(s.Provider) {
			return nil, fmt.Errorf("invalid duckdb params: secrets[%d].provider %q is not a provider name", i, s.Provider)
		}
	}
	return params, nil
}
