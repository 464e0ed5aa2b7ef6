// Package config loads blobconn connection settings from a configuration file,
// with environment variable overrides, using viper. It resolves the configured
// credential source to a blobconn.Credential so services go from a settings file to
// an open scope in two calls.
package config

import (
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/gostdlib/base/context"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/element-of-surprise/blobconn"
	"github.com/element-of-surprise/blobconn/errors"
)

// Source selects which credential form Settings resolve to.
type Source string

const (
	// SourceSharedKey uses the storage account shared key.
	SourceSharedKey Source = "shared_key"
	// SourceSASToken uses a pre-signed SAS token.
	SourceSASToken Source = "sas_token"
	// SourceAzureIdentity uses azidentity.NewDefaultAzureCredential, which walks
	// environment, workload identity, managed identity and az login.
	SourceAzureIdentity Source = "azure_identity"
)

// Settings are the connection settings for a storage account.
type Settings struct {
	// Account is the storage account name. Required unless Endpoint is set.
	Account string
	// Endpoint is the blob service endpoint. Derived from Account when empty.
	Endpoint string
	// Source selects the credential form.
	Source Source
	// AccountKey is the shared key, used when Source is SourceSharedKey.
	AccountKey string
	// SASToken is the SAS token, used when Source is SourceSASToken.
	SASToken string
}

// Load reads Settings from the file at path. Values can be overridden with
// BLOBCONN_* environment variables.
func Load(ctx context.Context, path string) (Settings, error) {
	return LoadFS(ctx, afero.NewOsFs(), path)
}

// LoadFS is Load reading from an afero filesystem. Tests use this with a memory
// filesystem.
func LoadFS(ctx context.Context, fsys afero.Fs, path string) (Settings, error) {
	v := viper.New()
	v.SetFs(fsys)
	v.SetConfigFile(path)
	v.SetEnvPrefix("blobconn")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Settings{}, errors.E(ctx, errors.CatUser, errors.TypeParameter, fmt.Errorf("failed to read config(%s): %w", path, err))
	}

	s := Settings{
		Account:    v.GetString("account"),
		Endpoint:   v.GetString("endpoint"),
		Source:     Source(v.GetString("source")),
		AccountKey: v.GetString("account_key"),
		SASToken:   v.GetString("sas_token"),
	}
	if err := s.validate(); err != nil {
		return Settings{}, errors.E(ctx, errors.CatUser, errors.TypeParameter, err)
	}
	return s, nil
}

func (s Settings) validate() error {
	if s.Account == "" && s.Endpoint == "" {
		return errors.New("account or endpoint must be set")
	}
	switch s.Source {
	case SourceSharedKey:
		if s.Account == "" {
			return errors.New("shared_key source requires account")
		}
		if s.AccountKey == "" {
			return errors.New("shared_key source requires account_key")
		}
	case SourceSASToken:
		if s.SASToken == "" {
			return errors.New("sas_token source requires sas_token")
		}
	case SourceAzureIdentity:
	default:
		return fmt.Errorf("unknown credential source(%s)", s.Source)
	}
	return nil
}

// EndpointURL returns the endpoint, deriving the public blob endpoint from the
// account name when no explicit endpoint is set.
func (s Settings) EndpointURL() string {
	if s.Endpoint != "" {
		return s.Endpoint
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net", s.Account)
}

// Credential resolves the Settings to a blobconn.Credential.
func (s Settings) Credential(ctx context.Context) (blobconn.Credential, error) {
	switch s.Source {
	case SourceSharedKey:
		return blobconn.SharedKey(s.Account, s.AccountKey), nil
	case SourceSASToken:
		return blobconn.SASToken(s.SASToken), nil
	case SourceAzureIdentity:
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return blobconn.Credential{}, errors.E(ctx, errors.CatInternal, errors.TypeAuth, fmt.Errorf("failed to create azure identity credential: %w", err))
		}
		return blobconn.TokenCredential(cred), nil
	}
	return blobconn.Credential{}, errors.E(ctx, errors.CatInternal, errors.TypeBug, fmt.Errorf("unknown credential source(%s)", s.Source))
}

// Conn builds a blobconn.Conn from the Settings. The connection is not opened.
func (s Settings) Conn(ctx context.Context, options ...blobconn.Option) (*blobconn.Conn, error) {
	cred, err := s.Credential(ctx)
	if err != nil {
		return nil, err
	}
	return blobconn.New(s.EndpointURL(), cred, options...)
}
