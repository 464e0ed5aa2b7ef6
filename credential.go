package blobconn

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/gostdlib/base/context"

	"github.com/element-of-surprise/blobconn/errors"
)

// credKind is the set of credential forms a Conn accepts.
type credKind int

const (
	credUnknown   credKind = 0
	credSharedKey credKind = 1
	credSASToken  credKind = 2
	credToken     credKind = 3
)

// String implements fmt.Stringer.
func (k credKind) String() string {
	switch k {
	case credSharedKey:
		return "shared_key"
	case credSASToken:
		return "sas_token"
	case credToken:
		return "token_credential"
	}
	return "unknown"
}

// Credential is opaque authentication material for a blob storage account. The zero
// value is invalid; construct one with SharedKey, SASToken or TokenCredential.
type Credential struct {
	kind    credKind
	account string
	key     string
	sas     string
	token   azcore.TokenCredential
}

// SharedKey returns a Credential using the storage account name and its shared key.
// The key material is validated when the connection is opened, not here.
func SharedKey(account, key string) Credential {
	return Credential{kind: credSharedKey, account: account, key: key}
}

// SASToken returns a Credential using a pre-signed SAS token. The token may include
// the leading "?".
func SASToken(token string) Credential {
	return Credential{kind: credSASToken, sas: token}
}

// TokenCredential returns a Credential wrapping an azcore.TokenCredential, such as
// one produced by the azidentity package.
func TokenCredential(cred azcore.TokenCredential) Credential {
	return Credential{kind: credToken, token: cred}
}

// String returns the credential kind and account name. Secret material is never
// included.
func (c Credential) String() string {
	if c.account != "" {
		return fmt.Sprintf("%s(%s)", c.kind, c.account)
	}
	return c.kind.String()
}

// LogValue implements slog.LogValuer so log output never contains key material.
func (c Credential) LogValue() slog.Value {
	return slog.StringValue(c.String())
}

// validate checks that the Credential carries the material its kind requires.
func (c Credential) validate() error {
	switch c.kind {
	case credSharedKey:
		if c.account == "" {
			return errors.New("shared key credential requires an account name")
		}
		if c.key == "" {
			return errors.New("shared key credential requires a key")
		}
	case credSASToken:
		if c.sas == "" {
			return errors.New("SAS credential requires a token")
		}
	case credToken:
		if c.token == nil {
			return errors.New("token credential cannot be nil")
		}
	default:
		return errors.New("credential is not set")
	}
	return nil
}

// connect constructs the SDK service client for endpoint using the credential form.
func (c Credential) connect(ctx context.Context, endpoint string, opts *azblob.ClientOptions) (*azblob.Client, error) {
	switch c.kind {
	case credSharedKey:
		key, err := azblob.NewSharedKeyCredential(c.account, c.key)
		if err != nil {
			return nil, errors.E(ctx, errors.CatUser, errors.TypeAuth, fmt.Errorf("invalid shared key for account(%s): %w", c.account, err))
		}
		client, err := azblob.NewClientWithSharedKeyCredential(endpoint, key, opts)
		if err != nil {
			return nil, errors.E(ctx, errors.CatUser, errors.TypeEndpoint, fmt.Errorf("failed to create blob client: %w", err))
		}
		return client, nil
	case credSASToken:
		u, err := withSAS(endpoint, c.sas)
		if err != nil {
			return nil, errors.E(ctx, errors.CatUser, errors.TypeEndpoint, err)
		}
		client, err := azblob.NewClientWithNoCredential(u, opts)
		if err != nil {
			return nil, errors.E(ctx, errors.CatUser, errors.TypeEndpoint, fmt.Errorf("failed to create blob client: %w", err))
		}
		return client, nil
	case credToken:
		client, err := azblob.NewClient(endpoint, c.token, opts)
		if err != nil {
			return nil, errors.E(ctx, errors.CatUser, errors.TypeEndpoint, fmt.Errorf("failed to create blob client: %w", err))
		}
		return client, nil
	}
	return nil, errors.E(ctx, errors.CatInternal, errors.TypeBug, errors.New("unknown credential kind"))
}

// withSAS appends the SAS token to the endpoint as its query string.
func withSAS(endpoint, token string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint(%s): %w", endpoint, err)
	}
	u.RawQuery = strings.TrimPrefix(token, "?")
	return u.String(), nil
}
