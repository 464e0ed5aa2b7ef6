/*
Package blobconn provides scoped connections to Azure Blob Storage. A Conn holds an
endpoint and credential, constructs the SDK service client when the scope is entered
with Open and guarantees the underlying network resources are released when the
scope exits with Close.

The handle returned by Open is the Azure SDK *azblob.Client. All blob operations
(listing, uploading, downloading, deleting) happen on that handle with the semantics
the SDK defines. blobconn adds no retries and no recovery; failures surface to the
caller unchanged apart from classification by the errors package.

A Conn is for exclusive use by one goroutine per logical scope. Independent Conns
may be used concurrently, each owns its own client and transport.
*/
package blobconn

import (
	"log/slog"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/google/uuid"
	"github.com/gostdlib/base/context"
	"go.opentelemetry.io/otel/metric"

	"github.com/element-of-surprise/blobconn/errors"
	"github.com/element-of-surprise/blobconn/internal/metrics"
	"github.com/element-of-surprise/blobconn/internal/transport"
)

// This makes UUID generation much faster.
func init() {
	uuid.EnableRandPool()
}

// releaser matches transport.Releaser. Replaced in tests.
type releaser interface {
	Release() error
}

// dialFunc constructs the SDK client. Replaced in tests.
type dialFunc func(ctx context.Context, endpoint string, cred Credential, opts *azblob.ClientOptions) (*azblob.Client, error)

// Conn is a scoped connection to a blob storage account. The client handle exists
// exactly between a successful Open and the matching Close.
type Conn struct {
	endpoint   string
	cred       Credential
	id         uuid.UUID
	log        *slog.Logger
	clientOpts *azblob.ClientOptions

	client   *azblob.Client
	rel      releaser
	openedAt time.Time

	dial         dialFunc
	newTransport func() releaser
}

// Option is an optional argument for New().
type Option func(*Conn) error

// WithLogger sets the logger that open and close events are emitted on. Defaults to
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Conn) error {
		if l == nil {
			return errors.New("logger cannot be nil")
		}
		c.log = l
		return nil
	}
}

// WithClientOptions sets the azblob client options used when the SDK client is
// constructed. If no transport is set in the options, the Conn's owned transport is
// used so Close can release its sockets.
func WithClientOptions(opts *azblob.ClientOptions) Option {
	return func(c *Conn) error {
		c.clientOpts = opts
		return nil
	}
}

// New creates a Conn for the given endpoint and credential. No network contact is
// made until Open.
func New(endpoint string, cred Credential, options ...Option) (*Conn, error) {
	ctx := context.Background()

	if endpoint == "" {
		return nil, errors.E(ctx, errors.CatUser, errors.TypeParameter, errors.New("endpoint cannot be empty"))
	}
	if err := cred.validate(); err != nil {
		return nil, errors.E(ctx, errors.CatUser, errors.TypeParameter, err)
	}

	c := &Conn{
		endpoint: endpoint,
		cred:     cred,
		id:       uuid.New(),
		log:      slog.Default(),
	}
	c.dial = func(ctx context.Context, endpoint string, cred Credential, opts *azblob.ClientOptions) (*azblob.Client, error) {
		return cred.connect(ctx, endpoint, opts)
	}
	c.newTransport = func() releaser {
		return transport.New()
	}

	for _, o := range options {
		if err := o(c); err != nil {
			return nil, errors.E(ctx, errors.CatUser, errors.TypeParameter, err)
		}
	}
	return c, nil
}

// ID returns the unique ID stamped on this Conn's log events.
func (c *Conn) ID() uuid.UUID {
	return c.id
}

// Client returns the live SDK client handle, or nil if the Conn is not open.
func (c *Conn) Client() *azblob.Client {
	return c.client
}

// Open enters the scope. It constructs the SDK service client for the stored
// endpoint and credential and returns it. The handle is also retained by the Conn
// until Close. If construction fails nothing is retained, so a Close that follows a
// failed Open fails its precondition instead of releasing a client that never
// existed.
func (c *Conn) Open(ctx context.Context) (*azblob.Client, error) {
	if c.client != nil {
		return nil, errors.E(ctx, errors.CatUser, errors.TypeState, errors.New("connection is already open"))
	}

	rel := c.newTransport()
	opts := azblob.ClientOptions{}
	if c.clientOpts != nil {
		opts = *c.clientOpts
	}
	if opts.Transport == nil {
		if t, ok := rel.(policy.Transporter); ok {
			opts.Transport = t
		}
	}

	start := time.Now()
	client, err := c.dial(ctx, c.endpoint, c.cred, &opts)
	if err != nil {
		return nil, err
	}

	c.client = client
	c.rel = rel
	c.openedAt = time.Now()

	metrics.Opened(ctx, c.cred.kind.String(), time.Since(start))
	c.log.LogAttrs(ctx, slog.LevelInfo, "open connection",
		slog.String("conn_id", c.id.String()),
		slog.String("endpoint", c.endpoint),
		slog.Any("credential", c.cred),
	)
	return client, nil
}

// Close exits the scope. It releases the network resources behind the handle that
// Open returned. Calling Close on a Conn that is not open is a bug in the caller
// and returns a TypeState error instead of silently doing nothing. A release
// failure propagates after being logged.
func (c *Conn) Close(ctx context.Context) error {
	if c.client == nil {
		return errors.E(ctx, errors.CatUser, errors.TypeState, errors.New("close on a connection that is not open"))
	}

	rel := c.rel
	openFor := time.Since(c.openedAt)
	c.client = nil
	c.rel = nil

	metrics.Closed(ctx, c.cred.kind.String())

	if err := rel.Release(); err != nil {
		c.log.LogAttrs(ctx, slog.LevelError, "close connection failed",
			slog.String("conn_id", c.id.String()),
			slog.String("error", err.Error()),
		)
		return errors.E(ctx, errors.CatInternal, errors.TypeRelease, err)
	}

	c.log.LogAttrs(ctx, slog.LevelInfo, "close connection",
		slog.String("conn_id", c.id.String()),
		slog.Duration("open_for", openFor),
	)
	return nil
}

// InitMetrics initializes OpenTelemetry metrics for all Conns in the process. Safe
// to skip; without it no metrics are recorded.
func InitMetrics(meter metric.Meter) error {
	return metrics.Init(meter)
}
