package blobconn

import (
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/gostdlib/base/context"

	"github.com/element-of-surprise/blobconn/errors"
)

// Scope opens a connection to endpoint with cred, runs fn with the client handle
// and closes the connection on every exit path, including a panic in fn. fn's error
// is returned; a close error is joined to it, or returned alone when fn succeeded.
func Scope(ctx context.Context, endpoint string, cred Credential, fn func(context.Context, *azblob.Client) error, options ...Option) error {
	c, err := New(endpoint, cred, options...)
	if err != nil {
		return err
	}
	return c.Scope(ctx, fn)
}

// Scope runs fn between Open and a guaranteed Close on this Conn. Close runs
// exactly once per successful Open, whether fn returns normally, returns an error
// or panics.
func (c *Conn) Scope(ctx context.Context, fn func(context.Context, *azblob.Client) error) (err error) {
	client, err := c.Open(ctx)
	if err != nil {
		return err
	}

	defer func() {
		// Runs during panic unwind as well; ctx may already be canceled by
		// whatever failed, release still has to happen.
		if cerr := c.Close(context.WithoutCancel(ctx)); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	return fn(ctx, client)
}
