// Package transport supplies the HTTP transport a connection owns for its SDK
// client. The Azure Blob Storage client has no release call of its own, so the unit
// of cleanup for a connection is dropping the idle pooled sockets held by the
// transport it was constructed with.
package transport

import (
	"net/http"
	"time"
)

// Releaser releases pooled network resources held for a connection.
type Releaser interface {
	// Release drops idle pooled connections held for the connection.
	Release() error
}

var _ Releaser = (*Transport)(nil)

// Transport is an HTTP transport tuned for blob traffic. It satisfies the Azure SDK
// policy.Transporter interface so it can be handed to the client constructors.
type Transport struct {
	base *http.Transport
}

// New creates a Transport cloned from http.DefaultTransport with idle pool settings
// suited to blob storage.
func New() *Transport {
	base, ok := http.DefaultTransport.(*http.Transport)
	if ok {
		base = base.Clone()
	} else {
		base = &http.Transport{}
	}
	if base.MaxIdleConns == 0 {
		base.MaxIdleConns = 256
	}
	if base.MaxIdleConnsPerHost == 0 {
		base.MaxIdleConnsPerHost = 64
	}
	if base.IdleConnTimeout == 0 {
		base.IdleConnTimeout = 90 * time.Second
	}
	if base.TLSHandshakeTimeout == 0 {
		base.TLSHandshakeTimeout = 10 * time.Second
	}
	return &Transport{base: base}
}

// Do implements policy.Transporter.
func (t *Transport) Do(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req)
}

// Release drops all idle connections held by the transport. It is safe to call more
// than once.
func (t *Transport) Release() error {
	t.base.CloseIdleConnections()
	return nil
}
