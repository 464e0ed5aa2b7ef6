package blobconn

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/gostdlib/base/context"

	"github.com/element-of-surprise/blobconn/errors"
)

// fakeReleaser records release calls and can inject a release failure.
type fakeReleaser struct {
	mu    sync.Mutex
	count int
	err   error
}

func (f *fakeReleaser) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	return f.err
}

func (f *fakeReleaser) releases() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

// recordingHandler is a slog.Handler that captures emitted messages so tests can
// assert on open/close events without scraping console output.
type recordingHandler struct {
	mu   sync.Mutex
	msgs []string
}

func (h *recordingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

func (h *recordingHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, r.Message)
	return nil
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *recordingHandler) WithGroup(name string) slog.Handler {
	return h
}

func (h *recordingHandler) messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.msgs...)
}

// testConn builds a Conn whose dial and transport are faked so no SDK client
// construction or network setup happens.
func testConn(t *testing.T, rel *fakeReleaser, h *recordingHandler, dialErr error) *Conn {
	t.Helper()

	c, err := New("https://acct.blob.example", SASToken("sig=abc"), WithLogger(slog.New(h)))
	if err != nil {
		t.Fatalf("testConn: failed to create Conn: %v", err)
	}
	c.newTransport = func() releaser { return rel }
	c.dial = func(ctx context.Context, endpoint string, cred Credential, opts *azblob.ClientOptions) (*azblob.Client, error) {
		if dialErr != nil {
			return nil, dialErr
		}
		return &azblob.Client{}, nil
	}
	return c
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		endpoint string
		cred     Credential
		options  []Option
		wantErr  bool
		wantType errors.Type
	}{
		{
			name:     "Error: empty endpoint",
			endpoint: "",
			cred:     SASToken("sig=abc"),
			wantErr:  true,
			wantType: errors.TypeParameter,
		},
		{
			name:     "Error: zero credential",
			endpoint: "https://acct.blob.example",
			cred:     Credential{},
			wantErr:  true,
			wantType: errors.TypeParameter,
		},
		{
			name:     "Error: nil logger option",
			endpoint: "https://acct.blob.example",
			cred:     SASToken("sig=abc"),
			options:  []Option{WithLogger(nil)},
			wantErr:  true,
			wantType: errors.TypeParameter,
		},
		{
			name:     "Success: shared key credential",
			endpoint: "https://acct.blob.example",
			cred:     SharedKey("acct", "a2V5"),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c, err := New(test.endpoint, test.cred, test.options...)

			switch {
			case err == nil && test.wantErr:
				t.Errorf("TestNew(%s): got err == nil, want err != nil", test.name)
				return
			case err != nil && !test.wantErr:
				t.Errorf("TestNew(%s): got err == %s, want err == nil", test.name, err)
				return
			case err != nil:
				if errors.TypeOf(err) != test.wantType {
					t.Errorf("TestNew(%s): got error type %v, want %v", test.name, errors.TypeOf(err), test.wantType)
				}
				return
			}

			if c.Client() != nil {
				t.Errorf("TestNew(%s): client handle should be nil before Open", test.name)
			}
		})
	}
}

func TestOpenClose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rel := &fakeReleaser{}
	h := &recordingHandler{}
	c := testConn(t, rel, h, nil)

	client, err := c.Open(ctx)
	if err != nil {
		t.Fatalf("TestOpenClose: Open: got err == %s, want err == nil", err)
	}
	if client == nil {
		t.Fatalf("TestOpenClose: Open returned a nil client handle")
	}
	if c.Client() != client {
		t.Errorf("TestOpenClose: Client() should return the handle Open returned")
	}

	if err := c.Close(ctx); err != nil {
		t.Fatalf("TestOpenClose: Close: got err == %s, want err == nil", err)
	}
	if got := rel.releases(); got != 1 {
		t.Errorf("TestOpenClose: got %d release calls, want 1", got)
	}
	if c.Client() != nil {
		t.Errorf("TestOpenClose: client handle should be nil after Close")
	}

	want := []string{"open connection", "close connection"}
	got := h.messages()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("TestOpenClose: got log messages %v, want %v", got, want)
	}
}

func TestDoubleClose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rel := &fakeReleaser{}
	c := testConn(t, rel, &recordingHandler{}, nil)

	if _, err := c.Open(ctx); err != nil {
		t.Fatalf("TestDoubleClose: Open: got err == %s, want err == nil", err)
	}
	if err := c.Close(ctx); err != nil {
		t.Fatalf("TestDoubleClose: first Close: got err == %s, want err == nil", err)
	}

	err := c.Close(ctx)
	if err == nil {
		t.Fatalf("TestDoubleClose: second Close: got err == nil, want err != nil")
	}
	if errors.TypeOf(err) != errors.TypeState {
		t.Errorf("TestDoubleClose: got error type %v, want %v", errors.TypeOf(err), errors.TypeState)
	}
	if got := rel.releases(); got != 1 {
		t.Errorf("TestDoubleClose: got %d release calls, want 1", got)
	}
}

func TestCloseWithoutOpen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := testConn(t, &fakeReleaser{}, &recordingHandler{}, nil)

	err := c.Close(ctx)
	if err == nil {
		t.Fatalf("TestCloseWithoutOpen: got err == nil, want err != nil")
	}
	if errors.TypeOf(err) != errors.TypeState {
		t.Errorf("TestCloseWithoutOpen: got error type %v, want %v", errors.TypeOf(err), errors.TypeState)
	}
}

func TestOpenAlreadyOpen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := testConn(t, &fakeReleaser{}, &recordingHandler{}, nil)

	if _, err := c.Open(ctx); err != nil {
		t.Fatalf("TestOpenAlreadyOpen: first Open: got err == %s, want err == nil", err)
	}

	_, err := c.Open(ctx)
	if err == nil {
		t.Fatalf("TestOpenAlreadyOpen: second Open: got err == nil, want err != nil")
	}
	if errors.TypeOf(err) != errors.TypeState {
		t.Errorf("TestOpenAlreadyOpen: got error type %v, want %v", errors.TypeOf(err), errors.TypeState)
	}
}

func TestOpenFailureStoresNothing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rel := &fakeReleaser{}
	dialErr := errors.E(ctx, errors.CatUser, errors.TypeAuth, errors.New("credential rejected"))
	c := testConn(t, rel, &recordingHandler{}, dialErr)

	_, err := c.Open(ctx)
	if err == nil {
		t.Fatalf("TestOpenFailureStoresNothing: Open: got err == nil, want err != nil")
	}
	if errors.TypeOf(err) != errors.TypeAuth {
		t.Errorf("TestOpenFailureStoresNothing: got error type %v, want %v", errors.TypeOf(err), errors.TypeAuth)
	}
	if c.Client() != nil {
		t.Errorf("TestOpenFailureStoresNothing: no client handle should be stored after a failed Open")
	}
	if got := rel.releases(); got != 0 {
		t.Errorf("TestOpenFailureStoresNothing: got %d release calls, want 0", got)
	}

	// The bookkeeping never saw a successful enter, so exit must fail its
	// precondition rather than no-op.
	cerr := c.Close(ctx)
	if errors.TypeOf(cerr) != errors.TypeState {
		t.Errorf("TestOpenFailureStoresNothing: Close after failed Open: got error type %v, want %v", errors.TypeOf(cerr), errors.TypeState)
	}
}

func TestCloseReleaseError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rel := &fakeReleaser{err: errors.New("sockets held")}
	h := &recordingHandler{}
	c := testConn(t, rel, h, nil)

	if _, err := c.Open(ctx); err != nil {
		t.Fatalf("TestCloseReleaseError: Open: got err == %s, want err == nil", err)
	}

	err := c.Close(ctx)
	if err == nil {
		t.Fatalf("TestCloseReleaseError: Close: got err == nil, want err != nil")
	}
	if errors.TypeOf(err) != errors.TypeRelease {
		t.Errorf("TestCloseReleaseError: got error type %v, want %v", errors.TypeOf(err), errors.TypeRelease)
	}

	// The failed release was logged before propagating.
	got := h.messages()
	if len(got) != 2 || got[1] != "close connection failed" {
		t.Errorf("TestCloseReleaseError: got log messages %v, want open then close-failed", got)
	}

	// The handle is gone either way; another Close is a state violation.
	if cerr := c.Close(ctx); errors.TypeOf(cerr) != errors.TypeState {
		t.Errorf("TestCloseReleaseError: Close after failed Close: got error type %v, want %v", errors.TypeOf(cerr), errors.TypeState)
	}
}

// TestOpenCloseRealDial exercises the real SDK constructor path. SAS client
// construction is lazy, so this runs without a storage account.
func TestOpenCloseRealDial(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := &recordingHandler{}

	c, err := New("https://acct.blob.core.windows.net", SASToken("?sig=abc"), WithLogger(slog.New(h)))
	if err != nil {
		t.Fatalf("TestOpenCloseRealDial: New: got err == %s, want err == nil", err)
	}

	client, err := c.Open(ctx)
	if err != nil {
		t.Fatalf("TestOpenCloseRealDial: Open: got err == %s, want err == nil", err)
	}
	if client == nil {
		t.Fatalf("TestOpenCloseRealDial: Open returned a nil client handle")
	}

	if err := c.Close(ctx); err != nil {
		t.Fatalf("TestOpenCloseRealDial: Close: got err == %s, want err == nil", err)
	}

	want := []string{"open connection", "close connection"}
	got := h.messages()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("TestOpenCloseRealDial: got log messages %v, want %v", got, want)
	}
}
