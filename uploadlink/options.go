package uploadlink

import (
	"context"
	"net/http"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultURI is the endpoint path used when no URI is configured anywhere.
const DefaultURI = "/graphql"

// Credentials mirrors the fetch credentials switch. The default dispatcher
// implements CredentialsOmit by stripping Cookie and Authorization from the
// outgoing request; the other modes are left to the injected http client's
// cookie jar.
type Credentials string

const (
	CredentialsDefault    Credentials = ""
	CredentialsOmit       Credentials = "omit"
	CredentialsSameOrigin Credentials = "same-origin"
	CredentialsInclude    Credentials = "include"
)

// FetchOptions customize the outgoing http request beyond headers.
type FetchOptions struct {
	// Method defaults to POST.
	Method string
	// Modify runs last on the assembled request, after headers and body.
	Modify func(*http.Request) error
}

// Options is the construction-time configuration of an UploadLink. The
// zero value is usable: it dispatches POST requests to DefaultURI through
// http.DefaultClient.
type Options struct {
	URI          string
	Fetch        Doer
	Headers      http.Header
	Credentials  Credentials
	FetchOptions FetchOptions
	// IncludeExtensions controls whether operation extensions are put on
	// the wire. Off unless enabled somewhere in the option layers.
	IncludeExtensions bool
	// IncludeQuery controls whether the query text is put on the wire.
	// nil means true; persisted-query setups turn it off.
	IncludeQuery *bool
	Printer      Printer
	Logger       logrus.FieldLogger
}

// RequestOptions override link defaults for a single request. They are
// attached to a context with WithRequestOptions or passed per call; empty
// fields leave the lower layer untouched.
type RequestOptions struct {
	URI               string
	Headers           http.Header
	Credentials       Credentials
	FetchOptions      FetchOptions
	IncludeExtensions *bool
	IncludeQuery      *bool
}

// RequestOption mutates the per-call override layer, the highest-precedence
// configuration source.
type RequestOption func(*RequestOptions)

func WithURI(uri string) RequestOption {
	return func(ro *RequestOptions) { ro.URI = uri }
}

func WithHeader(key, value string) RequestOption {
	return func(ro *RequestOptions) {
		if ro.Headers == nil {
			ro.Headers = http.Header{}
		}
		ro.Headers.Set(key, value)
	}
}

func WithCredentials(c Credentials) RequestOption {
	return func(ro *RequestOptions) { ro.Credentials = c }
}

func WithIncludeQuery(include bool) RequestOption {
	return func(ro *RequestOptions) { ro.IncludeQuery = &include }
}

func WithIncludeExtensions(include bool) RequestOption {
	return func(ro *RequestOptions) { ro.IncludeExtensions = &include }
}

func buildRequestOptions(opts []RequestOption) RequestOptions {
	var ro RequestOptions
	for _, opt := range opts {
		opt(&ro)
	}

	return ro
}

// EffectiveOptions is the fully resolved configuration one request is
// dispatched with. Computed fresh per request and never shared.
type EffectiveOptions struct {
	URI               string
	Method            string
	Headers           http.Header
	Credentials       Credentials
	IncludeExtensions bool
	IncludeQuery      bool
	Modify            func(*http.Request) error
}

// resolveOptions merges the configuration layers, lowest to highest
// precedence: link defaults, then each override layer in order (context
// overrides before per-call overrides). Headers merge as a case-insensitive
// key union with later layers winning per key; URI, credentials and method
// are whole-value overrides. The function is pure: the same inputs always
// produce the same EffectiveOptions.
func resolveOptions(link Options, layers ...RequestOptions) EffectiveOptions {
	eo := EffectiveOptions{
		URI:               link.URI,
		Method:            link.FetchOptions.Method,
		Headers:           http.Header{},
		Credentials:       link.Credentials,
		IncludeExtensions: link.IncludeExtensions,
		IncludeQuery:      true,
		Modify:            link.FetchOptions.Modify,
	}
	if link.IncludeQuery != nil {
		eo.IncludeQuery = *link.IncludeQuery
	}
	mergeHeaders(eo.Headers, link.Headers)

	for _, layer := range layers {
		if layer.URI != "" {
			eo.URI = layer.URI
		}
		if layer.Credentials != CredentialsDefault {
			eo.Credentials = layer.Credentials
		}
		if layer.FetchOptions.Method != "" {
			eo.Method = layer.FetchOptions.Method
		}
		if layer.FetchOptions.Modify != nil {
			eo.Modify = layer.FetchOptions.Modify
		}
		if layer.IncludeExtensions != nil {
			eo.IncludeExtensions = *layer.IncludeExtensions
		}
		if layer.IncludeQuery != nil {
			eo.IncludeQuery = *layer.IncludeQuery
		}
		mergeHeaders(eo.Headers, layer.Headers)
	}

	if eo.URI == "" {
		eo.URI = DefaultURI
	}
	if eo.Method == "" {
		eo.Method = http.MethodPost
	}

	return eo
}

func mergeHeaders(dst, src http.Header) {
	for k, vs := range src {
		dst[http.CanonicalHeaderKey(k)] = slices.Clone(vs)
	}
}

type ctxKey int

const (
	requestOptionsKey ctxKey = iota
	responseCaptureKey
)

// WithRequestOptions attaches per-request overrides to ctx. They take
// precedence over link defaults and are themselves overridden by per-call
// options.
func WithRequestOptions(ctx context.Context, ro RequestOptions) context.Context {
	return context.WithValue(ctx, requestOptionsKey, ro)
}

func requestOptionsFromContext(ctx context.Context) RequestOptions {
	ro, _ := ctx.Value(requestOptionsKey).(RequestOptions)

	return ro
}

// ResponseCapture receives the raw http response of an operation so pipeline
// stages downstream of the link can inspect status and headers after the
// body has been consumed.
type ResponseCapture struct {
	mu   sync.Mutex
	resp *http.Response
}

func (c *ResponseCapture) set(resp *http.Response) {
	c.mu.Lock()
	c.resp = resp
	c.mu.Unlock()
}

// Response returns the captured response, or nil while none has arrived.
func (c *ResponseCapture) Response() *http.Response {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.resp
}

// WithResponseCapture installs a capture slot on ctx. The link writes the
// raw response into it before emitting any result or error.
func WithResponseCapture(ctx context.Context) (context.Context, *ResponseCapture) {
	capture := &ResponseCapture{}

	return context.WithValue(ctx, responseCaptureKey, capture), capture
}

func responseCaptureFromContext(ctx context.Context) *ResponseCapture {
	capture, _ := ctx.Value(responseCaptureKey).(*ResponseCapture)

	return capture
}
