// Package uploadlink is an HTTP transport for GraphQL operations. It encodes
// an operation as a plain JSON request, or as a multipart request per the
// GraphQL multipart request convention whenever the operation's variables
// contain files, dispatches it through an injectable fetch capability, and
// classifies the response into a result or a typed error.
package uploadlink

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/ppvolto/apollo-upload-client/extractfiles"
	"github.com/sirupsen/logrus"
	"github.com/vektah/gqlparser/v2/ast"
)

// Doer executes one http request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Upload is re-exported so callers can tag variable values for upload
// without importing the extraction package.
type Upload = extractfiles.Upload

// Operation is one GraphQL request: a query or mutation document, its
// variables and optional extensions. Either Document or a pre-printed Query
// must be set; the document is printed to canonical text before anything
// else happens.
type Operation struct {
	OperationName string
	Document      *ast.QueryDocument
	Query         string
	Variables     map[string]any
	Extensions    map[string]any
}

// InterceptorFunc continues an intercepted operation.
type InterceptorFunc func(ctx context.Context, op Operation, eo *EffectiveOptions) (*OperationResponse, error)

// Interceptor wraps the encode/dispatch/classify core of the link. It sees
// the operation with its query already printed and may adjust the effective
// options or retry the continuation.
type Interceptor func(ctx context.Context, op Operation, eo *EffectiveOptions, next InterceptorFunc) (*OperationResponse, error)

// ChainInterceptors composes interceptors into one, invoked left to right.
func ChainInterceptors(interceptors ...Interceptor) Interceptor {
	n := len(interceptors)

	return func(ctx context.Context, op Operation, eo *EffectiveOptions, next InterceptorFunc) (*OperationResponse, error) {
		chainer := func(current Interceptor, currentNext InterceptorFunc) InterceptorFunc {
			return func(currentCtx context.Context, currentOp Operation, currentEO *EffectiveOptions) (*OperationResponse, error) {
				return current(currentCtx, currentOp, currentEO, currentNext)
			}
		}

		chained := next
		for i := n - 1; i >= 0; i-- {
			chained = chainer(interceptors[i], chained)
		}

		return chained(ctx, op, eo)
	}
}

// UploadLink dispatches GraphQL operations over HTTP. A link is immutable
// after construction and safe for concurrent use; every request resolves its
// own options and owns its own body and cancellation handle.
type UploadLink struct {
	opts        Options
	fetch       Doer
	printer     Printer
	interceptor Interceptor
	logger      logrus.FieldLogger
}

// New resolves the link's capabilities once. It fails with ErrNoFetch when
// neither Options.Fetch nor the http.DefaultClient global is available;
// that is a construction-time error and never a per-request one.
func New(opts Options, interceptors ...Interceptor) (*UploadLink, error) {
	fetch := opts.Fetch
	if fetch == nil {
		if http.DefaultClient == nil {
			return nil, ErrNoFetch
		}
		fetch = http.DefaultClient
	}

	printer := opts.Printer
	if printer == nil {
		printer = defaultPrinter
	}

	logger := opts.Logger
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}

	// detach the header map from the caller so link defaults stay read-only
	headers := http.Header{}
	mergeHeaders(headers, opts.Headers)
	opts.Headers = headers

	return &UploadLink{
		opts:        opts,
		fetch:       fetch,
		printer:     printer,
		interceptor: ChainInterceptors(interceptors...),
		logger:      logger,
	}, nil
}

// Do executes op and blocks for the outcome, decoding the data field into
// out when out is non-nil. GraphQL-level errors are returned inside the
// OperationResponse, not as a Go error.
func (l *UploadLink) Do(ctx context.Context, op Operation, out any, opts ...RequestOption) (*OperationResponse, error) {
	res, err := l.execute(ctx, op, buildRequestOptions(opts))
	if err != nil {
		return nil, err
	}
	if out != nil {
		if err := res.UnmarshalData(out); err != nil {
			return res, err
		}
	}

	return res, nil
}

// Request starts op asynchronously and returns the pipeline-facing handle.
// Exactly one of result/error is emitted, after which Done closes. Closing
// the handle before the response arrives cancels the in-flight call and
// suppresses all emission.
func (l *UploadLink) Request(ctx context.Context, op Operation, opts ...RequestOption) Response {
	cctx, cancel := context.WithCancel(ctx)
	r := &singleResponse{cancel: cancel, done: make(chan struct{})}
	call := buildRequestOptions(opts)

	go func() {
		res, err := l.execute(cctx, op, call)
		if err != nil && cctx.Err() != nil && errors.Is(err, context.Canceled) {
			// caller-initiated cancellation is an expected outcome, not
			// a failure
			r.suppress()
			cancel()

			return
		}
		r.emit(res, err)
		cancel()
	}()

	return r
}

func (l *UploadLink) execute(ctx context.Context, op Operation, call RequestOptions) (*OperationResponse, error) {
	eo := resolveOptions(l.opts, requestOptionsFromContext(ctx), call)

	query, err := printQuery(l.printer, op)
	if err != nil {
		return nil, &SerializationError{OperationName: op.OperationName, err: err}
	}
	op.Query = query

	return l.interceptor(ctx, op, &eo, l.dispatch)
}

// dispatch is the terminal interceptor: encode the wire body, send it, and
// classify the response. The raw response is written to the operation's
// capture slot before any result or error leaves this function.
func (l *UploadLink) dispatch(ctx context.Context, op Operation, eo *EffectiveOptions) (*OperationResponse, error) {
	body, err := encodeBody(op, *eo)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, eo.Method, eo.URI, body.reader)
	if err != nil {
		return nil, &SerializationError{OperationName: op.OperationName, err: err}
	}

	mergeHeaders(req.Header, eo.Headers)
	log := l.logger.WithFields(logrus.Fields{
		"request_id": uuid.NewString(),
		"operation":  op.OperationName,
		"uri":        eo.URI,
		"multipart":  body.multipart,
		"files":      body.fileCount,
	})
	if body.multipart {
		// the writer's boundary-bearing value must win; a configured
		// multipart content type would be missing the boundary
		if req.Header.Get("Content-Type") != "" {
			log.Debug("dropping configured content-type for multipart request")
		}
		req.Header.Set("Content-Type", body.contentType)
	} else if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", body.contentType)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json; charset=utf-8")
	}
	if eo.Credentials == CredentialsOmit {
		req.Header.Del("Cookie")
		req.Header.Del("Authorization")
	}
	if eo.Modify != nil {
		if err := eo.Modify(req); err != nil {
			return nil, &SerializationError{OperationName: op.OperationName, err: err}
		}
	}

	log.Debug("dispatching graphql request")

	resp, err := l.fetch.Do(req)
	if err != nil {
		return nil, &NetworkError{err: err}
	}
	defer resp.Body.Close()

	if capture := responseCaptureFromContext(ctx); capture != nil {
		capture.set(resp)
	}

	res, err := classifyResponse(op, resp)
	if err != nil {
		log.WithField("status", resp.StatusCode).Debug("graphql request failed")

		return nil, err
	}
	log.WithField("status", resp.StatusCode).Debug("graphql request done")

	return res, nil
}

// Response is the pipeline-facing handle for one in-flight operation.
type Response interface {
	// Get returns the emitted result, or nil before Done or on error.
	Get() *OperationResponse
	// Err returns the emitted classified error, if any.
	Err() error
	// Done closes once the outcome is settled or the handle is closed.
	Done() <-chan struct{}
	// Close cancels the in-flight request. Closing before the response
	// arrives guarantees no result and no error are ever emitted; closing
	// after emission is a no-op.
	Close()
}

type singleResponse struct {
	cancel context.CancelFunc

	mu     sync.Mutex
	res    *OperationResponse
	err    error
	closed bool
	done   chan struct{}
}

func (r *singleResponse) emit(res *OperationResponse, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.res, r.err = res, err
	r.closed = true
	close(r.done)
}

func (r *singleResponse) suppress() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.done)
}

func (r *singleResponse) Get() *OperationResponse {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.res
}

func (r *singleResponse) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.err
}

func (r *singleResponse) Done() <-chan struct{} {
	return r.done
}

func (r *singleResponse) Close() {
	r.suppress()
	r.cancel()
}
