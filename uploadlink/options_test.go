package uploadlink

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveOptions(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		eo := resolveOptions(Options{})

		require.Equal(t, DefaultURI, eo.URI)
		require.Equal(t, http.MethodPost, eo.Method)
		require.True(t, eo.IncludeQuery)
		require.False(t, eo.IncludeExtensions)
		require.Equal(t, CredentialsDefault, eo.Credentials)
		require.Empty(t, eo.Headers)
	})

	t.Run("headers merge last wins per key", func(t *testing.T) {
		t.Parallel()

		link := Options{Headers: http.Header{"A": []string{"1"}}}
		ctxLayer := RequestOptions{Headers: http.Header{"A": []string{"2"}, "B": []string{"3"}}}

		eo := resolveOptions(link, ctxLayer)

		require.Equal(t, "2", eo.Headers.Get("a"))
		require.Equal(t, "3", eo.Headers.Get("b"))
		require.Len(t, eo.Headers, 2)
	})

	t.Run("headers merge is case insensitive", func(t *testing.T) {
		t.Parallel()

		link := Options{Headers: http.Header{}}
		link.Headers.Set("authorization", "old")
		layer := RequestOptions{Headers: http.Header{}}
		layer.Headers.Set("AUTHORIZATION", "new")

		eo := resolveOptions(link, layer)

		require.Equal(t, "new", eo.Headers.Get("Authorization"))
		require.Len(t, eo.Headers, 1)
	})

	t.Run("uri and credentials are whole value overrides", func(t *testing.T) {
		t.Parallel()

		link := Options{URI: "https://link/graphql", Credentials: CredentialsInclude}
		ctxLayer := RequestOptions{URI: "https://ctx/graphql"}
		callLayer := RequestOptions{Credentials: CredentialsOmit}

		eo := resolveOptions(link, ctxLayer, callLayer)

		require.Equal(t, "https://ctx/graphql", eo.URI)
		require.Equal(t, CredentialsOmit, eo.Credentials)
	})

	t.Run("call layer beats context layer", func(t *testing.T) {
		t.Parallel()

		ctxLayer := RequestOptions{URI: "https://ctx/graphql", Headers: http.Header{"X-Tag": []string{"ctx"}}}
		callLayer := RequestOptions{URI: "https://call/graphql", Headers: http.Header{"X-Tag": []string{"call"}}}

		eo := resolveOptions(Options{}, ctxLayer, callLayer)

		require.Equal(t, "https://call/graphql", eo.URI)
		require.Equal(t, "call", eo.Headers.Get("X-Tag"))
	})

	t.Run("include toggles", func(t *testing.T) {
		t.Parallel()

		off := false
		on := true
		link := Options{IncludeExtensions: true}

		eo := resolveOptions(link, RequestOptions{IncludeQuery: &off, IncludeExtensions: &off}, RequestOptions{IncludeExtensions: &on})

		require.False(t, eo.IncludeQuery)
		require.True(t, eo.IncludeExtensions)
	})

	t.Run("resolution is idempotent", func(t *testing.T) {
		t.Parallel()

		link := Options{
			URI:         "https://link/graphql",
			Headers:     http.Header{"A": []string{"1"}},
			Credentials: CredentialsSameOrigin,
		}
		layer := RequestOptions{Headers: http.Header{"B": []string{"2"}}}

		first := resolveOptions(link, layer)
		second := resolveOptions(link, layer)

		require.Equal(t, first, second)
	})

	t.Run("resolution does not mutate the inputs", func(t *testing.T) {
		t.Parallel()

		link := Options{Headers: http.Header{"A": []string{"1"}}}
		layer := RequestOptions{Headers: http.Header{"A": []string{"2"}}}

		_ = resolveOptions(link, layer)

		require.Equal(t, []string{"1"}, link.Headers["A"])
		require.Equal(t, []string{"2"}, layer.Headers["A"])
	})
}

func TestRequestOptionsContext(t *testing.T) {
	t.Parallel()

	ctx := WithRequestOptions(context.Background(), RequestOptions{URI: "https://ctx/graphql"})

	require.Equal(t, "https://ctx/graphql", requestOptionsFromContext(ctx).URI)
	require.Empty(t, requestOptionsFromContext(context.Background()).URI)
}

func TestResponseCapture(t *testing.T) {
	t.Parallel()

	ctx, capture := WithResponseCapture(context.Background())

	require.Nil(t, capture.Response())
	require.Same(t, capture, responseCaptureFromContext(ctx))

	resp := &http.Response{StatusCode: http.StatusTeapot}
	capture.set(resp)

	require.Same(t, resp, capture.Response())
}
