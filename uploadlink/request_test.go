package uploadlink

import (
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

func mustParseQuery(t *testing.T, query string) *ast.QueryDocument {
	t.Helper()
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	require.Nil(t, err)

	return doc
}

func TestDefaultPrinter(t *testing.T) {
	t.Parallel()

	t.Run("prints canonical text", func(t *testing.T) {
		t.Parallel()

		doc := mustParseQuery(t, `query GetUser($id:ID!){user(id:$id){name}}`)

		text, err := defaultPrinter(doc)
		require.NoError(t, err)
		require.Contains(t, text, "query GetUser")
		require.Contains(t, text, "user(id: $id)")
	})

	t.Run("nil document fails", func(t *testing.T) {
		t.Parallel()

		_, err := defaultPrinter(nil)
		require.Error(t, err)
	})
}

func TestPrintQuery(t *testing.T) {
	t.Parallel()

	t.Run("pre printed query wins", func(t *testing.T) {
		t.Parallel()

		text, err := printQuery(defaultPrinter, Operation{Query: "{viewer{id}}"})
		require.NoError(t, err)
		require.Equal(t, "{viewer{id}}", text)
	})

	t.Run("document is printed", func(t *testing.T) {
		t.Parallel()

		op := Operation{Document: mustParseQuery(t, `{viewer{id}}`)}
		text, err := printQuery(defaultPrinter, op)
		require.NoError(t, err)
		require.Contains(t, text, "viewer")
	})
}

func decodeJSONBody(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&decoded))

	return decoded
}

func TestEncodeBodyJSON(t *testing.T) {
	t.Parallel()

	t.Run("no files produces json", func(t *testing.T) {
		t.Parallel()

		op := Operation{
			OperationName: "GetUser",
			Query:         "query GetUser($id:ID!){user(id:$id){name}}",
			Variables:     map[string]any{"id": "42"},
		}
		eo := resolveOptions(Options{})

		body, err := encodeBody(op, eo)
		require.NoError(t, err)
		require.False(t, body.multipart)
		require.Equal(t, "application/json", body.contentType)

		want := map[string]any{
			"query":         "query GetUser($id:ID!){user(id:$id){name}}",
			"operationName": "GetUser",
			"variables":     map[string]any{"id": "42"},
		}
		if diff := cmp.Diff(want, decodeJSONBody(t, body.reader)); diff != "" {
			t.Errorf("body mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty fields are omitted", func(t *testing.T) {
		t.Parallel()

		op := Operation{Query: "{viewer{id}}", Variables: map[string]any{}}
		eo := resolveOptions(Options{})

		body, err := encodeBody(op, eo)
		require.NoError(t, err)

		decoded := decodeJSONBody(t, body.reader)
		require.NotContains(t, decoded, "operationName")
		require.NotContains(t, decoded, "variables")
		require.NotContains(t, decoded, "extensions")
	})

	t.Run("include query off drops the query text", func(t *testing.T) {
		t.Parallel()

		off := false
		op := Operation{Query: "{viewer{id}}"}
		eo := resolveOptions(Options{IncludeQuery: &off})

		body, err := encodeBody(op, eo)
		require.NoError(t, err)
		require.NotContains(t, decodeJSONBody(t, body.reader), "query")
	})

	t.Run("extensions gated by include flag", func(t *testing.T) {
		t.Parallel()

		op := Operation{
			Query:      "{viewer{id}}",
			Extensions: map[string]any{"traceId": "abc"},
		}

		body, err := encodeBody(op, resolveOptions(Options{}))
		require.NoError(t, err)
		require.NotContains(t, decodeJSONBody(t, body.reader), "extensions")

		body, err = encodeBody(op, resolveOptions(Options{IncludeExtensions: true}))
		require.NoError(t, err)
		decoded := decodeJSONBody(t, body.reader)
		require.Equal(t, map[string]any{"traceId": "abc"}, decoded["extensions"])
	})

	t.Run("unserializable variables fail fast", func(t *testing.T) {
		t.Parallel()

		op := Operation{
			OperationName: "Bad",
			Query:         "{viewer{id}}",
			Variables:     map[string]any{"ch": make(chan struct{})},
		}

		_, err := encodeBody(op, resolveOptions(Options{}))

		var serErr *SerializationError
		require.ErrorAs(t, err, &serErr)
		require.Equal(t, "Bad", serErr.OperationName)
		require.Contains(t, err.Error(), "unsupported type")
	})

	t.Run("body is utf8 json text", func(t *testing.T) {
		t.Parallel()

		op := Operation{Query: "{viewer{id}}", Variables: map[string]any{"name": "héllo"}}

		body, err := encodeBody(op, resolveOptions(Options{}))
		require.NoError(t, err)

		raw, err := io.ReadAll(body.reader)
		require.NoError(t, err)
		require.True(t, strings.Contains(string(raw), `"héllo"`) || strings.Contains(string(raw), `\u`))
		require.True(t, json.Valid(raw))
	})
}
