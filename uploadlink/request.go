package uploadlink

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ppvolto/apollo-upload-client/extractfiles"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
)

// Printer renders a parsed query document to its canonical text form.
type Printer func(*ast.QueryDocument) (string, error)

func defaultPrinter(doc *ast.QueryDocument) (string, error) {
	if doc == nil {
		return "", errors.New("no query document")
	}

	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatQueryDocument(doc)

	return buf.String(), nil
}

// printQuery resolves the canonical query text for op. A pre-printed Query
// wins over the parsed Document.
func printQuery(print Printer, op Operation) (string, error) {
	if op.Query != "" {
		return op.Query, nil
	}

	return print(op.Document)
}

// operationPayload is the wire shape of the operations record shared by the
// JSON and multipart encodings.
type operationPayload struct {
	Query         string         `json:"query,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     any            `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

func newPayload(op Operation, eo EffectiveOptions, variables any) *operationPayload {
	pl := &operationPayload{OperationName: op.OperationName}
	if eo.IncludeQuery {
		pl.Query = op.Query
	}
	if m, ok := variables.(map[string]any); !ok || len(m) > 0 {
		pl.Variables = variables
	}
	if eo.IncludeExtensions && len(op.Extensions) > 0 {
		pl.Extensions = op.Extensions
	}

	return pl
}

// wireBody is one encoded request body ready for dispatch. Exactly one
// encoding is produced per request: multipart whenever extraction found any
// file, JSON otherwise.
type wireBody struct {
	reader      io.Reader
	contentType string
	multipart   bool
	fileCount   int
}

func encodeBody(op Operation, eo EffectiveOptions) (*wireBody, error) {
	variables, files := extractfiles.Extract(op.Variables)
	pl := newPayload(op, eo, variables)

	if len(files) == 0 {
		b, err := json.Marshal(pl)
		if err != nil {
			return nil, &SerializationError{OperationName: op.OperationName, err: fmt.Errorf("encode operations: %w", err)}
		}

		return &wireBody{reader: bytes.NewReader(b), contentType: "application/json"}, nil
	}

	return encodeMultipartBody(op.OperationName, pl, files)
}
