package uploadlink

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// OperationResponse is one GraphQL execution result as received off the
// wire. Errors here are GraphQL-level errors delivered inside a valid
// envelope; transport failures surface as classified Go errors instead.
type OperationResponse struct {
	Data       json.RawMessage            `json:"data,omitempty"`
	Errors     gqlerror.List              `json:"errors,omitempty"`
	Extensions map[string]json.RawMessage `json:"extensions,omitempty"`
}

// UnmarshalData decodes the data field into out. A response without data
// leaves out untouched.
func (r *OperationResponse) UnmarshalData(out any) error {
	if r == nil || len(r.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Data, out); err != nil {
		return fmt.Errorf("decode response data %q: %w", r.Data, err)
	}

	return nil
}

// HasErrorCode reports whether any GraphQL error carries the given
// extensions code.
func (r *OperationResponse) HasErrorCode(code string) bool {
	if r == nil {
		return false
	}
	for _, gqlErr := range r.Errors {
		if gqlErr == nil {
			continue
		}
		if c, ok := gqlErr.Extensions["code"]; ok && c == code {
			return true
		}
	}

	return false
}

// classifyResponse turns a raw http response into a result or a classified
// error. The status check runs first: a non-2xx response is a NetworkError
// even when its body looks like a valid envelope.
func classifyResponse(op Operation, resp *http.Response) (*OperationResponse, error) {
	body, err := readBody(resp)
	if err != nil {
		return nil, &NetworkError{StatusCode: resp.StatusCode, Response: resp, err: err}
	}

	if resp.StatusCode >= 300 {
		netErr := &NetworkError{StatusCode: resp.StatusCode, Body: string(body), Response: resp}
		var parsed map[string]any
		if json.Unmarshal(body, &parsed) == nil {
			netErr.Result = parsed
		}

		return nil, netErr
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &ParseError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Response:   resp,
			err:        fmt.Errorf("decode response %q: %w", body, err),
		}
	}

	_, hasData := envelope["data"]
	_, hasErrors := envelope["errors"]
	if !hasData && !hasErrors {
		dataErr := &ServerDataError{OperationName: op.OperationName, StatusCode: resp.StatusCode, Response: resp}
		var parsed map[string]any
		if json.Unmarshal(body, &parsed) == nil {
			dataErr.Result = parsed
		}

		return nil, dataErr
	}

	out := &OperationResponse{}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, &ParseError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Response:   resp,
			err:        fmt.Errorf("decode envelope %q: %w", body, err),
		}
	}

	return out, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	reader := resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode gzip: %w", err)
		}
		reader = gzReader
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}
