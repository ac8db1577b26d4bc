// Package extensions provides optional interceptors for the upload link.
package extensions

import (
	"context"
	"crypto/sha256"
	"fmt"
	"maps"

	"github.com/ppvolto/apollo-upload-client/uploadlink"
)

// PersistedQueryKey is the extensions field carrying the query hash.
const PersistedQueryKey = "persistedQuery"

const codePersistedQueryNotFound = "PERSISTED_QUERY_NOT_FOUND"

type persistedQuery struct {
	Version    int64  `json:"version"`
	Sha256Hash string `json:"sha256Hash"`
}

// AutomaticPersistedQueries returns an interceptor implementing the
// persisted-query protocol: the first attempt sends only a sha256 hash of
// the printed query, and the full query is re-sent once when the server does
// not know the hash yet.
func AutomaticPersistedQueries() uploadlink.Interceptor {
	return func(ctx context.Context, op uploadlink.Operation, eo *uploadlink.EffectiveOptions, next uploadlink.InterceptorFunc) (*uploadlink.OperationResponse, error) {
		exts := maps.Clone(op.Extensions)
		if exts == nil {
			exts = map[string]any{}
		}
		if _, ok := exts[PersistedQueryKey]; !ok {
			sum := sha256.Sum256([]byte(op.Query))
			exts[PersistedQueryKey] = persistedQuery{
				Version:    1,
				Sha256Hash: fmt.Sprintf("%x", sum),
			}
		}
		op.Extensions = exts

		hashed := *eo
		hashed.IncludeQuery = false
		hashed.IncludeExtensions = true

		res, err := next(ctx, op, &hashed)
		if err != nil {
			return nil, err
		}

		if res.HasErrorCode(codePersistedQueryNotFound) {
			full := *eo
			full.IncludeQuery = true
			full.IncludeExtensions = true

			return next(ctx, op, &full)
		}

		return res, nil
	}
}
