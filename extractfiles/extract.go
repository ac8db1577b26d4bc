// Package extractfiles locates upload values nested anywhere inside a
// GraphQL variables tree, in the manner of
// https://github.com/jaydenseric/extract-files.
package extractfiles

import (
	"sort"
	"strconv"

	"github.com/99designs/gqlgen/graphql"
)

// Upload is the file-reference marker callers put into operation variables
// to tag a value for upload.
type Upload = graphql.Upload

// File is one distinct upload found in a variables tree, together with every
// dotted path it occurs at. Paths are relative to the extracted value, so an
// upload under variables["files"][0] is reported as "files.0".
type File struct {
	Paths  []string
	Upload Upload
}

// Extract walks v and returns a deep clone with every upload leaf replaced
// by nil, plus the uploads in the order they were found. The input is never
// mutated. Map keys are visited in sorted order so the result is stable for
// a given input. The same *Upload referenced at several positions is
// reported once, with all of its paths.
func Extract(v any) (any, []File) {
	e := &extraction{indexOf: map[*graphql.Upload]int{}}
	clone := e.walk("", v)

	return clone, e.files
}

type extraction struct {
	files   []File
	indexOf map[*graphql.Upload]int
}

func (e *extraction) walk(path string, v any) any {
	switch item := v.(type) {
	case graphql.Upload:
		e.files = append(e.files, File{Paths: []string{path}, Upload: item})

		return nil
	case *graphql.Upload:
		if item == nil {
			return nil
		}
		if i, ok := e.indexOf[item]; ok {
			e.files[i].Paths = append(e.files[i].Paths, path)

			return nil
		}
		e.indexOf[item] = len(e.files)
		e.files = append(e.files, File{Paths: []string{path}, Upload: *item})

		return nil
	case []graphql.Upload:
		clone := make([]any, len(item))
		for i := range item {
			clone[i] = e.walk(childPath(path, strconv.Itoa(i)), item[i])
		}

		return clone
	case []*graphql.Upload:
		clone := make([]any, len(item))
		for i := range item {
			clone[i] = e.walk(childPath(path, strconv.Itoa(i)), item[i])
		}

		return clone
	case map[string]any:
		keys := make([]string, 0, len(item))
		for k := range item {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		clone := make(map[string]any, len(item))
		for _, k := range keys {
			clone[k] = e.walk(childPath(path, k), item[k])
		}

		return clone
	case []any:
		clone := make([]any, len(item))
		for i := range item {
			clone[i] = e.walk(childPath(path, strconv.Itoa(i)), item[i])
		}

		return clone
	default:
		return v
	}
}

func childPath(parent, key string) string {
	if parent == "" {
		return key
	}

	return parent + "." + key
}
