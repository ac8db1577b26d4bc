package uploadlink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strconv"

	"github.com/ppvolto/apollo-upload-client/extractfiles"
)

// encodeMultipartBody lays out the operations, map and indexed file parts of
// the GraphQL multipart request convention
// (https://github.com/jaydenseric/graphql-multipart-request-spec). File
// indices are contiguous, zero-based and stringified; the map associates
// each index with every variables path that file occurs at.
func encodeMultipartBody(operationName string, pl *operationPayload, files []extractfiles.File) (*wireBody, error) {
	buf := new(bytes.Buffer)
	writer := multipart.NewWriter(buf)

	operations, err := json.Marshal(pl)
	if err != nil {
		return nil, &SerializationError{OperationName: operationName, err: fmt.Errorf("encode operations: %w", err)}
	}
	if err := writer.WriteField("operations", string(operations)); err != nil {
		return nil, &SerializationError{OperationName: operationName, err: fmt.Errorf("write operations: %w", err)}
	}

	fileMap := make(map[string][]string, len(files))
	for i, file := range files {
		paths := make([]string, len(file.Paths))
		for j, p := range file.Paths {
			paths[j] = "variables." + p
		}
		fileMap[strconv.Itoa(i)] = paths
	}
	mapping, err := json.Marshal(fileMap)
	if err != nil {
		return nil, &SerializationError{OperationName: operationName, err: fmt.Errorf("encode map: %w", err)}
	}
	if err := writer.WriteField("map", string(mapping)); err != nil {
		return nil, &SerializationError{OperationName: operationName, err: fmt.Errorf("write map: %w", err)}
	}

	for i, file := range files {
		part, err := createFilePart(writer, strconv.Itoa(i), file.Upload)
		if err != nil {
			return nil, &SerializationError{OperationName: operationName, err: fmt.Errorf("form file %d: %w", i, err)}
		}
		if _, err := io.Copy(part, file.Upload.File); err != nil {
			return nil, &SerializationError{OperationName: operationName, err: fmt.Errorf("copy file %d: %w", i, err)}
		}
	}

	if err := writer.Close(); err != nil {
		return nil, &SerializationError{OperationName: operationName, err: fmt.Errorf("writer close: %w", err)}
	}

	return &wireBody{
		reader:      buf,
		contentType: writer.FormDataContentType(),
		multipart:   true,
		fileCount:   len(files),
	}, nil
}

// createFilePart keeps the upload's own content type on its part when it
// carries one.
func createFilePart(writer *multipart.Writer, fieldName string, up extractfiles.Upload) (io.Writer, error) {
	if up.ContentType == "" {
		return writer.CreateFormFile(fieldName, up.Filename)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fieldName, up.Filename))
	header.Set("Content-Type", up.ContentType)

	return writer.CreatePart(header)
}
