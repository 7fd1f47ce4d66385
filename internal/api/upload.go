package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// UploadImage uploads an image (category thumbnail, album cover or photo)
// and returns its hosted URL.
func (c *Client) UploadImage(ctx context.Context, filename string, content io.Reader) (string, error) {
	req, err := multipartRequest("/api/images/upload", nil, "image", filename, content)
	if err != nil {
		return "", err
	}

	var resp struct {
		URL string `json:"url"`
	}
	if err := c.doJSON(ctx, req, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", fmt.Errorf("%w: upload response has no url", ErrMalformedResponse)
	}
	return resp.URL, nil
}

// UploadDocumentRequest describes a document upload
type UploadDocumentRequest struct {
	UserID     string
	CategoryID string
	Title      string
	Filename   string
	Content    io.Reader
}

// UploadDocument uploads a file into a document category
func (c *Client) UploadDocument(ctx context.Context, up UploadDocumentRequest) error {
	fields := [][2]string{
		{"userId", up.UserID},
		{"categoryId", up.CategoryID},
		{"title", up.Title},
	}
	req, err := multipartRequest("/api/documents/upload", fields, "file", up.Filename, up.Content)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, req, nil)
}

// multipartRequest buffers a multipart/form-data body with ordered text
// fields followed by one file part.
func multipartRequest(path string, fields [][2]string, fileField, filename string, content io.Reader) (request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return request{}, fmt.Errorf("failed to write form field %s: %w", f[0], err)
		}
	}

	part, err := w.CreateFormFile(fileField, filename)
	if err != nil {
		return request{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return request{}, fmt.Errorf("failed to read upload content: %w", err)
	}
	if err := w.Close(); err != nil {
		return request{}, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	return request{
		method:      http.MethodPost,
		path:        path,
		body:        &buf,
		contentType: w.FormDataContentType(),
	}, nil
}

// unmarshalList decodes either a bare JSON array or an object holding the
// array under key.
func unmarshalList[T any](data []byte, key string, out *[]T) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*out = nil
		return nil
	}
	if data[0] == '[' {
		return json.Unmarshal(data, out)
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	raw, ok := wrapped[key]
	if !ok {
		*out = nil
		return nil
	}
	return json.Unmarshal(raw, out)
}
