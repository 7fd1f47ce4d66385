package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// CategoryKind selects one of the three category collections
type CategoryKind string

const (
	NoteCategories     CategoryKind = "note-categories"
	DateCategories     CategoryKind = "date-categories"
	DocumentCategories CategoryKind = "doc-categories"
)

// Valid reports whether k names a known collection
func (k CategoryKind) Valid() bool {
	switch k {
	case NoteCategories, DateCategories, DocumentCategories:
		return true
	}
	return false
}

// Category groups notes, dates or documents
type Category struct {
	ID          string    `json:"_id"`
	UserID      string    `json:"userId,omitempty"`
	Name        string    `json:"name"`
	Type        string    `json:"type,omitempty"`
	Color       string    `json:"color,omitempty"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// Note is a private note inside a note category
type Note struct {
	ID         string    `json:"_id"`
	CategoryID string    `json:"categoryId,omitempty"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	IsPinned   bool      `json:"isPinned"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ImportantDate is an entry inside a date category.
// Date is kept as sent by the backend (ISO date or timestamp).
type ImportantDate struct {
	ID          string `json:"_id"`
	CategoryID  string `json:"categoryId,omitempty"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
	Reminder    bool   `json:"reminder"`
}

// Document is an uploaded file inside a document category
type Document struct {
	ID        string    `json:"_id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	FileType  string    `json:"fileType"`
	FileSize  int64     `json:"fileSize"`
	CreatedAt time.Time `json:"createdAt"`
}

// Album is a photo album with a cover image
type Album struct {
	ID        string    `json:"_id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

// Photo belongs to an album
type Photo struct {
	ID        string    `json:"_id"`
	AlbumID   string    `json:"albumId"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

// CategoryDetail is a category with its items. Only the slice matching the
// category kind is populated.
type CategoryDetail struct {
	Category  Category        `json:"category"`
	Notes     []Note          `json:"notes,omitempty"`
	Dates     []ImportantDate `json:"dates,omitempty"`
	Documents []Document      `json:"documents,omitempty"`
}

// AlbumDetail is an album with its photos
type AlbumDetail struct {
	Album  Album   `json:"album"`
	Photos []Photo `json:"photos"`
}

// categoryList accepts either a bare array or {categories: [...]}
type categoryList []Category

func (l *categoryList) UnmarshalJSON(data []byte) error {
	return unmarshalList(data, "categories", (*[]Category)(l))
}

// ListCategories returns the user's categories of the given kind
func (c *Client) ListCategories(ctx context.Context, kind CategoryKind, userID string) ([]Category, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown category kind %q", kind)
	}

	var list categoryList
	path := fmt.Sprintf("/api/%s/user/%s", kind, url.PathEscape(userID))
	if err := c.call(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetCategory returns a category with its items
func (c *Client) GetCategory(ctx context.Context, kind CategoryKind, categoryID string) (*CategoryDetail, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown category kind %q", kind)
	}

	var detail CategoryDetail
	path := fmt.Sprintf("/api/%s/%s", kind, url.PathEscape(categoryID))
	if err := c.call(ctx, http.MethodGet, path, nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// CreateCategoryRequest represents the category creation body
type CreateCategoryRequest struct {
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Color       string `json:"color,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Description string `json:"description,omitempty"`
}

// CreateCategory creates a category of the given kind
func (c *Client) CreateCategory(ctx context.Context, kind CategoryKind, req CreateCategoryRequest) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown category kind %q", kind)
	}
	return c.call(ctx, http.MethodPost, "/api/"+string(kind), req, nil)
}

// CreateNoteRequest represents the note creation body
type CreateNoteRequest struct {
	UserID     string `json:"userId"`
	CategoryID string `json:"categoryId"`
	Title      string `json:"title"`
	Content    string `json:"content"`
}

// CreateNote adds a note to a category
func (c *Client) CreateNote(ctx context.Context, req CreateNoteRequest) error {
	return c.call(ctx, http.MethodPost, "/api/notes", req, nil)
}

// SetNotePinned pins or unpins a note
func (c *Client) SetNotePinned(ctx context.Context, userID, noteID string, pinned bool) error {
	body := struct {
		UserID   string `json:"userId"`
		IsPinned bool   `json:"isPinned"`
	}{UserID: userID, IsPinned: pinned}
	return c.call(ctx, http.MethodPut, "/api/notes/"+url.PathEscape(noteID), body, nil)
}

// DeleteNote deletes a note
func (c *Client) DeleteNote(ctx context.Context, userID, noteID string) error {
	return c.call(ctx, http.MethodDelete, "/api/notes/"+url.PathEscape(noteID), ownerBody{UserID: userID}, nil)
}

// CreateDateRequest represents the important date creation body
type CreateDateRequest struct {
	UserID      string `json:"userId"`
	CategoryID  string `json:"categoryId"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
	Reminder    bool   `json:"reminder"`
}

// CreateDate adds an important date to a category
func (c *Client) CreateDate(ctx context.Context, req CreateDateRequest) error {
	return c.call(ctx, http.MethodPost, "/api/dates", req, nil)
}

// DeleteDate deletes an important date
func (c *Client) DeleteDate(ctx context.Context, userID, dateID string) error {
	return c.call(ctx, http.MethodDelete, "/api/dates/"+url.PathEscape(dateID), ownerBody{UserID: userID}, nil)
}

// DeleteDocument deletes an uploaded document
func (c *Client) DeleteDocument(ctx context.Context, userID, documentID string) error {
	return c.call(ctx, http.MethodDelete, "/api/documents/"+url.PathEscape(documentID), ownerBody{UserID: userID}, nil)
}

// DocumentContent streams a document's bytes. The caller must close the body.
func (c *Client) DocumentContent(ctx context.Context, documentID string) (io.ReadCloser, string, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: "/api/documents/content/" + url.PathEscape(documentID)})
	if err != nil {
		return nil, "", err
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// albumList accepts either a bare array or {albums: [...]}
type albumList []Album

func (l *albumList) UnmarshalJSON(data []byte) error {
	return unmarshalList(data, "albums", (*[]Album)(l))
}

// ListAlbums returns the user's albums
func (c *Client) ListAlbums(ctx context.Context, userID string) ([]Album, error) {
	var list albumList
	if err := c.call(ctx, http.MethodGet, "/api/album/user/"+url.PathEscape(userID), nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// CreateAlbumRequest represents the album creation body
type CreateAlbumRequest struct {
	UserID string `json:"userId"`
	URL    string `json:"url"`
	Title  string `json:"title"`
}

// CreateAlbum creates an album from an already uploaded cover image
func (c *Client) CreateAlbum(ctx context.Context, req CreateAlbumRequest) error {
	return c.call(ctx, http.MethodPost, "/api/album/upload", req, nil)
}

// GetAlbum returns an album with its photos
func (c *Client) GetAlbum(ctx context.Context, albumID string) (*AlbumDetail, error) {
	var detail AlbumDetail
	if err := c.call(ctx, http.MethodGet, "/api/photos/album-details/"+url.PathEscape(albumID), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// AddPhotos attaches uploaded image URLs to an album and returns the new photos
func (c *Client) AddPhotos(ctx context.Context, albumID string, urls []string) ([]Photo, error) {
	body := struct {
		AlbumID string   `json:"albumId"`
		URLs    []string `json:"urls"`
	}{AlbumID: albumID, URLs: urls}

	var resp struct {
		Photos []Photo `json:"photos"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/photos/add", body, &resp); err != nil {
		return nil, err
	}
	return resp.Photos, nil
}

// DeletePhoto removes a photo from its album
func (c *Client) DeletePhoto(ctx context.Context, photoID string) error {
	body := struct {
		PhotoID string `json:"photoId"`
	}{PhotoID: photoID}
	return c.call(ctx, http.MethodDelete, "/api/photos/delete", body, nil)
}

type ownerBody struct {
	UserID string `json:"userId"`
}
