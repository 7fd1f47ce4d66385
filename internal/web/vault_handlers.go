package web

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/allone-dev/allone/internal/api"
	"github.com/allone-dev/allone/internal/vault"
)

// maxUploadSize bounds a single uploaded file
const maxUploadSize = 20 << 20

var categoryPages = map[api.CategoryKind]struct {
	path    string
	heading string
}{
	api.NoteCategories:     {"/notes", "Private notes"},
	api.DateCategories:     {"/dates", "Important dates"},
	api.DocumentCategories: {"/documents", "My documents"},
}

// backendError renders the error page for a failed vault call
func (s *Server) backendError(c *gin.Context, err error, fallback string) {
	s.logger.Warn().Err(err).Str("path", c.Request.URL.Path).Msg(fallback)

	msg := api.MessageOr(err, fallback)
	if api.IsUnauthorized(err) {
		msg = "Your session may have expired. Please log out and log in again."
	}
	s.render(c, failureStatus(err), "error", gin.H{"Title": msg})
}

func (s *Server) badRequest(c *gin.Context, msg string) {
	s.render(c, http.StatusBadRequest, "error", gin.H{"Title": msg})
}

// userID returns the id of the signed in user, rendering an error page when it is unknown
func (s *Server) userID(c *gin.Context) (string, bool) {
	id := stateFromContext(c).UserID
	if id == "" {
		s.render(c, http.StatusConflict, "error", gin.H{
			"Title": "Your account id is unknown. Please log out and log in again.",
		})
		return "", false
	}
	return id, true
}

// uploadImage forwards an uploaded image to the backend and returns its hosted URL
func (s *Server) uploadImage(c *gin.Context, header *multipart.FileHeader) (string, error) {
	if header.Size > maxUploadSize {
		return "", fmt.Errorf("%s is larger than %s", header.Filename, vault.FormatFileSize(maxUploadSize))
	}
	file, err := header.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	return s.backend.UploadImage(c.Request.Context(), header.Filename, file)
}

func (s *Server) home(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	counts := gin.H{}
	for kind, key := range map[api.CategoryKind]string{
		api.NoteCategories:     "NoteCount",
		api.DateCategories:     "DateCount",
		api.DocumentCategories: "DocCount",
	} {
		cats, err := s.backend.ListCategories(ctx, kind, userID)
		if err != nil {
			s.logger.Warn().Err(err).Str("kind", string(kind)).Msg("Failed to count categories")
			counts[key] = "-"
			continue
		}
		counts[key] = len(cats)
	}

	if albums, err := s.backend.ListAlbums(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to count albums")
		counts["AlbumCount"] = "-"
	} else {
		counts["AlbumCount"] = len(albums)
	}

	counts["Title"] = "Home"
	s.render(c, http.StatusOK, "home", counts)
}

func (s *Server) listCategories(kind api.CategoryKind) gin.HandlerFunc {
	page := categoryPages[kind]
	return func(c *gin.Context) {
		userID, ok := s.userID(c)
		if !ok {
			return
		}

		cats, err := s.backend.ListCategories(c.Request.Context(), kind, userID)
		if err != nil {
			s.backendError(c, err, "Failed to load categories")
			return
		}

		query := c.Query("q")
		s.render(c, http.StatusOK, "categories", gin.H{
			"Title":      page.heading,
			"Heading":    page.heading,
			"BasePath":   page.path,
			"Query":      query,
			"Categories": vault.Search(cats, query, vault.CategoryFields),
		})
	}
}

func (s *Server) createCategory(kind api.CategoryKind) gin.HandlerFunc {
	page := categoryPages[kind]
	return func(c *gin.Context) {
		userID, ok := s.userID(c)
		if !ok {
			return
		}

		var form CategoryForm
		if err := c.ShouldBind(&form); err != nil {
			s.badRequest(c, "Invalid request")
			return
		}
		form.Name = strings.TrimSpace(form.Name)
		if err := s.validator.Struct(&form); err != nil {
			s.badRequest(c, validationMessage(err))
			return
		}

		req := api.CreateCategoryRequest{
			UserID:      userID,
			Name:        form.Name,
			Description: form.Description,
			Color:       form.Color,
			Type:        form.Type,
		}
		if header, err := c.FormFile("thumbnail"); err == nil {
			url, err := s.uploadImage(c, header)
			if err != nil {
				s.backendError(c, err, "Failed to upload thumbnail")
				return
			}
			req.Thumbnail = url
		}

		if err := s.backend.CreateCategory(c.Request.Context(), kind, req); err != nil {
			s.backendError(c, err, "Failed to create category")
			return
		}

		s.logger.Info().Str("kind", string(kind)).Str("name", form.Name).Msg("Category created")
		c.Redirect(http.StatusSeeOther, page.path)
	}
}

func (s *Server) categoryDetail(c *gin.Context, kind api.CategoryKind) (*api.CategoryDetail, bool) {
	detail, err := s.backend.GetCategory(c.Request.Context(), kind, c.Param("id"))
	if err != nil {
		s.backendError(c, err, "Failed to load category")
		return nil, false
	}
	return detail, true
}

func itemsPath(kind api.CategoryKind, categoryID string) string {
	return categoryPages[kind].path + "/" + categoryID
}

func (s *Server) noteCategory(c *gin.Context) {
	detail, ok := s.categoryDetail(c, api.NoteCategories)
	if !ok {
		return
	}

	query := c.Query("q")
	notes := vault.SortNotes(vault.Search(detail.Notes, query, vault.NoteFields))
	s.render(c, http.StatusOK, "note-category", gin.H{
		"Title":    detail.Category.Name,
		"Category": detail.Category,
		"Query":    query,
		"Notes":    notes,
		"BasePath": itemsPath(api.NoteCategories, c.Param("id")),
	})
}

func (s *Server) addNote(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	var form NoteForm
	if err := c.ShouldBind(&form); err != nil {
		s.badRequest(c, "Invalid request")
		return
	}
	if err := s.validator.Struct(&form); err != nil {
		s.badRequest(c, validationMessage(err))
		return
	}

	err := s.backend.CreateNote(c.Request.Context(), api.CreateNoteRequest{
		UserID:     userID,
		CategoryID: c.Param("id"),
		Title:      form.Title,
		Content:    form.Content,
	})
	if err != nil {
		s.backendError(c, err, "Failed to add note")
		return
	}
	c.Redirect(http.StatusSeeOther, itemsPath(api.NoteCategories, c.Param("id")))
}

func (s *Server) pinNote(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	pinned, err := strconv.ParseBool(c.PostForm("pinned"))
	if err != nil {
		s.badRequest(c, "Invalid request")
		return
	}

	if err := s.backend.SetNotePinned(c.Request.Context(), userID, c.Param("itemID"), pinned); err != nil {
		s.backendError(c, err, "Failed to update note")
		return
	}
	c.Redirect(http.StatusSeeOther, itemsPath(api.NoteCategories, c.Param("id")))
}

func (s *Server) deleteNote(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	if err := s.backend.DeleteNote(c.Request.Context(), userID, c.Param("itemID")); err != nil {
		s.backendError(c, err, "Failed to delete note")
		return
	}
	c.Redirect(http.StatusSeeOther, itemsPath(api.NoteCategories, c.Param("id")))
}

func (s *Server) dateCategory(c *gin.Context) {
	detail, ok := s.categoryDetail(c, api.DateCategories)
	if !ok {
		return
	}

	upcoming := c.Query("upcoming") == "1"
	dates := vault.SortDates(detail.Dates)
	if upcoming {
		dates = vault.Upcoming(detail.Dates, s.now())
	}

	s.render(c, http.StatusOK, "date-category", gin.H{
		"Title":        detail.Category.Name,
		"Category":     detail.Category,
		"Dates":        dates,
		"UpcomingOnly": upcoming,
		"BasePath":     itemsPath(api.DateCategories, c.Param("id")),
	})
}

func (s *Server) addDate(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	var form DateForm
	if err := c.ShouldBind(&form); err != nil {
		s.badRequest(c, "Invalid request")
		return
	}
	if err := s.validator.Struct(&form); err != nil {
		s.badRequest(c, validationMessage(err))
		return
	}

	err := s.backend.CreateDate(c.Request.Context(), api.CreateDateRequest{
		UserID:      userID,
		CategoryID:  c.Param("id"),
		Title:       form.Title,
		Date:        form.Date,
		Description: form.Description,
		Reminder:    form.Reminder,
	})
	if err != nil {
		s.backendError(c, err, "Failed to add date")
		return
	}
	c.Redirect(http.StatusSeeOther, itemsPath(api.DateCategories, c.Param("id")))
}

func (s *Server) deleteDate(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	if err := s.backend.DeleteDate(c.Request.Context(), userID, c.Param("itemID")); err != nil {
		s.backendError(c, err, "Failed to delete date")
		return
	}
	c.Redirect(http.StatusSeeOther, itemsPath(api.DateCategories, c.Param("id")))
}

func (s *Server) docCategory(c *gin.Context) {
	detail, ok := s.categoryDetail(c, api.DocumentCategories)
	if !ok {
		return
	}

	query := c.Query("q")
	s.render(c, http.StatusOK, "doc-category", gin.H{
		"Title":     detail.Category.Name,
		"Category":  detail.Category,
		"Query":     query,
		"Documents": vault.Search(detail.Documents, query, vault.DocumentFields),
		"BasePath":  itemsPath(api.DocumentCategories, c.Param("id")),
	})
}

func (s *Server) uploadDocument(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	var form DocumentForm
	if err := c.ShouldBind(&form); err != nil {
		s.badRequest(c, "Invalid request")
		return
	}
	if err := s.validator.Struct(&form); err != nil {
		s.badRequest(c, validationMessage(err))
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		s.badRequest(c, "Please choose a file to upload.")
		return
	}
	if header.Size > maxUploadSize {
		s.badRequest(c, fmt.Sprintf("Files must be smaller than %s.", vault.FormatFileSize(maxUploadSize)))
		return
	}
	file, err := header.Open()
	if err != nil {
		s.badRequest(c, "Could not read the uploaded file.")
		return
	}
	defer file.Close()

	err = s.backend.UploadDocument(c.Request.Context(), api.UploadDocumentRequest{
		UserID:     userID,
		CategoryID: c.Param("id"),
		Title:      form.Title,
		Filename:   header.Filename,
		Content:    file,
	})
	if err != nil {
		s.backendError(c, err, "Failed to upload document")
		return
	}

	s.logger.Info().Str("title", form.Title).Int64("size", header.Size).Msg("Document uploaded")
	c.Redirect(http.StatusSeeOther, itemsPath(api.DocumentCategories, c.Param("id")))
}

func (s *Server) downloadDocument(c *gin.Context) {
	body, contentType, err := s.backend.DocumentContent(c.Request.Context(), c.Param("itemID"))
	if err != nil {
		s.backendError(c, err, "Failed to download document")
		return
	}
	defer body.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", "attachment")
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, body); err != nil {
		s.logger.Warn().Err(err).Msg("Document download interrupted")
	}
}

func (s *Server) deleteDocument(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	if err := s.backend.DeleteDocument(c.Request.Context(), userID, c.Param("itemID")); err != nil {
		s.backendError(c, err, "Failed to delete document")
		return
	}
	c.Redirect(http.StatusSeeOther, itemsPath(api.DocumentCategories, c.Param("id")))
}

func (s *Server) albums(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	albums, err := s.backend.ListAlbums(c.Request.Context(), userID)
	if err != nil {
		s.backendError(c, err, "Failed to load albums")
		return
	}

	query := c.Query("q")
	sortBy := vault.ParseAlbumSort(c.Query("sort"))
	s.render(c, http.StatusOK, "albums", gin.H{
		"Title":  "Memory albums",
		"Query":  query,
		"Sort":   string(sortBy),
		"Albums": vault.SortAlbums(vault.Search(albums, query, vault.AlbumFields), sortBy),
	})
}

func (s *Server) createAlbum(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	var form AlbumForm
	if err := c.ShouldBind(&form); err != nil {
		s.badRequest(c, "Invalid request")
		return
	}
	form.Title = strings.TrimSpace(form.Title)
	if err := s.validator.Struct(&form); err != nil {
		s.badRequest(c, validationMessage(err))
		return
	}

	header, err := c.FormFile("cover")
	if err != nil {
		s.badRequest(c, "Please choose a cover image.")
		return
	}
	url, err := s.uploadImage(c, header)
	if err != nil {
		s.backendError(c, err, "Failed to upload cover")
		return
	}

	if err := s.backend.CreateAlbum(c.Request.Context(), api.CreateAlbumRequest{UserID: userID, URL: url, Title: form.Title}); err != nil {
		s.backendError(c, err, "Failed to create album")
		return
	}

	s.logger.Info().Str("title", form.Title).Msg("Album created")
	c.Redirect(http.StatusSeeOther, "/albums")
}

func (s *Server) album(c *gin.Context) {
	detail, err := s.backend.GetAlbum(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.backendError(c, err, "Failed to load album")
		return
	}

	s.render(c, http.StatusOK, "album", gin.H{
		"Title":  detail.Album.Title,
		"Album":  detail.Album,
		"Photos": detail.Photos,
	})
}

func (s *Server) addPhotos(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil || len(form.File["photos"]) == 0 {
		s.badRequest(c, "Please choose at least one photo.")
		return
	}

	urls := make([]string, 0, len(form.File["photos"]))
	for _, header := range form.File["photos"] {
		url, err := s.uploadImage(c, header)
		if err != nil {
			s.backendError(c, err, "Failed to upload photo")
			return
		}
		urls = append(urls, url)
	}

	if _, err := s.backend.AddPhotos(c.Request.Context(), c.Param("id"), urls); err != nil {
		s.backendError(c, err, "Failed to add photos")
		return
	}

	s.logger.Info().Str("album_id", c.Param("id")).Int("count", len(urls)).Msg("Photos added")
	c.Redirect(http.StatusSeeOther, "/albums/"+c.Param("id"))
}

func (s *Server) deletePhoto(c *gin.Context) {
	if err := s.backend.DeletePhoto(c.Request.Context(), c.Param("photoID")); err != nil {
		s.backendError(c, err, "Failed to delete photo")
		return
	}
	c.Redirect(http.StatusSeeOther, "/albums/"+c.Param("id"))
}
