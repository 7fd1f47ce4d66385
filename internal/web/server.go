// Package web serves the local browser front end of the vault.
//
// Every page is gated twice: first on the bootstrap (a loading page is shown
// while the stored session is still being verified), then on the session
// guards evaluated against the live session state on each request.
package web

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/allone-dev/allone/internal/api"
	"github.com/allone-dev/allone/internal/bootstrap"
	"github.com/allone-dev/allone/internal/config"
	"github.com/allone-dev/allone/internal/session"
)

// Backend is the part of the API client the front end calls
type Backend interface {
	Login(ctx context.Context, email, password string) (*api.AuthResult, error)
	Register(ctx context.Context, req api.RegisterRequest) error
	VerifyOTP(ctx context.Context, email, otp string) (*api.AuthResult, error)
	SendResetOTP(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req api.ResetPasswordRequest) error

	ListCategories(ctx context.Context, kind api.CategoryKind, userID string) ([]api.Category, error)
	GetCategory(ctx context.Context, kind api.CategoryKind, categoryID string) (*api.CategoryDetail, error)
	CreateCategory(ctx context.Context, kind api.CategoryKind, req api.CreateCategoryRequest) error
	CreateNote(ctx context.Context, req api.CreateNoteRequest) error
	SetNotePinned(ctx context.Context, userID, noteID string, pinned bool) error
	DeleteNote(ctx context.Context, userID, noteID string) error
	CreateDate(ctx context.Context, req api.CreateDateRequest) error
	DeleteDate(ctx context.Context, userID, dateID string) error
	UploadDocument(ctx context.Context, req api.UploadDocumentRequest) error
	DeleteDocument(ctx context.Context, userID, documentID string) error
	DocumentContent(ctx context.Context, documentID string) (io.ReadCloser, string, error)
	UploadImage(ctx context.Context, filename string, content io.Reader) (string, error)
	ListAlbums(ctx context.Context, userID string) ([]api.Album, error)
	CreateAlbum(ctx context.Context, req api.CreateAlbumRequest) error
	GetAlbum(ctx context.Context, albumID string) (*api.AlbumDetail, error)
	AddPhotos(ctx context.Context, albumID string, urls []string) ([]api.Photo, error)
	DeletePhoto(ctx context.Context, photoID string) error
}

// PhaseSource reports the bootstrap phase
type PhaseSource interface {
	Phase() bootstrap.Phase
}

// Server represents the local web front end
type Server struct {
	router    *gin.Engine
	session   *session.Session
	boot      PhaseSource
	backend   Backend
	config    config.WebConfig
	logger    zerolog.Logger
	validator *validator.Validate
	now       func() time.Time
}

// New creates a new server instance
func New(cfg config.WebConfig, sess *session.Session, boot PhaseSource, backend Backend, zlog zerolog.Logger) (*Server, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		session:   sess,
		boot:      boot,
		backend:   backend,
		config:    cfg,
		logger:    zlog.With().Str("component", "web").Logger(),
		validator: newValidator(),
		now:       time.Now,
	}
	s.setupRouter()
	s.router.SetHTMLTemplate(tmpl)

	return s, nil
}

// Handler returns the HTTP handler of the front end
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(s.originGuard())

	if len(s.config.AllowedOrigins) > 0 {
		s.router.Use(cors.New(cors.Config{
			AllowOrigins:     s.config.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "HEAD", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type"},
			ExposeHeaders:    []string{"Content-Length", requestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Health check is answered even while the session is being checked
	s.router.GET("/health", s.healthCheck)

	s.router.NoRoute(s.notFound)

	pages := s.router.Group("/")
	pages.Use(s.bootstrapGate())

	// Views for visitors without a session
	public := pages.Group("/")
	public.Use(RequirePublic(s.session))
	{
		public.GET("/login", s.loginPage)
		public.POST("/login", s.login)
		public.GET("/signup", s.signupPage)
		public.POST("/signup", s.signup)
		public.GET("/verify-otp", s.verifyOTPPage)
		public.POST("/verify-otp", s.verifyOTP)
		public.POST("/verify-otp/cancel", s.cancelVerification)
		public.GET("/forgot-password", s.forgotPasswordPage)
		public.POST("/forgot-password", s.forgotPassword)
		public.GET("/reset-password", s.resetPasswordPage)
		public.POST("/reset-password", s.resetPassword)
		public.POST("/reset-password/cancel", s.cancelPasswordReset)
	}

	// Vault views
	private := pages.Group("/")
	private.Use(RequireAuth(s.session))
	{
		private.GET("/", s.home)
		private.GET("/profile", s.profile)
		private.GET("/logout", s.logoutPage)
		private.POST("/logout", s.logout)

		s.categoryRoutes(private.Group("/notes"), api.NoteCategories)
		s.categoryRoutes(private.Group("/dates"), api.DateCategories)
		s.categoryRoutes(private.Group("/documents"), api.DocumentCategories)

		private.GET("/notes/:id", s.noteCategory)
		private.POST("/notes/:id", s.addNote)
		private.POST("/notes/:id/items/:itemID/pin", s.pinNote)
		private.POST("/notes/:id/items/:itemID/delete", s.deleteNote)

		private.GET("/dates/:id", s.dateCategory)
		private.POST("/dates/:id", s.addDate)
		private.POST("/dates/:id/items/:itemID/delete", s.deleteDate)

		private.GET("/documents/:id", s.docCategory)
		private.POST("/documents/:id", s.uploadDocument)
		private.GET("/documents/:id/items/:itemID/download", s.downloadDocument)
		private.POST("/documents/:id/items/:itemID/delete", s.deleteDocument)

		private.GET("/albums", s.albums)
		private.POST("/albums", s.createAlbum)
		private.GET("/albums/:id", s.album)
		private.POST("/albums/:id", s.addPhotos)
		private.POST("/albums/:id/photos/:photoID/delete", s.deletePhoto)
	}
}

func (s *Server) categoryRoutes(g *gin.RouterGroup, kind api.CategoryKind) {
	g.GET("", s.listCategories(kind))
	g.POST("", s.createCategory(kind))
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "allone",
		"session":   s.boot.Phase().String(),
	})
}

func (s *Server) notFound(c *gin.Context) {
	s.render(c, http.StatusNotFound, "error", gin.H{"Title": "Page not found"})
}

// Run serves on the configured address until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	unsubscribe := s.session.Subscribe(s.sessionWatcher(s.session.State()))
	defer unsubscribe()

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       300 * time.Second,
		// In-flight backend calls follow the request context
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", ln.Addr().String()).Msg("Starting HTTP server")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.logger.Error().Err(err).Msg("HTTP server error")
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}
	<-errCh

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}

// sessionWatcher logs sign-in and sign-out transitions of the session,
// whichever front end or the bootstrap caused them
func (s *Server) sessionWatcher(initial session.State) func(session.State) {
	var mu sync.Mutex
	last := initial

	return func(state session.State) {
		mu.Lock()
		prev := last
		last = state
		mu.Unlock()

		switch {
		case state.IsAuthenticated && (!prev.IsAuthenticated || prev.Email != state.Email):
			s.logger.Info().Str("email", state.Email).Msg("Session signed in")
		case !state.IsAuthenticated && prev.IsAuthenticated:
			s.logger.Info().Str("email", prev.Email).Msg("Session signed out")
		}
	}
}
