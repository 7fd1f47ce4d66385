package web

import (
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/allone-dev/allone/internal/bootstrap"
	"github.com/allone-dev/allone/internal/guard"
	"github.com/allone-dev/allone/internal/session"
)

const (
	requestIDHeader = "X-Request-ID"
	stateKey        = "session"
)

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = ulid.Make().String()
		}
		c.Header(requestIDHeader, requestID)

		c.Next()

		duration := time.Since(start)

		event := s.logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = s.logger.Warn()
		}
		event.
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// originGuard rejects requests addressed to an unexpected Host, which is how
// a rebound DNS name reaches the loopback listener, and state-changing
// requests whose Origin or Referer names another site.
func (s *Server) originGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.hostAllowed(c.Request.Host) {
			s.logger.Warn().Str("host", c.Request.Host).Msg("Rejected request for unknown host")
			s.forbid(c)
			return
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		if source := requestSource(c.Request); source != "" && !s.sameOrigin(c.Request, source) {
			s.logger.Warn().
				Str("source", source).
				Str("path", c.Request.URL.Path).
				Msg("Rejected cross-site form submission")
			s.forbid(c)
			return
		}
		c.Next()
	}
}

// forbid answers without the layout, which would show the session email
func (s *Server) forbid(c *gin.Context) {
	c.String(http.StatusForbidden, "Request not allowed")
	c.Abort()
}

// hostAllowed accepts loopback names, the listen host and the configured hosts
func (s *Server) hostAllowed(hostport string) bool {
	host := stripPort(hostport)
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return true
	}
	if listen := stripPort(s.config.Listen); listen != "" && strings.EqualFold(host, listen) {
		return true
	}
	return slices.ContainsFunc(s.config.AllowedHosts, func(h string) bool {
		return strings.EqualFold(host, h)
	})
}

// sameOrigin reports whether source, an Origin or Referer value, belongs to
// the host the request was sent to or to a configured origin
func (s *Server) sameOrigin(r *http.Request, source string) bool {
	u, err := url.Parse(source)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	origin := u.Scheme + "://" + u.Host
	return slices.ContainsFunc(s.config.AllowedOrigins, func(o string) bool {
		return strings.EqualFold(strings.TrimRight(o, "/"), origin)
	})
}

// requestSource returns the Origin header, falling back to the Referer
func requestSource(r *http.Request) string {
	if v := r.Header.Get("Origin"); v != "" {
		return v
	}
	return r.Header.Get("Referer")
}

func stripPort(hostport string) string {
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return strings.Trim(host, "[]")
	}
	return strings.Trim(hostport, "[]")
}

// bootstrapGate shows a loading page until the bootstrap has decided
// whether the stored session is valid
func (s *Server) bootstrapGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.boot.Phase() == bootstrap.Checking {
			c.Header("Retry-After", "1")
			s.render(c, http.StatusServiceUnavailable, "loading", gin.H{
				"Title":   "Loading",
				"Refresh": 1,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAuth only admits authenticated sessions. Others are redirected to
// the login page, which returns them to the requested page afterwards.
func RequireAuth(sess *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := sess.State()
		decision := guard.AuthenticatedOnly(state, c.Request.URL.RequestURI())
		if !decision.Allow {
			c.Redirect(http.StatusSeeOther, guard.LoginURL(decision.From))
			c.Abort()
			return
		}

		c.Set(stateKey, state)
		c.Next()
	}
}

// RequirePublic only admits visitors without a session. Authenticated
// sessions are sent home.
func RequirePublic(sess *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := sess.State()
		decision := guard.PublicOnly(state)
		if !decision.Allow {
			c.Redirect(http.StatusSeeOther, decision.Redirect)
			c.Abort()
			return
		}

		c.Set(stateKey, state)
		c.Next()
	}
}

// stateFromContext returns the session snapshot the guard admitted the request with
func stateFromContext(c *gin.Context) session.State {
	if v, ok := c.Get(stateKey); ok {
		if state, ok := v.(session.State); ok {
			return state
		}
	}
	return session.State{}
}
