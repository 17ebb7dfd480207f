package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	mytoken "github.com/mytoken-labs/mytoken/go"
)

// maxBodyBytes bounds request bodies accepted by the POST routes
const maxBodyBytes = 64 << 10

// ServerConfig configures the gin server
type ServerConfig struct {
	Token *mytoken.Token

	// Auth verifies caller tokens for the caller-authenticated routes.
	// When nil those routes are not registered.
	Auth *Authenticator

	// Logger is optional, defaults to slog.Default()
	Logger *slog.Logger
}

// Server serves the token API with gin
type Server struct {
	api    *API
	auth   *Authenticator
	logger *slog.Logger
	engine *gin.Engine
}

// NewServer builds the gin engine and registers every route.
func NewServer(config ServerConfig) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := gin.New()
	s := &Server{
		api:    NewAPI(config.Token, logger),
		auth:   config.Auth,
		logger: logger,
		engine: engine,
	}
	engine.Use(gin.Recovery(), s.accessLog())
	s.Register(engine)
	return s
}

// Handler returns the http.Handler serving the API
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Engine exposes the gin engine so callers can add routes
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Register adds the token routes to r.
func (s *Server) Register(r gin.IRouter) {
	r.GET("/health", func(c *gin.Context) { write(c, s.api.Health()) })
	r.GET("/token", func(c *gin.Context) { write(c, s.api.TokenInfo(c.Request.Context())) })
	r.GET("/nonces/:owner", func(c *gin.Context) {
		write(c, s.api.Nonces(c.Request.Context(), c.Param("owner")))
	})
	r.GET("/allowance/:owner/:spender", func(c *gin.Context) {
		write(c, s.api.Allowance(c.Request.Context(), c.Param("owner"), c.Param("spender")))
	})
	r.GET("/spender-allowance/:spender", func(c *gin.Context) {
		write(c, s.api.SpenderAllowance(c.Request.Context(), c.Param("spender")))
	})
	r.GET("/balance/:account", func(c *gin.Context) {
		write(c, s.api.Balance(c.Request.Context(), c.Param("account")))
	})
	r.GET("/emergency/:owner", func(c *gin.Context) {
		write(c, s.api.EmergencyAddress(c.Request.Context(), c.Param("owner")))
	})

	r.POST("/permit", s.withBody(s.api.Permit))
	r.POST("/permit/digest", s.withBody(s.api.PermitDigest))

	if s.auth == nil {
		return
	}
	authed := r.Group("/", s.requireCaller())
	authed.POST("/approve", s.withCallerBody(s.api.Approve))
	authed.POST("/transfer", s.withCallerBody(s.api.Transfer))
	authed.POST("/transfer-from", s.withCallerBody(s.api.TransferFrom))
	authed.POST("/emergency-address", s.withCallerBody(s.api.SetEmergencyAddress))
	authed.POST("/transfer-emergency", func(c *gin.Context) {
		write(c, s.api.TransferEmergency(c.Request.Context(), caller(c)))
	})
	authed.POST("/mint", s.withCallerBody(s.api.Mint))
	authed.POST("/burn", s.withCallerBody(s.api.Burn))
}

// ============================================================================
// Middleware
// ============================================================================

// requireCaller resolves the bearer token into the caller address.
func (s *Server) requireCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		addr, err := s.auth.VerifyHeader(c.GetHeader("Authorization"))
		if err != nil {
			resp := Unauthenticated(err)
			c.AbortWithStatusJSON(resp.Status, resp.Body)
			return
		}
		c.Set(CallerKey, addr)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// ============================================================================
// Helpers
// ============================================================================

func caller(c *gin.Context) common.Address {
	v, _ := c.Get(CallerKey)
	addr, _ := v.(common.Address)
	return addr
}

func readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		write(c, failure(mytoken.NewTokenError(mytoken.ErrCodeInvalidRequest, "failed to read request body", nil)))
		return nil, false
	}
	return body, true
}

func (s *Server) withBody(fn func(ctx context.Context, body []byte) Response) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, read := readBody(c)
		if !read {
			return
		}
		write(c, fn(c.Request.Context(), body))
	}
}

func (s *Server) withCallerBody(fn func(ctx context.Context, caller common.Address, body []byte) Response) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, read := readBody(c)
		if !read {
			return
		}
		write(c, fn(c.Request.Context(), caller(c), body))
	}
}

func write(c *gin.Context, resp Response) {
	c.JSON(resp.Status, resp.Body)
}
