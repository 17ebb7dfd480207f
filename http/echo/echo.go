// Package echo binds the token API to labstack/echo.
// Routes, status codes and bodies match the gin server.
package echo

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"

	mytoken "github.com/mytoken-labs/mytoken/go"
	tokenhttp "github.com/mytoken-labs/mytoken/go/http"
)

const maxBodyBytes = 64 << 10

// Register adds the token routes to e. Caller-authenticated routes are
// skipped when auth is nil.
func Register(e *echo.Echo, token *mytoken.Token, auth *tokenhttp.Authenticator, logger *slog.Logger) {
	api := tokenhttp.NewAPI(token, logger)

	e.GET("/health", func(c echo.Context) error { return write(c, api.Health()) })
	e.GET("/token", func(c echo.Context) error { return write(c, api.TokenInfo(c.Request().Context())) })
	e.GET("/nonces/:owner", func(c echo.Context) error {
		return write(c, api.Nonces(c.Request().Context(), c.Param("owner")))
	})
	e.GET("/allowance/:owner/:spender", func(c echo.Context) error {
		return write(c, api.Allowance(c.Request().Context(), c.Param("owner"), c.Param("spender")))
	})
	e.GET("/spender-allowance/:spender", func(c echo.Context) error {
		return write(c, api.SpenderAllowance(c.Request().Context(), c.Param("spender")))
	})
	e.GET("/balance/:account", func(c echo.Context) error {
		return write(c, api.Balance(c.Request().Context(), c.Param("account")))
	})
	e.GET("/emergency/:owner", func(c echo.Context) error {
		return write(c, api.EmergencyAddress(c.Request().Context(), c.Param("owner")))
	})

	e.POST("/permit", withBody(api.Permit))
	e.POST("/permit/digest", withBody(api.PermitDigest))

	if auth == nil {
		return
	}
	g := e.Group("", RequireCaller(auth))
	g.POST("/approve", withCallerBody(api.Approve))
	g.POST("/transfer", withCallerBody(api.Transfer))
	g.POST("/transfer-from", withCallerBody(api.TransferFrom))
	g.POST("/emergency-address", withCallerBody(api.SetEmergencyAddress))
	g.POST("/transfer-emergency", func(c echo.Context) error {
		return write(c, api.TransferEmergency(c.Request().Context(), caller(c)))
	})
	g.POST("/mint", withCallerBody(api.Mint))
	g.POST("/burn", withCallerBody(api.Burn))
}

// New returns an echo instance serving the token API
func New(token *mytoken.Token, auth *tokenhttp.Authenticator, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	Register(e, token, auth, logger)
	return e
}

// RequireCaller verifies the bearer token and stores the caller address.
func RequireCaller(auth *tokenhttp.Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			addr, err := auth.VerifyHeader(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return write(c, tokenhttp.Unauthenticated(err))
			}
			c.Set(tokenhttp.CallerKey, addr)
			return next(c)
		}
	}
}

func caller(c echo.Context) common.Address {
	addr, _ := c.Get(tokenhttp.CallerKey).(common.Address)
	return addr
}

func readBody(c echo.Context) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, maxBodyBytes))
}

func withBody(fn func(context.Context, []byte) tokenhttp.Response) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := readBody(c)
		if err != nil {
			return badBody(c)
		}
		return write(c, fn(c.Request().Context(), body))
	}
}

func withCallerBody(fn func(context.Context, common.Address, []byte) tokenhttp.Response) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := readBody(c)
		if err != nil {
			return badBody(c)
		}
		return write(c, fn(c.Request().Context(), caller(c), body))
	}
}

func badBody(c echo.Context) error {
	wire := mytoken.ErrorToWire(mytoken.NewTokenError(mytoken.ErrCodeInvalidRequest, "failed to read request body", nil))
	return c.JSON(http.StatusBadRequest, wire)
}

func write(c echo.Context, resp tokenhttp.Response) error {
	return c.JSON(resp.Status, resp.Body)
}
