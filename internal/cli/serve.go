package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	mytoken "github.com/mytoken-labs/mytoken/go"
	tokenhttp "github.com/mytoken-labs/mytoken/go/http"
	"github.com/mytoken-labs/mytoken/go/mcp"
	"github.com/mytoken-labs/mytoken/go/pkg/config"
	"github.com/mytoken-labs/mytoken/go/store"
)

// Version is reported by the MCP server
var Version = "dev"

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the token API",
		Long: `Serve the token API over HTTP, with the MCP SSE endpoint mounted when
mcp.enabled is set. Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Serve(ctx, cfg, cmd.ErrOrStderr())
		},
	}
}

// Serve runs the configured service until ctx is done.
func Serve(ctx context.Context, cfg *config.Config, logOut io.Writer) error {
	logger := NewLogger(cfg.Log, logOut)

	token, err := NewToken(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer token.Close()

	if !cfg.HTTP.Enabled {
		logger.Info("http disabled, nothing to serve")
		return nil
	}

	handler, err := NewHandler(cfg, token, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving token api",
			"addr", cfg.HTTP.Addr,
			"token", token.Address().Hex(),
			"chainId", token.ChainID().String(),
			"store", cfg.Store.Driver,
			"mcp", cfg.MCP.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// NewHandler builds the gin engine, mounting MCP under cfg.MCP.Path when enabled.
func NewHandler(cfg *config.Config, token *mytoken.Token, logger *slog.Logger) (http.Handler, error) {
	auth, err := tokenhttp.NewAuthenticator([]byte(cfg.HTTP.JWTSecret), cfg.HTTP.JWTIssuer)
	if err != nil {
		return nil, err
	}

	server := tokenhttp.NewServer(tokenhttp.ServerConfig{
		Token:  token,
		Auth:   auth,
		Logger: logger,
	})

	if cfg.MCP.Enabled {
		sse := mcp.NewSSEHandler(mcp.NewServer(token, Version, logger))
		server.Engine().Any(cfg.MCP.Path, gin.WrapH(sse))
	}
	return server.Handler(), nil
}

// NewToken opens the configured store and builds the token over it.
func NewToken(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*mytoken.Token, error) {
	chainID, err := cfg.ChainID()
	if err != nil {
		return nil, err
	}

	st, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	token, err := mytoken.New(mytoken.Config{
		Name:    cfg.Token.Name,
		ChainID: chainID,
		Address: cfg.TokenAddress(),
		Owner:   cfg.OwnerAddress(),
	}, mytoken.WithStore(st), mytoken.WithLogger(logger))
	if err != nil {
		st.Close()
		return nil, err
	}
	return token, nil
}

// OpenStore opens the ledger backend named by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		return store.NewMemoryStore(), nil
	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		return store.NewRedisStore(client, cfg.RedisPrefix), nil
	case config.DriverSQLite:
		st, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// NewLogger builds the slog logger described by cfg.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
