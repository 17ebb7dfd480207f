package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tokenhttp "github.com/mytoken-labs/mytoken/go/http"
	"github.com/mytoken-labs/mytoken/go/mechanisms/evm"
	"github.com/mytoken-labs/mytoken/go/pkg/config"
)

const (
	ownerKey  = "39f3c3220f1cca5d72e53aba4915adf8df91c850545e2bcde409485250ed1bcd"
	tokenAddr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	spender   = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	secret    = "0123456789abcdef0123456789abcdef"
)

// run executes the root command with args and decodes its JSON output.
func run(t *testing.T, args ...string) map[string]string {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--format", "json"}, args...))
	require.NoError(t, cmd.ExecuteContext(context.Background()), out.String())

	result := map[string]string{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &result), out.String())
	return result
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "mytokend", cmd.Use)

	for _, name := range []string{"serve", "sign-permit", "digest", "domain", "token-jwt"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "xml", "domain"})
	cmd.SetOut(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

func TestOfflineCommands(t *testing.T) {
	t.Setenv("MYTOKEN_TOKEN_ADDRESS", tokenAddr)
	t.Setenv("MYTOKEN_TOKEN_NAME", "MyToken")
	t.Setenv("MYTOKEN_CHAIN_ID", "1")

	t.Run("Domain", func(t *testing.T) {
		out := run(t, "domain")
		separator, err := evm.DomainSeparator("MyToken", common.Big1, common.HexToAddress(tokenAddr))
		require.NoError(t, err)

		assert.Equal(t, separator.Hex(), out["domainSeparator"])
		assert.Equal(t, "1", out["version"])
		assert.Equal(t, tokenAddr, out["verifyingContract"])
	})

	t.Run("Flags override config", func(t *testing.T) {
		out := run(t, "domain", "--chain-id", "8453")
		assert.Equal(t, "8453", out["chainId"])
	})

	t.Run("Sign permit recovers to owner and matches digest", func(t *testing.T) {
		signed := run(t, "sign-permit",
			"--key", ownerKey,
			"--spender", spender,
			"--value", "100",
			"--nonce", "0",
			"--deadline", "100000000000000")

		v, err := strconv.Atoi(signed["v"])
		require.NoError(t, err)
		assert.Contains(t, []int{27, 28}, v)

		digest := run(t, "digest",
			"--owner", signed["owner"],
			"--spender", spender,
			"--value", "100",
			"--nonce", "0",
			"--deadline", "100000000000000")
		assert.Equal(t, signed["digest"], digest["digest"])

		sig, err := evm.ParseSignatureHex(signed["signature"])
		require.NoError(t, err)
		recovered, ok := evm.RecoverSigner(common.HexToHash(digest["digest"]), sig)
		require.True(t, ok)
		assert.Equal(t, signed["owner"], recovered.Hex())
	})

	t.Run("Owner must match key", func(t *testing.T) {
		cmd := NewRootCommand()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"sign-permit",
			"--key", ownerKey,
			"--owner", spender,
			"--spender", spender,
			"--value", "1",
			"--deadline", "1"})
		assert.Error(t, cmd.Execute())
	})

	t.Run("Token JWT verifies", func(t *testing.T) {
		t.Setenv("MYTOKEN_JWT_SECRET", secret)
		out := run(t, "token-jwt", "--address", spender)

		auth, err := tokenhttp.NewAuthenticator([]byte(secret), "mytokend")
		require.NoError(t, err)
		addr, err := auth.Verify(out["token"])
		require.NoError(t, err)
		assert.Equal(t, spender, addr.Hex())
	})
}

func TestNewHandler(t *testing.T) {
	cfg := config.Default()
	cfg.Token.Address = tokenAddr
	cfg.HTTP.JWTSecret = secret
	cfg.MCP.Enabled = true
	require.NoError(t, cfg.Validate())

	logger := NewLogger(cfg.Log, &bytes.Buffer{})
	token, err := NewToken(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer token.Close()

	handler, err := NewHandler(cfg, token, logger)
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/token")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("SQLite", func(t *testing.T) {
		st, err := OpenStore(ctx, config.StoreConfig{
			Driver:     config.DriverSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "ledger.db"),
		})
		require.NoError(t, err)
		assert.NoError(t, st.Close())
	})

	t.Run("Redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		st, err := OpenStore(ctx, config.StoreConfig{
			Driver:      config.DriverRedis,
			RedisAddr:   mr.Addr(),
			RedisPrefix: "cli",
		})
		require.NoError(t, err)
		assert.NoError(t, st.Close())
	})

	t.Run("Unreachable redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		_, err := OpenStore(ctx, config.StoreConfig{Driver: config.DriverRedis, RedisAddr: addr})
		assert.Error(t, err)
	})

	t.Run("Unknown driver", func(t *testing.T) {
		_, err := OpenStore(ctx, config.StoreConfig{Driver: "etcd"})
		assert.Error(t, err)
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "code", "nonce_mismatch")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"code":"nonce_mismatch"`)
}
