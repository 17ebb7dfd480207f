package echo

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mytoken "github.com/mytoken-labs/mytoken/go"
	tokenhttp "github.com/mytoken-labs/mytoken/go/http"
	"github.com/mytoken-labs/mytoken/go/types"
)

var (
	owner   = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	spender = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

func newServer(t *testing.T) (*httptest.Server, *tokenhttp.Authenticator) {
	t.Helper()

	tok, err := mytoken.New(mytoken.Config{
		Name:    "MyToken",
		ChainID: big.NewInt(1),
		Address: common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
		Owner:   owner,
	})
	require.NoError(t, err)

	auth, err := tokenhttp.NewAuthenticator([]byte("0123456789abcdef0123456789abcdef"), "")
	require.NoError(t, err)

	srv := httptest.NewServer(New(tok, auth, nil))
	t.Cleanup(srv.Close)
	return srv, auth
}

func TestEchoRoutes(t *testing.T) {
	ctx := context.Background()
	srv, auth := newServer(t)

	ownerJWT, err := auth.Issue(owner)
	require.NoError(t, err)
	c := tokenhttp.NewClient(&tokenhttp.ClientConfig{URL: srv.URL, TokenSource: tokenhttp.StaticToken(ownerJWT)})

	t.Run("Token info", func(t *testing.T) {
		info, err := c.Info(ctx)
		require.NoError(t, err)
		assert.Equal(t, "MyToken", info.Name)
	})

	t.Run("Approve then read allowance", func(t *testing.T) {
		receipt, err := c.Approve(ctx, types.ApproveRequest{Spender: spender.Hex(), Amount: "42"})
		require.NoError(t, err)
		require.Len(t, receipt.Logs, 1)
		assert.Equal(t, "Approval", receipt.Logs[0].Event)

		v, err := c.Allowance(ctx, owner, spender)
		require.NoError(t, err)
		assert.Equal(t, "42", v)
	})

	t.Run("Mint and balance", func(t *testing.T) {
		_, err := c.Mint(ctx, types.MintRequest{To: spender.Hex(), Amount: "9"})
		require.NoError(t, err)

		v, err := c.BalanceOf(ctx, spender)
		require.NoError(t, err)
		assert.Equal(t, "9", v)
	})

	t.Run("Sweep without emergency address", func(t *testing.T) {
		spenderJWT, err := auth.Issue(spender)
		require.NoError(t, err)
		sc := tokenhttp.NewClient(&tokenhttp.ClientConfig{URL: srv.URL, TokenSource: tokenhttp.StaticToken(spenderJWT)})

		_, err = sc.TransferEmergency(ctx)
		assert.True(t, errors.Is(err, mytoken.ErrInvalidEmergencyAddress), "got %v", err)
	})

	t.Run("Missing token is 401", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/burn", "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Invalid body is 400", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/permit/digest", "application/json", strings.NewReader(`[]`))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
