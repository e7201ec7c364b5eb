package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"bistro/internal/logger"
	"bistro/internal/mockapi"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliFixture struct {
	t      *testing.T
	config string
	mock   *mockapi.Server
}

func newCLIFixture(t *testing.T, requireAuth bool) *cliFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mock := mockapi.NewServer(mockapi.Options{RequireAuth: requireAuth, Logger: logger.Nop()})
	srv := httptest.NewServer(mock.Router())
	t.Cleanup(func() {
		srv.Close()
		mock.Close()
	})

	dir := t.TempDir()
	config := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`
api:
  base_url: %s
  timeout: 5s
database:
  dialect: sqlite3
  dsn: %s
navigation:
  max_attempts: 1
  initial_interval: 1ms
log_level: error
`, srv.URL, filepath.Join(dir, "bistro.db"))
	require.NoError(t, os.WriteFile(config, []byte(content), 0o600))

	return &cliFixture{t: t, config: config, mock: mock}
}

func (f *cliFixture) run(args ...string) (string, error) {
	f.t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", f.config}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_CartPersistsAcrossInvocations(t *testing.T) {
	f := newCLIFixture(t, false)

	_, err := f.run("cart", "add", "burger", "--name", "Burger", "--price", "12.50", "-q", "2")
	require.NoError(t, err)
	_, err = f.run("cart", "add", "fries", "--name", "Fries", "--price", "4.00")
	require.NoError(t, err)

	out, err := f.run("cart", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Burger")
	assert.Contains(t, out, "29.00")

	_, err = f.run("cart", "set", "burger", "0")
	require.NoError(t, err)
	out, err = f.run("cart", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "Burger")
	assert.Contains(t, out, "4.00")

	_, err = f.run("cart", "clear")
	require.NoError(t, err)
	out, err = f.run("cart", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Cart is empty")
}

func TestCLI_CashCheckoutThenStaffTransition(t *testing.T) {
	f := newCLIFixture(t, false)

	_, err := f.run("cart", "add", "soup", "--name", "Soup", "--price", "8.00")
	require.NoError(t, err)

	out, err := f.run("checkout", "--name", "Ada", "--phone", "555-0100", "--table", "7", "--method", "cash")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Order 1001 (BST-1001)")
	assert.Contains(t, out, "Payment CASH-")
	assert.Contains(t, out, "/order-confirmation/1001")

	out, err = f.run("cart", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Cart is empty")

	out, err = f.run("attempts")
	require.NoError(t, err)
	assert.Contains(t, out, "authoritative")

	out, err = f.run("orders", "status", "1001", "confirmed")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Order 1001 is now confirmed")

	out, err = f.run("orders", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "confirmed")
}

func TestCLI_CheckoutRejectsInvalidForm(t *testing.T) {
	f := newCLIFixture(t, false)

	_, err := f.run("cart", "add", "soup", "--price", "8.00")
	require.NoError(t, err)

	_, err = f.run("checkout", "--phone", "555-0100", "--table", "7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Please enter your name")
	assert.Empty(t, f.mock.Orders())
}

func TestCLI_LoginSessionIsReused(t *testing.T) {
	f := newCLIFixture(t, true)

	out, err := f.run("login", "-u", "staff", "-p", "bistro")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as staff")

	_, err = f.run("orders", "list")
	require.NoError(t, err)
}

func TestCLI_LoginRejectsBadCredentials(t *testing.T) {
	f := newCLIFixture(t, true)

	_, err := f.run("login", "-u", "staff", "-p", "wrong")
	require.Error(t, err)
}

func TestParseExpiry(t *testing.T) {
	month, year, err := parseExpiry("04/29")
	require.NoError(t, err)
	assert.Equal(t, 4, month)
	assert.Equal(t, 29, year)

	_, _, err = parseExpiry("0429")
	assert.Error(t, err)
}

func TestCLI_DeclinedCardRerunReusesOrder(t *testing.T) {
	f := newCLIFixture(t, false)

	_, err := f.run("cart", "add", "soup", "--name", "Soup", "--price", "8.00")
	require.NoError(t, err)

	args := []string{"checkout", "--name", "Ada", "--phone", "555-0100", "--table", "7",
		"--method", "credit_card", "--expiry", "12/99", "--cvc", "123", "--holder", "Ada Lovelace"}

	_, err = f.run(append(args, "--card", "4000 0000 0000 0002")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Card declined")

	out, err := f.run(append(args, "--card", "4111 1111 1111 1111")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Order 1001 (BST-1001)")
	assert.Len(t, f.mock.Orders(), 1)
	assert.Equal(t, 1, f.mock.Payments())
}
