package ledgerv1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccount(t *testing.T) {
	account := NewAccount("alice")

	assert.Equal(t, "alice", account.ID())
	assert.Equal(t, int64(0), account.Volume("gold"))
	assert.Equal(t, int64(0), account.Reserved("gold"))
	assert.Equal(t, int64(0), account.Available("gold"))
}

func TestAccount_Transfer(t *testing.T) {
	account := NewAccount("alice")

	account.Transfer("gold", 100)
	assert.Equal(t, int64(100), account.Volume("gold"))

	account.Transfer("gold", -30)
	assert.Equal(t, int64(70), account.Volume("gold"))

	// Other assets stay untouched.
	assert.Equal(t, int64(0), account.Volume("usd"))
}

func TestAccount_Reserve(t *testing.T) {
	account := NewAccount("alice")
	account.Transfer("gold", 100)

	account.Reserve("gold", 40)
	assert.Equal(t, int64(100), account.Volume("gold"))
	assert.Equal(t, int64(40), account.Reserved("gold"))
	assert.Equal(t, int64(60), account.Available("gold"))

	account.Reserve("gold", -40)
	assert.Equal(t, int64(0), account.Reserved("gold"))
	assert.Equal(t, int64(100), account.Available("gold"))
}

func TestAccount_HasEnough(t *testing.T) {
	account := NewAccount("alice")
	account.Transfer("gold", 100)
	account.Reserve("gold", 40)

	assert.True(t, account.HasEnough("gold", 60))
	assert.False(t, account.HasEnough("gold", 61))
	assert.True(t, account.HasEnough("gold", 0))
	assert.False(t, account.HasEnough("silver", 1))
}

func TestAccount_PublicAssets(t *testing.T) {
	account := NewAccount("alice")
	account.Transfer("gold", 100)
	account.Transfer("usd", 5)

	assets := account.PublicAssets()
	require.Len(t, assets, 2)
	assert.Equal(t, int64(100), assets["gold"])
	assert.Equal(t, int64(5), assets["usd"])

	// The copy does not alias the live balances.
	assets["gold"] = 0
	assert.Equal(t, int64(100), account.Volume("gold"))
}

func TestAccount_Extra(t *testing.T) {
	account := NewAccount("alice")
	assert.Equal(t, "", account.Extra())

	account.SetExtra("vip")
	assert.Equal(t, "vip", account.Extra())
}

func TestAccount_CheckInvariant(t *testing.T) {
	account := NewAccount("alice")
	account.Transfer("gold", 100)
	account.Reserve("gold", 100)

	assert.NotPanics(t, func() { account.CheckInvariant("gold") })

	account.Transfer("gold", -1)
	assert.Panics(t, func() { account.CheckInvariant("gold") })
}

func TestAccount_CheckInvariant_NegativeBalance(t *testing.T) {
	account := NewAccount("alice")
	account.Transfer("gold", -1)

	assert.Panics(t, func() { account.CheckInvariant("gold") })
}

func TestAccount_CheckInvariant_NegativeReservation(t *testing.T) {
	account := NewAccount("alice")
	account.Transfer("gold", 10)
	account.Reserve("gold", -1)

	assert.Panics(t, func() { account.CheckInvariant("gold") })
}

func TestInsufficientAssets_Error(t *testing.T) {
	err := &InsufficientAssets{Asset: "gold", Required: 25}
	assert.Equal(t, "insufficient funds of gold, requested volume: 25", err.Error())
}
