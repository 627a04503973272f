package assets

import (
	"sync"
	"testing"

	ledgerv1 "github.com/diznq/core-se/internal/domain/ledger/v1"
	orderbookv1 "github.com/diznq/core-se/internal/domain/orderbook/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository() *Repository {
	return NewRepository(nil)
}

func TestRepository_Account_Idempotent(t *testing.T) {
	repo := newTestRepository()

	first := repo.Account("alice")
	second := repo.Account("alice")

	assert.Same(t, first, second)
	assert.Len(t, repo.Accounts(), 1)
}

func TestRepository_Book_CanonicalPair(t *testing.T) {
	repo := newTestRepository()

	first := repo.Book("gold", "usd")
	second := repo.Book("usd", "gold")

	// Both argument orders resolve to the one book, base being the
	// lexicographically smaller asset.
	assert.Same(t, first, second)
	assert.Equal(t, "gold", first.Base())
	assert.Equal(t, "usd", first.Quote())
	assert.Len(t, repo.Books(), 1)
}

func TestRepository_PlaceOrder_BidReservesQuote(t *testing.T) {
	repo := newTestRepository()
	book := repo.Book("gold", "usd")

	alice := repo.Account("alice")
	repo.Transfer(alice, "usd", 100)

	order, err := repo.PlaceOrder(book, orderbookv1.NewOrder("alice", 5, 10), orderbookv1.SideBid)
	require.NoError(t, err)

	assert.Equal(t, int64(1), order.ID)
	assert.Equal(t, orderbookv1.SideBid, order.Side)
	assert.Equal(t, int64(100), alice.Volume("usd"))
	assert.Equal(t, int64(50), alice.Reserved("usd"))
	assert.Equal(t, int64(50), alice.Available("usd"))

	bids := book.Bids()
	require.Len(t, bids, 1)
	assert.Equal(t, orderbookv1.Level{Price: 5, Volume: 10}, bids[0])
}

func TestRepository_PlaceOrder_AskReservesBase(t *testing.T) {
	repo := newTestRepository()
	book := repo.Book("gold", "usd")

	bob := repo.Account("bob")
	repo.Transfer(bob, "gold", 10)

	_, err := repo.PlaceOrder(book, orderbookv1.NewOrder("bob", 5, 10), orderbookv1.SideAsk)
	require.NoError(t, err)

	assert.Equal(t, int64(10), bob.Reserved("gold"))
	assert.Equal(t, int64(0), bob.Available("gold"))
}

func TestRepository_PlaceOrder_Insufficient(t *testing.T) {
	repo := newTestRepository()
	book := repo.Book("gold", "usd")

	bob := repo.Account("bob")
	repo.Transfer(bob, "gold", 5)

	_, err := repo.PlaceOrder(book, orderbookv1.NewOrder("bob", 5, 10), orderbookv1.SideAsk)

	var insufficient *ledgerv1.InsufficientAssets
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "gold", insufficient.Asset)
	assert.Equal(t, int64(10), insufficient.Required)

	// Nothing was mutated and the order never reached the book.
	assert.Equal(t, int64(0), bob.Reserved("gold"))
	assert.Empty(t, book.Asks())
}

func TestRepository_PlaceOrder_ArrivalOrder(t *testing.T) {
	repo := newTestRepository()
	book := repo.Book("gold", "usd")

	repo.Transfer(repo.Account("alice"), "usd", 1000)

	first, err := repo.PlaceOrder(book, orderbookv1.NewOrder("alice", 5, 10), orderbookv1.SideBid)
	require.NoError(t, err)
	second, err := repo.PlaceOrder(book, orderbookv1.NewOrder("alice", 5, 10), orderbookv1.SideBid)
	require.NoError(t, err)

	assert.Less(t, first.ID, second.ID)
}

func TestRepository_CancelOrder_ReleasesReservation(t *testing.T) {
	repo := newTestRepository()
	book := repo.Book("gold", "usd")

	alice := repo.Account("alice")
	repo.Transfer(alice, "usd", 100)

	order, err := repo.PlaceOrder(book, orderbookv1.NewOrder("alice", 5, 10), orderbookv1.SideBid)
	require.NoError(t, err)

	cancelled, ok := repo.CancelOrder(book, order.ID)
	require.True(t, ok)
	assert.Equal(t, order.ID, cancelled.ID)
	assert.Equal(t, int64(0), alice.Reserved("usd"))
	assert.Equal(t, int64(100), alice.Available("usd"))
	assert.Empty(t, book.Bids())

	_, ok = repo.CancelOrder(book, order.ID)
	assert.False(t, ok)
}

func TestRepository_Advance_EndToEnd(t *testing.T) {
	repo := newTestRepository()
	book := repo.Book("gold", "usd")

	x := repo.Account("x")
	y := repo.Account("y")
	repo.Transfer(x, "usd", 100)
	repo.Transfer(y, "gold", 10)

	_, err := repo.PlaceOrder(book, orderbookv1.NewOrder("x", 5, 10), orderbookv1.SideBid)
	require.NoError(t, err)
	_, err = repo.PlaceOrder(book, orderbookv1.NewOrder("y", 5, 10), orderbookv1.SideAsk)
	require.NoError(t, err)

	matches := repo.Advance()
	assert.Equal(t, int64(1), matches)
	assert.Equal(t, int64(1), repo.Tick())

	// X paid 50 quote for 10 base; Y the inverse. No reservations remain.
	assert.Equal(t, int64(10), x.Volume("gold"))
	assert.Equal(t, int64(50), x.Volume("usd"))
	assert.Equal(t, int64(0), x.Reserved("usd"))
	assert.Equal(t, int64(0), y.Volume("gold"))
	assert.Equal(t, int64(50), y.Volume("usd"))
	assert.Equal(t, int64(0), y.Reserved("gold"))

	history := book.History()
	require.Len(t, history, 1)
	assert.Equal(t, int64(5), history[0].Price)
	assert.Equal(t, int64(10), history[0].Volume)
	assert.Equal(t, int64(0), history[0].Time)
}

func TestRepository_Settlement_PriceImprovementReleasesExcess(t *testing.T) {
	repo := newTestRepository()
	book := repo.Book("gold", "usd")

	x := repo.Account("x")
	y := repo.Account("y")
	repo.Transfer(x, "usd", 120)
	repo.Transfer(y, "gold", 10)

	// Bid at 12 reserves 120; the ask at 10 sets the execution price, so
	// 100 is paid and the whole 120 reservation is released.
	_, err := repo.PlaceOrder(book, orderbookv1.NewOrder("x", 12, 10), orderbookv1.SideBid)
	require.NoError(t, err)
	_, err = repo.PlaceOrder(book, orderbookv1.NewOrder("y", 10, 10), orderbookv1.SideAsk)
	require.NoError(t, err)

	matches := repo.Advance()
	assert.Equal(t, int64(1), matches)

	assert.Equal(t, int64(20), x.Volume("usd"))
	assert.Equal(t, int64(0), x.Reserved("usd"))
	assert.Equal(t, int64(10), x.Volume("gold"))
	assert.Equal(t, int64(100), y.Volume("usd"))
	assert.Equal(t, int64(0), y.Volume("gold"))
	assert.Equal(t, int64(0), y.Reserved("gold"))
}

func TestRepository_Settlement_Conservation(t *testing.T) {
	repo := newTestRepository()
	book := repo.Book("gold", "usd")

	x := repo.Account("x")
	y := repo.Account("y")
	repo.Transfer(x, "usd", 1000)
	repo.Transfer(y, "gold", 100)

	_, err := repo.PlaceOrder(book, orderbookv1.NewOrder("x", 7, 30), orderbookv1.SideBid)
	require.NoError(t, err)
	_, err = repo.PlaceOrder(book, orderbookv1.NewOrder("y", 6, 50), orderbookv1.SideAsk)
	require.NoError(t, err)

	repo.Advance()

	// Settlement moves value between the parties, never creates it.
	assert.Equal(t, int64(100), x.Volume("gold")+y.Volume("gold"))
	assert.Equal(t, int64(1000), x.Volume("usd")+y.Volume("usd"))
}

func TestRepository_Advance_TTLExpiryReleases(t *testing.T) {
	repo := newTestRepository()
	book := repo.Book("gold", "usd")

	alice := repo.Account("alice")
	repo.Transfer(alice, "usd", 100)

	order := orderbookv1.NewOrder("alice", 5, 10)
	order.TTL = 1
	_, err := repo.PlaceOrder(book, order, orderbookv1.SideBid)
	require.NoError(t, err)

	// Tick 0: the order lives. Tick 1: it expires and the reservation
	// comes back.
	repo.Advance()
	assert.Equal(t, int64(50), alice.Reserved("usd"))

	repo.Advance()
	assert.Equal(t, int64(0), alice.Reserved("usd"))
	assert.Equal(t, int64(100), alice.Available("usd"))
	assert.Empty(t, book.Bids())
}

func TestRepository_Advance_MatchesEveryBook(t *testing.T) {
	repo := newTestRepository()
	gold := repo.Book("gold", "usd")
	silver := repo.Book("silver", "usd")

	x := repo.Account("x")
	y := repo.Account("y")
	repo.Transfer(x, "usd", 1000)
	repo.Transfer(y, "gold", 10)
	repo.Transfer(y, "silver", 10)

	_, err := repo.PlaceOrder(gold, orderbookv1.NewOrder("x", 5, 10), orderbookv1.SideBid)
	require.NoError(t, err)
	_, err = repo.PlaceOrder(gold, orderbookv1.NewOrder("y", 5, 10), orderbookv1.SideAsk)
	require.NoError(t, err)
	_, err = repo.PlaceOrder(silver, orderbookv1.NewOrder("x", 3, 10), orderbookv1.SideBid)
	require.NoError(t, err)
	_, err = repo.PlaceOrder(silver, orderbookv1.NewOrder("y", 3, 10), orderbookv1.SideAsk)
	require.NoError(t, err)

	matches := repo.Advance()
	assert.Equal(t, int64(2), matches)
	assert.Equal(t, int64(20), x.Volume("gold")+x.Volume("silver"))
}

func TestRepository_ConcurrentPlacementAndAdvance(t *testing.T) {
	repo := newTestRepository()
	book := repo.Book("gold", "usd")

	const workers = 8
	const orders = 50

	for i := 0; i < workers; i++ {
		repo.Transfer(repo.Account(accountName(i)), "usd", orders*10)
		repo.Transfer(repo.Account(accountName(i)), "gold", orders)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < orders; j++ {
				side := orderbookv1.SideBid
				if worker%2 == 0 {
					side = orderbookv1.SideAsk
				}
				_, err := repo.PlaceOrder(book, orderbookv1.NewOrder(accountName(worker), 10, 1), side)
				assert.NoError(t, err)
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			repo.Advance()
		}
	}()

	wg.Wait()
	<-done
	repo.Advance()

	// Every unit of either asset deposited is still held by someone.
	var gold, usd int64
	for _, account := range repo.Accounts() {
		gold += account.Volume("gold")
		usd += account.Volume("usd")
	}
	assert.Equal(t, int64(workers*orders), gold)
	assert.Equal(t, int64(workers*orders*10), usd)
}

func TestRepository_AccountViews_Ordered(t *testing.T) {
	repo := newTestRepository()
	repo.Transfer(repo.Account("bob"), "usd", 100)
	repo.Reserve(repo.Account("bob"), "usd", 40)
	repo.Account("alice")

	views := repo.AccountViews()

	require.Len(t, views, 2)
	assert.Equal(t, "alice", views[0].ID)
	assert.Equal(t, "bob", views[1].ID)
	assert.Equal(t, int64(100), views[1].Assets["usd"].Balance)
	assert.Equal(t, int64(40), views[1].Assets["usd"].Reserved)
}

func TestRepository_AccountViews_ConcurrentWithTransfers(t *testing.T) {
	repo := newTestRepository()
	alice := repo.Account("alice")

	const deposits = 500

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < deposits; i++ {
			repo.Transfer(alice, "usd", 1)
			repo.Reserve(alice, "usd", 1)
			repo.Reserve(alice, "usd", -1)
		}
	}()

	for i := 0; i < 100; i++ {
		for _, v := range repo.AccountViews() {
			asset := v.Assets["usd"]
			assert.GreaterOrEqual(t, asset.Balance, asset.Reserved)
		}
	}
	<-done

	views := repo.AccountViews()
	require.Len(t, views, 1)
	assert.Equal(t, int64(deposits), views[0].Assets["usd"].Balance)
}

func TestRepository_AdvanceSteps(t *testing.T) {
	repo := newTestRepository()
	book := repo.Book("gold", "usd")

	x := repo.Account("x")
	y := repo.Account("y")
	repo.Transfer(x, "usd", 1000)
	repo.Transfer(y, "gold", 20)

	_, err := repo.PlaceOrder(book, orderbookv1.NewOrder("x", 5, 10), orderbookv1.SideBid)
	require.NoError(t, err)
	_, err = repo.PlaceOrder(book, orderbookv1.NewOrder("y", 5, 10), orderbookv1.SideAsk)
	require.NoError(t, err)
	_, err = repo.PlaceOrder(book, orderbookv1.NewOrder("x", 5, 10), orderbookv1.SideBid)
	require.NoError(t, err)
	_, err = repo.PlaceOrder(book, orderbookv1.NewOrder("y", 5, 10), orderbookv1.SideAsk)
	require.NoError(t, err)

	matches := repo.AdvanceSteps(3)

	assert.Equal(t, int64(2), matches)
	assert.Equal(t, int64(3), repo.Tick())
	assert.Equal(t, int64(20), x.Volume("gold"))
}

func accountName(i int) string {
	return string(rune('a' + i))
}
