// Package engine wires the venue together: it consumes order requests
// from Kafka, drives the matching tick, pumps executed trades back out to
// Kafka and periodically snapshots the venue to Redis.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	ledgerv1 "github.com/diznq/core-se/internal/domain/ledger/v1"
	orderbookv1 "github.com/diznq/core-se/internal/domain/orderbook/v1"
	"github.com/diznq/core-se/internal/usecase/assets"
	"github.com/diznq/core-se/internal/usecase/orderreader"
	"github.com/diznq/core-se/internal/usecase/snapshot"
	"github.com/diznq/core-se/internal/usecase/tradefeed"
	"github.com/diznq/core-se/internal/view"
	"github.com/diznq/core-se/pkg/config"
	"github.com/diznq/core-se/pkg/errors"
	"github.com/diznq/core-se/pkg/logger"
)

// Engine is the venue's main loop host.
type Engine struct {
	repo           *assets.Repository
	orderReader    *orderreader.Reader
	tradePublisher *tradefeed.Publisher
	snapshotStore  *snapshot.Store
	logger         *logger.Logger
	config         *config.Config

	// watched guards the set of books whose trade feeds have a pump
	// goroutine attached.
	mu      sync.Mutex
	watched map[string]struct{}

	totalMatches atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	tickInterval     time.Duration
	snapshotInterval time.Duration
}

// NewEngine creates an engine with default options.
func NewEngine(
	repo *assets.Repository,
	orderReader *orderreader.Reader,
	tradePublisher *tradefeed.Publisher,
	snapshotStore *snapshot.Store,
	log *logger.Logger,
	cfg *config.Config,
) *Engine {
	return NewEngineWithOptions(repo, orderReader, tradePublisher, snapshotStore, log, cfg, DefaultEngineOptions())
}

// NewEngineWithOptions creates an engine with custom options.
func NewEngineWithOptions(
	repo *assets.Repository,
	orderReader *orderreader.Reader,
	tradePublisher *tradefeed.Publisher,
	snapshotStore *snapshot.Store,
	log *logger.Logger,
	cfg *config.Config,
	options *Options,
) *Engine {
	return &Engine{
		repo:           repo,
		orderReader:    orderReader,
		tradePublisher: tradePublisher,
		snapshotStore:  snapshotStore,
		logger:         log,
		config:         cfg,
		watched:        make(map[string]struct{}),

		tickInterval:     options.TickInterval,
		snapshotInterval: options.SnapshotInterval,
	}
}

// Start launches the processing routines.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(3)
	go e.runOrderProcessor()
	go e.runTickLoop()
	go e.runSnapshotManager()

	e.logger.Info("engine started",
		logger.Field{Key: "tick_interval", Value: e.tickInterval.String()},
		logger.Field{Key: "snapshot_interval", Value: e.snapshotInterval.String()},
	)
	return nil
}

// Stop shuts the engine down, waiting for the routines to drain until
// the given context expires.
func (e *Engine) Stop(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("engine stopped gracefully")
		return nil
	case <-ctx.Done():
		e.logger.Warn("engine stop timeout exceeded")
		return ctx.Err()
	}
}

// TotalMatches returns the number of fills executed since start.
func (e *Engine) TotalMatches() int64 {
	return e.totalMatches.Load()
}

// runOrderProcessor reads and applies order requests until shutdown.
func (e *Engine) runOrderProcessor() {
	defer e.wg.Done()

	e.logger.Info("starting order processor")

	for {
		select {
		case <-e.ctx.Done():
			e.logger.Info("order processor shutting down")
			e.orderReader.Close()
			return
		default:
			_, request, err := e.orderReader.ReadRequest(e.ctx)
			if err != nil {
				if e.ctx.Err() != nil {
					continue
				}
				e.logger.ErrorContext(e.ctx, err, logger.Field{Key: "action", Value: "read_order_request"})
				if !errors.ErrorCodeEquals(err, string(errors.OrderDecodeError)) {
					time.Sleep(100 * time.Millisecond)
				}
				continue
			}

			if err := e.processRequest(request); err != nil {
				e.logger.ErrorContext(e.ctx, err,
					logger.Field{Key: "action", Value: "process_request"},
					logger.Field{Key: "request_action", Value: request.Action},
					logger.Field{Key: "account", Value: request.Account},
				)
			}
		}
	}
}

// processRequest applies one decoded request to the ledger.
func (e *Engine) processRequest(request *orderreader.Request) error {
	switch request.Action {
	case orderreader.ActionDeposit:
		if request.Amount <= 0 {
			return fmt.Errorf("deposit of non-positive amount %d", request.Amount)
		}
		e.repo.Transfer(e.repo.Account(request.Account), request.Asset, request.Amount)
		return nil

	case orderreader.ActionPlace:
		side, err := parseSide(request.Side)
		if err != nil {
			return err
		}
		if request.Price <= 0 || request.Volume <= 0 {
			return fmt.Errorf("order with non-positive price %d or volume %d", request.Price, request.Volume)
		}
		book := e.repo.Book(request.Base, request.Quote)
		e.watchBook(book)

		order := orderbookv1.NewOrder(request.Account, request.Price, request.Volume)
		order.TTL = request.TTL
		_, err = e.repo.PlaceOrder(book, order, side)
		if insufficient, ok := err.(*ledgerv1.InsufficientAssets); ok {
			return errors.NewErrorDetails(
				insufficient.Error(),
				string(errors.ErrInsufficientAssets), insufficient.Asset,
			)
		}
		return err

	case orderreader.ActionCancel:
		book := e.repo.Book(request.Base, request.Quote)
		if _, ok := e.repo.CancelOrder(book, request.OrderID); !ok {
			return errors.NewErrorDetails(
				fmt.Sprintf("order %d not resting in %s", request.OrderID, book.Name()),
				string(errors.ErrUnknownOrder), "order_id",
			)
		}
		return nil

	default:
		return fmt.Errorf("unknown action %q", request.Action)
	}
}

// watchBook attaches a trade feed pump to a book the first time the
// engine touches it.
func (e *Engine) watchBook(book *orderbookv1.Book) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.watched[book.Name()]; ok {
		return
	}
	e.watched[book.Name()] = struct{}{}

	e.wg.Add(1)
	go e.pumpFeed(book)
}

// pumpFeed forwards one book's executed trades to the trade publisher.
func (e *Engine) pumpFeed(book *orderbookv1.Book) {
	defer e.wg.Done()

	id, ch := book.Feed().Subscribe()
	defer book.Feed().Unsubscribe(id)

	for {
		select {
		case <-e.ctx.Done():
			return
		case tx, ok := <-ch:
			if !ok {
				return
			}
			if err := e.tradePublisher.PublishTrade(e.ctx, book.Name(), tx); err != nil && e.ctx.Err() == nil {
				e.logger.ErrorContext(e.ctx, err,
					logger.Field{Key: "action", Value: "publish_trade"},
					logger.Field{Key: "book", Value: book.Name()},
				)
			}
		}
	}
}

// runTickLoop advances simulated time, matching every book each tick.
func (e *Engine) runTickLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	e.logger.Info("starting tick loop")

	for {
		select {
		case <-e.ctx.Done():
			e.logger.Info("tick loop shutting down")
			return
		case <-ticker.C:
			matches := e.repo.Advance()
			if matches > 0 {
				total := e.totalMatches.Add(matches)
				e.logger.Info("tick matched",
					logger.Field{Key: "tick", Value: e.repo.Tick() - 1},
					logger.Field{Key: "matches", Value: matches},
					logger.Field{Key: "total_matches", Value: total},
				)
			}
		}
	}
}

// runSnapshotManager periodically persists the venue state.
func (e *Engine) runSnapshotManager() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.snapshotInterval)
	defer ticker.Stop()

	e.logger.Info("starting snapshot manager")

	for {
		select {
		case <-e.ctx.Done():
			e.logger.Info("snapshot manager shutting down")
			return
		case <-ticker.C:
			e.createAndStoreSnapshot()
		}
	}
}

func (e *Engine) createAndStoreSnapshot() {
	snap := &snapshot.Snapshot{
		Tick:     e.repo.Tick(),
		Accounts: e.repo.AccountViews(),
	}
	for _, book := range e.repo.Books() {
		snap.Books = append(snap.Books, view.NewOrderBookView(book))
	}

	if err := e.snapshotStore.Store(e.ctx, snap); err != nil && e.ctx.Err() == nil {
		e.logger.ErrorContext(e.ctx, err, logger.Field{Key: "action", Value: "store_snapshot"})
	}
}

func parseSide(side string) (orderbookv1.Side, error) {
	switch side {
	case "bid", "buy":
		return orderbookv1.SideBid, nil
	case "ask", "sell":
		return orderbookv1.SideAsk, nil
	default:
		return 0, fmt.Errorf("unknown side %q", side)
	}
}
