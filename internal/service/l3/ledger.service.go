package l3_service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sectorscan/internal/domain"
	"sectorscan/internal/logger"
	"sectorscan/internal/metrics"
	"sectorscan/internal/repository"
	"sectorscan/internal/util"

	"github.com/shopspring/decimal"
)

type BookTradeInput struct {
	Instrument string
	Price      float64
	Quantity   int64
	StopLoss   float64
	Target     float64
	Thesis     string
}

// PaperTradeLedger records simulated positions. At most one ACTIVE trade per
// instrument exists at any time; closed trades are never rewritten.
type PaperTradeLedger interface {
	BookTrade(ctx context.Context, input BookTradeInput) (*domain.Trade, error)
	CloseTrade(ctx context.Context, tradeID int64, exitPrice float64) (*domain.Trade, error)
	LoadTrades(ctx context.Context) (domain.Ledger, error)
}

type paperTradeLedgerHandler struct {
	LedgerRepository repository.LedgerRepository
	Clock            util.Clock
	Metrics          *metrics.Recorder
}

func NewPaperTradeLedger(ledgerRepository repository.LedgerRepository, clock util.Clock, recorder *metrics.Recorder) PaperTradeLedger {
	return paperTradeLedgerHandler{
		LedgerRepository: ledgerRepository,
		Clock:            clock,
		Metrics:          recorder,
	}
}

func invalidTrade(format string, args ...any) error {
	return domain.LedgerError{
		Code:    domain.LedgerErrorCode_InvalidTrade,
		Message: fmt.Sprintf(format, args...),
	}
}

func (h paperTradeLedgerHandler) record(op string, err error) {
	result := "ok"
	var ledgerErr domain.LedgerError
	if errors.As(err, &ledgerErr) {
		result = string(ledgerErr.Code)
	} else if err != nil {
		result = "error"
	}
	h.Metrics.RecordLedgerOp(op, result)
}

func (h paperTradeLedgerHandler) BookTrade(ctx context.Context, input BookTradeInput) (*domain.Trade, error) {
	trade, err := h.bookTrade(ctx, input)
	h.record("book", err)
	return trade, err
}

func (h paperTradeLedgerHandler) bookTrade(ctx context.Context, input BookTradeInput) (*domain.Trade, error) {
	if input.Instrument == "" {
		return nil, invalidTrade("instrument is required")
	}
	if input.Price <= 0 {
		return nil, invalidTrade("entry price must be positive, got %v", input.Price)
	}
	if input.Quantity <= 0 {
		return nil, invalidTrade("quantity must be positive, got %d", input.Quantity)
	}

	var booked domain.Trade
	_, err := h.LedgerRepository.Update(ctx, func(ledger *domain.Ledger) error {
		if existing := ledger.ActiveFor(input.Instrument); existing != nil {
			return domain.LedgerError{
				Code:    domain.LedgerErrorCode_AlreadyActive,
				Message: fmt.Sprintf("%s already has active trade %d", input.Instrument, existing.ID),
			}
		}

		now := h.Clock.Now()
		booked = domain.Trade{
			ID:             nextTradeID(*ledger, now.UnixMilli()),
			Instrument:     input.Instrument,
			EntryPrice:     input.Price,
			Quantity:       input.Quantity,
			StopLoss:       input.StopLoss,
			Target:         input.Target,
			Thesis:         input.Thesis,
			EntryTimestamp: now,
			Status:         domain.TradeStatus_Active,
		}
		ledger.Active = append(ledger.Active, booked)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to book trade for %s: %w", input.Instrument, err)
	}

	logger.FromContext(ctx).Infow("booked paper trade",
		"tradeID", booked.ID,
		"instrument", booked.Instrument,
		"price", booked.EntryPrice,
		"quantity", booked.Quantity,
	)
	return &booked, nil
}

// nextTradeID uses the wall clock in milliseconds but never hands out an id
// at or below one already in the ledger.
func nextTradeID(ledger domain.Ledger, candidate int64) int64 {
	maxID := int64(0)
	for _, t := range ledger.Active {
		maxID = max(maxID, t.ID)
	}
	for _, t := range ledger.Closed {
		maxID = max(maxID, t.ID)
	}
	if candidate <= maxID {
		return maxID + 1
	}
	return candidate
}

func (h paperTradeLedgerHandler) CloseTrade(ctx context.Context, tradeID int64, exitPrice float64) (*domain.Trade, error) {
	trade, err := h.closeTrade(ctx, tradeID, exitPrice)
	h.record("close", err)
	return trade, err
}

func (h paperTradeLedgerHandler) closeTrade(ctx context.Context, tradeID int64, exitPrice float64) (*domain.Trade, error) {
	if exitPrice <= 0 {
		return nil, invalidTrade("exit price must be positive, got %v", exitPrice)
	}

	var closed domain.Trade
	_, err := h.LedgerRepository.Update(ctx, func(ledger *domain.Ledger) error {
		index := -1
		for i, t := range ledger.Active {
			if t.ID == tradeID {
				index = i
				break
			}
		}
		if index < 0 {
			return domain.LedgerError{
				Code:    domain.LedgerErrorCode_NotFound,
				Message: fmt.Sprintf("no active trade with id %d", tradeID),
			}
		}

		closed = closeOut(ledger.Active[index], exitPrice, h.Clock.Now())
		remaining := make([]domain.Trade, 0, len(ledger.Active)-1)
		remaining = append(remaining, ledger.Active[:index]...)
		remaining = append(remaining, ledger.Active[index+1:]...)
		ledger.Active = remaining
		ledger.Closed = append(ledger.Closed, closed)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to close trade %d: %w", tradeID, err)
	}

	logger.FromContext(ctx).Infow("closed paper trade",
		"tradeID", closed.ID,
		"instrument", closed.Instrument,
		"exitPrice", exitPrice,
		"pnl", *closed.Pnl,
		"pnlPct", *closed.PnlPercent,
	)
	return &closed, nil
}

func closeOut(trade domain.Trade, exitPrice float64, at time.Time) domain.Trade {
	entry := decimal.NewFromFloat(trade.EntryPrice)
	exit := decimal.NewFromFloat(exitPrice)

	pnl := exit.Sub(entry).Mul(decimal.NewFromInt(trade.Quantity))
	pnlPct := decimal.Zero
	if entry.IsPositive() {
		pnlPct = exit.Div(entry).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100))
	}

	trade.Status = domain.TradeStatus_Closed
	trade.ExitPrice = util.FloatPointer(exitPrice)
	trade.ExitTimestamp = util.TimePointer(at)
	trade.Pnl = util.FloatPointer(pnl.InexactFloat64())
	trade.PnlPercent = util.FloatPointer(pnlPct.InexactFloat64())
	return trade
}

func (h paperTradeLedgerHandler) LoadTrades(ctx context.Context) (domain.Ledger, error) {
	ledger, err := h.LedgerRepository.Load(ctx)
	h.record("load", err)
	if err != nil {
		return domain.Ledger{}, fmt.Errorf("failed to load ledger: %w", err)
	}
	return ledger, nil
}
