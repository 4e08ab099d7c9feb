package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type TradeStatus string

const (
	TradeStatus_Active TradeStatus = "ACTIVE"
	TradeStatus_Closed TradeStatus = "CLOSED"
)

// Trade is one ledger row. Field names match the persisted paper_trades.json
// layout.
type Trade struct {
	ID             int64       `json:"id"`
	Instrument     string      `json:"ticker"`
	EntryPrice     float64     `json:"entry_price"`
	Quantity       int64       `json:"quantity"`
	StopLoss       float64     `json:"stop_loss"`
	Target         float64     `json:"target"`
	Thesis         string      `json:"thesis"`
	EntryTimestamp time.Time   `json:"entry_time"`
	Status         TradeStatus `json:"status"`
	ExitPrice      *float64    `json:"exit_price,omitempty"`
	ExitTimestamp  *time.Time  `json:"exit_time,omitempty"`
	Pnl            *float64    `json:"pnl,omitempty"`
	PnlPercent     *float64    `json:"pnl_pct,omitempty"`
}

// LedgerTimeLayout is how timestamps are written to the ledger file, as
// local wall-clock time with no offset.
const LedgerTimeLayout = "2006-01-02 15:04:05"

type tradeJson struct {
	ID             int64       `json:"id"`
	Instrument     string      `json:"ticker"`
	EntryPrice     float64     `json:"entry_price"`
	Quantity       int64       `json:"quantity"`
	StopLoss       float64     `json:"stop_loss"`
	Target         float64     `json:"target"`
	Thesis         string      `json:"thesis"`
	EntryTimestamp string      `json:"entry_time"`
	Status         TradeStatus `json:"status"`
	ExitPrice      *float64    `json:"exit_price,omitempty"`
	ExitTimestamp  *string     `json:"exit_time,omitempty"`
	Pnl            *float64    `json:"pnl,omitempty"`
	PnlPercent     *float64    `json:"pnl_pct,omitempty"`
}

func (t Trade) MarshalJSON() ([]byte, error) {
	out := tradeJson{
		ID:             t.ID,
		Instrument:     t.Instrument,
		EntryPrice:     t.EntryPrice,
		Quantity:       t.Quantity,
		StopLoss:       t.StopLoss,
		Target:         t.Target,
		Thesis:         t.Thesis,
		EntryTimestamp: t.EntryTimestamp.Local().Format(LedgerTimeLayout),
		Status:         t.Status,
		ExitPrice:      t.ExitPrice,
		Pnl:            t.Pnl,
		PnlPercent:     t.PnlPercent,
	}
	if t.ExitTimestamp != nil {
		exit := t.ExitTimestamp.Local().Format(LedgerTimeLayout)
		out.ExitTimestamp = &exit
	}
	return json.Marshal(out)
}

func (t *Trade) UnmarshalJSON(b []byte) error {
	in := tradeJson{}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	entry, err := parseLedgerTime(in.EntryTimestamp)
	if err != nil {
		return fmt.Errorf("trade %d entry_time: %w", in.ID, err)
	}
	*t = Trade{
		ID:             in.ID,
		Instrument:     in.Instrument,
		EntryPrice:     in.EntryPrice,
		Quantity:       in.Quantity,
		StopLoss:       in.StopLoss,
		Target:         in.Target,
		Thesis:         in.Thesis,
		EntryTimestamp: entry,
		Status:         in.Status,
		ExitPrice:      in.ExitPrice,
		Pnl:            in.Pnl,
		PnlPercent:     in.PnlPercent,
	}
	if in.ExitTimestamp != nil {
		exit, err := parseLedgerTime(*in.ExitTimestamp)
		if err != nil {
			return fmt.Errorf("trade %d exit_time: %w", in.ID, err)
		}
		t.ExitTimestamp = &exit
	}
	return nil
}

func parseLedgerTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(LedgerTimeLayout, s, time.Local); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

type Ledger struct {
	Active []Trade `json:"active"`
	Closed []Trade `json:"closed"`
}

func NewLedger() Ledger {
	return Ledger{
		Active: []Trade{},
		Closed: []Trade{},
	}
}

func (l Ledger) ActiveFor(instrument string) *Trade {
	for i := range l.Active {
		if l.Active[i].Instrument == instrument {
			return &l.Active[i]
		}
	}
	return nil
}

type LedgerErrorCode string

const (
	LedgerErrorCode_AlreadyActive LedgerErrorCode = "ALREADY_ACTIVE"
	LedgerErrorCode_NotFound      LedgerErrorCode = "NOT_FOUND"
	LedgerErrorCode_InvalidTrade  LedgerErrorCode = "INVALID_TRADE"
)

var (
	ErrAlreadyActive = errors.New("instrument already has an active trade")
	ErrTradeNotFound = errors.New("no active trade with that id")
	ErrInvalidTrade  = errors.New("invalid trade")
)

// LedgerError is the typed rejection returned by ledger writes.
type LedgerError struct {
	Code    LedgerErrorCode
	Message string
}

func (e LedgerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e LedgerError) Is(target error) bool {
	switch target {
	case ErrAlreadyActive:
		return e.Code == LedgerErrorCode_AlreadyActive
	case ErrTradeNotFound:
		return e.Code == LedgerErrorCode_NotFound
	case ErrInvalidTrade:
		return e.Code == LedgerErrorCode_InvalidTrade
	}
	return false
}
