package event

import (
	"time"

	"crypto_arb/internal/domain"
	"crypto_arb/pkg/quant"
)

// Type defines the type of event.
type Type uint16

const (
	EvBookUpdate Type = iota + 1
	EvLogin
	EvBalance
	EvExecution
	EvConnection
	EvHedgeResult
	EvSystemHalt
)

func (t Type) String() string {
	switch t {
	case EvBookUpdate:
		return "BOOK_UPDATE"
	case EvLogin:
		return "LOGIN"
	case EvBalance:
		return "BALANCE"
	case EvExecution:
		return "EXECUTION"
	case EvConnection:
		return "CONNECTION"
	case EvHedgeResult:
		return "HEDGE_RESULT"
	case EvSystemHalt:
		return "SYSTEM_HALT"
	}
	return "UNKNOWN"
}

// Event is the interface for all engine events.
type Event interface {
	GetSeq() uint64
	GetTs() quant.TimeStamp
	GetType() Type
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	Seq uint64          `json:"seq"`
	Ts  quant.TimeStamp `json:"ts"`
}

func (e BaseEvent) GetSeq() uint64         { return e.Seq }
func (e BaseEvent) GetTs() quant.TimeStamp { return e.Ts }

var globalSeq uint64

// NewBase stamps the next process-wide sequence number and the current time.
func NewBase() BaseEvent {
	return BaseEvent{Seq: quant.NextSeq(&globalSeq), Ts: quant.TimeStamp(time.Now().UnixMicro())}
}

// BookUpdateEvent carries a full reference book snapshot.
type BookUpdateEvent struct {
	BaseEvent
	Symbol string         `json:"symbol"`
	Book   domain.RawBook `json:"book"`
}

func (e *BookUpdateEvent) GetType() Type { return EvBookUpdate }

// LoginEvent is the target venue's answer to our login request.
type LoginEvent struct {
	BaseEvent
	Success  bool   `json:"success"`
	BrokerID string `json:"broker_id"`
	UserID   string `json:"user_id"`
	Reason   string `json:"reason,omitempty"`
}

func (e LoginEvent) GetType() Type { return EvLogin }

// BalanceEvent is a balance message for one broker account.
// Nil amounts were absent from the message.
type BalanceEvent struct {
	BaseEvent
	BrokerID string           `json:"broker_id"`
	Quote    *quant.PriceSats `json:"quote,omitempty"`
	Base     *quant.QtySats   `json:"base,omitempty"`
}

func (e BalanceEvent) GetType() Type { return EvBalance }

// ExecutionEvent wraps a target venue execution report.
type ExecutionEvent struct {
	BaseEvent
	Report domain.ExecutionReport `json:"report"`
}

func (e ExecutionEvent) GetType() Type { return EvExecution }

// ConnectionEvent reports a transport going up or down.
type ConnectionEvent struct {
	BaseEvent
	Source    string `json:"source"`
	Connected bool   `json:"connected"`
}

func (e ConnectionEvent) GetType() Type { return EvConnection }

// HedgeResultEvent reports the outcome of a reference venue order.
type HedgeResultEvent struct {
	BaseEvent
	Hedge domain.Hedge `json:"hedge"`
	Err   string       `json:"err,omitempty"`
}

func (e HedgeResultEvent) GetType() Type { return EvHedgeResult }

// SystemHaltEvent asks the engine to stop.
type SystemHaltEvent struct {
	BaseEvent
	Reason string `json:"reason"`
}

func (e SystemHaltEvent) GetType() Type { return EvSystemHalt }
