package blinktrade

import "encoding/json"

// Message types of the BlinkTrade JSON protocol.
const (
	MsgLogin           = "BE"
	MsgLoginResponse   = "BF"
	MsgHeartbeat       = "1"
	MsgHeartbeatReply  = "0"
	MsgNewOrder        = "D"
	MsgCancel          = "F"
	MsgExecutionReport = "8"
	MsgBalanceRequest  = "U2"
	MsgBalanceResponse = "U3"
	MsgReject          = "ERROR"
)

const (
	userStatusLoggedIn = 1
	ordTypeLimit       = "2"
)

type envelope struct {
	MsgType string `json:"MsgType"`
}

type loginRequest struct {
	MsgType    string `json:"MsgType"`
	UserReqID  uint64 `json:"UserReqID"`
	UserReqTyp string `json:"UserReqTyp"`
	Username   string `json:"Username"`
	Password   string `json:"Password"`
	BrokerID   *int64 `json:"BrokerID,omitempty"`
}

type loginResponse struct {
	UserStatus     int             `json:"UserStatus"`
	UserStatusText string          `json:"UserStatusText"`
	UserID         json.Number     `json:"UserID"`
	Broker         json.RawMessage `json:"Broker"`
	Profile        json.RawMessage `json:"Profile"`
}

type brokerInfo struct {
	BrokerID json.Number `json:"BrokerID"`
}

type heartbeat struct {
	MsgType   string `json:"MsgType"`
	TestReqID string `json:"TestReqID"`
	SendTime  int64  `json:"SendTime"`
}

type balanceRequest struct {
	MsgType      string `json:"MsgType"`
	BalanceReqID uint64 `json:"BalanceReqID"`
}

type newOrder struct {
	MsgType  string `json:"MsgType"`
	ClOrdID  string `json:"ClOrdID"`
	Symbol   string `json:"Symbol"`
	Side     string `json:"Side"`
	OrdType  string `json:"OrdType"`
	Price    int64  `json:"Price"`
	OrderQty int64  `json:"OrderQty"`
	BrokerID *int64 `json:"BrokerID,omitempty"`
}

// cancelOrder without ClOrdID cancels every open order of the user.
type cancelOrder struct {
	MsgType string `json:"MsgType"`
	ClOrdID string `json:"ClOrdID,omitempty"`
}

// executionReport uses json.Number so integer amounts never pass through float64.
type executionReport struct {
	ExecType   string      `json:"ExecType"`
	OrdStatus  string      `json:"OrdStatus"`
	ClOrdID    string      `json:"ClOrdID"`
	Side       string      `json:"Side"`
	Price      json.Number `json:"Price"`
	LastShares json.Number `json:"LastShares"`
	LastPx     json.Number `json:"LastPx"`
	LeavesQty  json.Number `json:"LeavesQty"`
}
