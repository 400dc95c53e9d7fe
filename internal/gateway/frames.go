package gateway

import (
	"encoding/json"
)

// Frame commands. Clients send CONNECT, SUBSCRIBE, UNSUBSCRIBE, SEND and
// DISCONNECT; the server answers with CONNECTED, MESSAGE, ERROR and RECEIPT.
const (
	CmdConnect     = "CONNECT"
	CmdSubscribe   = "SUBSCRIBE"
	CmdUnsubscribe = "UNSUBSCRIBE"
	CmdSend        = "SEND"
	CmdDisconnect  = "DISCONNECT"

	CmdConnected = "CONNECTED"
	CmdMessage   = "MESSAGE"
	CmdError     = "ERROR"
	CmdReceipt   = "RECEIPT"
)

// Application destinations accepted by SEND.
const (
	DestUpdateDocument = "/app/updateDocument/"
	DestActiveUsers    = "/app/activeUsers/"
	DestRenameDocument = "/app/renameDocument"

	topicPrefix = "/topic/"
)

// ClientFrame is a frame received from a browser.
type ClientFrame struct {
	Command     string          `json:"command"`
	ID          string          `json:"id,omitempty"`
	Topic       string          `json:"topic,omitempty"`
	Destination string          `json:"destination,omitempty"`
	Token       string          `json:"token,omitempty"`
	Receipt     string          `json:"receipt,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
}

// ServerFrame is a frame sent to a browser.
type ServerFrame struct {
	Command      string          `json:"command"`
	Subscription string          `json:"subscription,omitempty"`
	Topic        string          `json:"topic,omitempty"`
	User         string          `json:"user,omitempty"`
	Message      string          `json:"message,omitempty"`
	ReceiptID    string          `json:"receiptId,omitempty"`
	Body         json.RawMessage `json:"body,omitempty"`
}

// Encode serializes a ServerFrame to JSON bytes.
func (f ServerFrame) Encode() []byte {
	b, _ := json.Marshal(f)
	return b
}

// Presence actions carried by ActiveUserSignal.
const (
	ActionConnect    = "connect"
	ActionDisconnect = "disconnect"
)

// ActiveUserSignal is the body of SEND /app/activeUsers/<documentId>.
type ActiveUserSignal struct {
	UserID int64  `json:"userId"`
	Action string `json:"action"`
}
