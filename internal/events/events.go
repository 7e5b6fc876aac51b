package events

import (
	"encoding/json"
	"time"
)

// Event types published on the hub and the broker. Consumers key off Type;
// Version bumps when a payload shape changes.
const (
	TypeLeadIngested     = "lead.ingested"
	TypeLeadFlagged      = "lead.flagged"
	TypeScanFinished     = "scan.finished"
	TypeActionRecorded   = "action.recorded"
	TypePaymentVerified  = "payment.verified"
	TypePaymentRefunded  = "payment.refunded"
	TypeContactBlocked   = "contact.blocked"
	TypeFeedDelivered    = "feed.delivered"
)

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func Make(reqID, typ string, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type:      typ,
		Version:   1,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}
