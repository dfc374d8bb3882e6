package transport

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/uhyunpark/hlclient/pkg/crypto"
	"github.com/uhyunpark/hlclient/pkg/venueerr"
	"github.com/uhyunpark/hlclient/pkg/wire"
)

// Envelope is the signed request body posted to the exchange endpoint.
// VaultAddress is always serialized; a nil value is sent as null.
type Envelope struct {
	Action       wire.Action      `json:"action"`
	Nonce        int64            `json:"nonce"`
	Signature    crypto.Signature `json:"signature"`
	VaultAddress *string          `json:"vaultAddress"`
	ExpiresAfter *int64           `json:"expiresAfter,omitempty"`
}

// Resting is an order accepted onto the book.
type Resting struct {
	Oid   int64  `json:"oid"`
	Cloid string `json:"cloid,omitempty"`
}

// Filled is an order that executed immediately.
type Filled struct {
	TotalSz string `json:"totalSz"`
	AvgPx   string `json:"avgPx"`
	Oid     int64  `json:"oid"`
	Cloid   string `json:"cloid,omitempty"`
}

// OrderStatus is one positional entry of a multi-item response. Exactly one
// of Text, Resting, Filled or Error is set.
type OrderStatus struct {
	// Text holds bare string statuses such as "success" or "waitingForFill".
	Text    string
	Resting *Resting
	Filled  *Filled
	Error   string
}

func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &s.Text)
	}
	var obj struct {
		Resting *Resting `json:"resting"`
		Filled  *Filled  `json:"filled"`
		Error   *string  `json:"error"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.Resting == nil && obj.Filled == nil && obj.Error == nil {
		return fmt.Errorf("unrecognized status %s", data)
	}
	s.Resting, s.Filled = obj.Resting, obj.Filled
	if obj.Error != nil {
		s.Error = *obj.Error
	}
	return nil
}

func (s OrderStatus) MarshalJSON() ([]byte, error) {
	switch {
	case s.Error != "":
		return json.Marshal(map[string]string{"error": s.Error})
	case s.Resting != nil:
		return json.Marshal(map[string]*Resting{"resting": s.Resting})
	case s.Filled != nil:
		return json.Marshal(map[string]*Filled{"filled": s.Filled})
	default:
		return json.Marshal(s.Text)
	}
}

// Failed reports whether the venue rejected this item.
func (s OrderStatus) Failed() bool { return s.Error != "" }

// Oid returns the venue order id, if the item produced one.
func (s OrderStatus) Oid() (int64, bool) {
	switch {
	case s.Resting != nil:
		return s.Resting.Oid, true
	case s.Filled != nil:
		return s.Filled.Oid, true
	}
	return 0, false
}

func (s OrderStatus) String() string {
	switch {
	case s.Error != "":
		return "error: " + s.Error
	case s.Resting != nil:
		return fmt.Sprintf("resting oid=%d", s.Resting.Oid)
	case s.Filled != nil:
		return fmt.Sprintf("filled oid=%d sz=%s px=%s", s.Filled.Oid, s.Filled.TotalSz, s.Filled.AvgPx)
	default:
		return s.Text
	}
}

// Result is a normalized successful exchange response. Statuses is empty for
// actions that do not report per-item outcomes.
type Result struct {
	Type     string        `json:"type"`
	Statuses []OrderStatus `json:"statuses,omitempty"`
}

// FirstError returns the index of the first rejected item, or -1.
func (r *Result) FirstError() int {
	for i, s := range r.Statuses {
		if s.Failed() {
			return i
		}
	}
	return -1
}

type rawResponse struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type okPayload struct {
	Type string `json:"type"`
	Data *struct {
		Statuses []OrderStatus `json:"statuses"`
	} `json:"data"`
}

// parseExchangeResponse normalizes a 2xx exchange body. A per-item rejection
// returns the full result together with a VenueRejectionError.
func parseExchangeResponse(httpStatus int, body []byte) (*Result, error) {
	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	switch raw.Status {
	case "ok":
	case "err":
		var msg string
		if err := json.Unmarshal(raw.Response, &msg); err != nil {
			msg = string(raw.Response)
		}
		return nil, &venueerr.VenueRejectionError{StatusCode: httpStatus, Message: msg, Index: -1}
	default:
		return nil, fmt.Errorf("decode response: unknown status %q", raw.Status)
	}

	var payload okPayload
	if len(raw.Response) > 0 && !bytes.Equal(raw.Response, []byte("null")) {
		if err := json.Unmarshal(raw.Response, &payload); err != nil {
			return nil, fmt.Errorf("decode response payload: %w", err)
		}
	}
	res := &Result{Type: payload.Type}
	if payload.Data != nil {
		res.Statuses = payload.Data.Statuses
	}

	if i := res.FirstError(); i >= 0 {
		statuses := make([]string, len(res.Statuses))
		for j, s := range res.Statuses {
			statuses[j] = s.String()
		}
		return res, &venueerr.VenueRejectionError{
			StatusCode: httpStatus,
			Message:    res.Statuses[i].Error,
			Index:      i,
			Statuses:   statuses,
		}
	}
	return res, nil
}
