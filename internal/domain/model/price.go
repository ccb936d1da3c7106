package model

// PriceRecord is the latest observation for one instrument as reported by the
// upstream feed. Price fields stay strings end to end so the upstream decimal
// precision reaches subscribers untouched.
type PriceRecord struct {
	Symbol        string `json:"symbol"`
	LastPrice     string `json:"last_price"`
	ChangePercent string `json:"change_percent"`
	Timestamp     int64  `json:"timestamp"`
}

// StreamMessage is the envelope written to WebSocket subscribers. Keepalive
// frames carry no data.
type StreamMessage struct {
	Type string       `json:"type"`
	Data *PriceRecord `json:"data,omitempty"`
}

const (
	MessageTypeTicker    = "ticker"
	MessageTypeKeepalive = "keepalive"
)
