package upstream

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"tickerhub/internal/domain/model"
)

// binanceTicker is the subset of the 24hr ticker event we consume.
type binanceTicker struct {
	Symbol        string `json:"s"`
	LastPrice     string `json:"c"`
	ChangePercent string `json:"P"`
	EventTime     int64  `json:"E"`
}

// combinedFrame is how combined streams wrap the event.
type combinedFrame struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// parseTicker normalizes one raw frame into a PriceRecord. It accepts both
// the single-stream and the combined-stream ("data"-nested) layouts. Frames
// missing a required field, carrying a non-positive or unparsable price, or
// not being JSON at all are rejected.
func parseTicker(payload []byte) (model.PriceRecord, bool) {
	raw := payload

	var frame combinedFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return model.PriceRecord{}, false
	}
	if len(frame.Data) > 0 {
		raw = frame.Data
	}

	var t binanceTicker
	if err := json.Unmarshal(raw, &t); err != nil {
		return model.PriceRecord{}, false
	}

	if t.Symbol == "" || t.LastPrice == "" || t.ChangePercent == "" {
		return model.PriceRecord{}, false
	}

	price, err := strconv.ParseFloat(t.LastPrice, 64)
	if err != nil || price <= 0 {
		return model.PriceRecord{}, false
	}
	if _, err := strconv.ParseFloat(t.ChangePercent, 64); err != nil {
		return model.PriceRecord{}, false
	}

	ts := t.EventTime
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	return model.PriceRecord{
		Symbol:        strings.ToUpper(t.Symbol),
		LastPrice:     t.LastPrice,
		ChangePercent: t.ChangePercent,
		Timestamp:     ts,
	}, true
}
