package contracts

import "fmt"

// PriceKind identifies which intraday observation a PricePoint carries
type PriceKind string

const (
	PriceOpenWindowAvg PriceKind = "open_15m_avg" // mean price over the first 15 minutes
	PriceClose         PriceKind = "close"
)

// Valid reports whether k is a known kind
func (k PriceKind) Valid() bool {
	return k == PriceOpenWindowAvg || k == PriceClose
}

// PricePoint is one realized price observation, keyed by (stock, date, kind)
type PricePoint struct {
	StockID string    `json:"stock_id" validate:"required"`
	Date    string    `json:"formatted_date" validate:"required,len=8,numeric"` // YYYYMMDD
	Kind    PriceKind `json:"type" validate:"required,oneof=open_15m_avg close"`
	Value   float64   `json:"value" validate:"gt=0"`
	Content string    `json:"content"`
}

// PricePayload is the progress message body the trader tool emits
type PricePayload struct {
	Type    PriceKind `json:"t"`
	Value   float64   `json:"value"`
	StockID string    `json:"stock_id"`
}

// Validate rejects payloads that carry no usable observation.
// The trader reports -1 when no data was found in the window.
func (p PricePayload) Validate() error {
	if !p.Type.Valid() {
		return fmt.Errorf("unknown price kind %q", p.Type)
	}
	if p.StockID == "" {
		return fmt.Errorf("price payload without stock_id")
	}
	if p.Value <= 0 {
		return fmt.Errorf("no %s value for %s", p.Type, p.StockID)
	}
	return nil
}

// PricePoint converts the payload into a storable observation for date
func (p PricePayload) PricePoint(date string) PricePoint {
	return PricePoint{
		StockID: p.StockID,
		Date:    date,
		Kind:    p.Type,
		Value:   p.Value,
	}
}
