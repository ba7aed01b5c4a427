package contracts

import (
	"strings"
	"time"
)

// Direction is a predicted next-session opening direction
type Direction string

const (
	DirectionUpOpen   Direction = "up-open"
	DirectionDownOpen Direction = "down-open"
	DirectionFlat     Direction = "flat"
)

// legacy labels written by earlier prompt versions
var legacyDirections = map[string]Direction{
	"高开": DirectionUpOpen,
	"低开": DirectionDownOpen,
	"平开": DirectionFlat,
}

// ParseDirection normalises a direction label. Unknown labels return false.
func ParseDirection(s string) (Direction, bool) {
	s = strings.TrimSpace(s)
	if d, ok := legacyDirections[s]; ok {
		return d, true
	}

	switch Direction(strings.ToLower(s)) {
	case DirectionUpOpen:
		return DirectionUpOpen, true
	case DirectionDownOpen:
		return DirectionDownOpen, true
	case DirectionFlat:
		return DirectionFlat, true
	}
	return "", false
}

// Evaluable reports whether a hit/miss can be decided for the direction
func (d Direction) Evaluable() bool {
	return d == DirectionUpOpen || d == DirectionDownOpen
}

// Conclusion is one stored prediction for (stock, date).
// 같은 (stock, date)에 여러 건이 있을 수 있음 - 평가 시 confidence 최대값만 사용
type Conclusion struct {
	ID         string    `json:"id"`
	StockID    string    `json:"stock"`
	Date       string    `json:"datetime"` // YYYYMMDD
	Prediction Direction `json:"prediction"`
	Confidence float64   `json:"confidence"`
	Rationale  string    `json:"document"`
	CreatedAt  time.Time `json:"created_at"`
}

// ConclusionDraft is the structured output of the final prediction step
type ConclusionDraft struct {
	Prediction Direction `json:"prediction"`
	Confidence float64   `json:"confidence"`
	Rationale  string    `json:"rationale"`
}

// ConclusionRequest is the gateway body that adds a conclusion
type ConclusionRequest struct {
	StockID    string  `json:"stock" validate:"required"`
	Date       string  `json:"datetime" validate:"required,len=8,numeric"`
	Prediction string  `json:"prediction" validate:"required"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
	Document   string  `json:"document"`
}

// NewConclusionRequest builds the request persisting draft for (stockID, date)
func NewConclusionRequest(stockID, date string, draft ConclusionDraft) ConclusionRequest {
	return ConclusionRequest{
		StockID:    stockID,
		Date:       date,
		Prediction: string(draft.Prediction),
		Confidence: draft.Confidence,
		Document:   draft.Rationale,
	}
}
