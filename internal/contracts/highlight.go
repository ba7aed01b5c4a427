package contracts

import (
	"encoding/json"
	"fmt"
)

// MissingValue is the external stand-in for an absent number
const MissingValue = -1.0

// HitOutcome is the reconciliation result of a highlight
type HitOutcome string

const (
	OutcomeHit         HitOutcome = "hit"
	OutcomeMiss        HitOutcome = "miss"
	OutcomeUnavailable HitOutcome = "unavailable"
)

// Highlight reconciles the retained conclusion of (stock, date) against realized prices.
// Missing numbers are nil here; the -1.0 sentinel exists only in JSON.
// ⭐ SSOT: (StockID, Date)가 identity key - 재계산 시 upsert
type Highlight struct {
	ID         string
	StockID    string
	Date       string // YYYYMMDD
	Prediction Direction
	Confidence float64
	Rationale  string
	Opening    *float64 // opening-window average on Date
	PrevClose  *float64 // close on PrevDate
	PrevDate   string   // greatest trading date before Date, "" if none
	Diff       *float64 // Opening - PrevClose, nil unless both present
	Outcome    HitOutcome
	Summary    string
}

// HighlightID is the identity assigned to a highlight seen for the first time
func HighlightID(stockID, date string) string {
	return fmt.Sprintf("%s_%s_highlight", stockID, date)
}

type highlightJSON struct {
	ID         string      `json:"id"`
	StockID    string      `json:"stock_id"`
	Date       string      `json:"datetime"`
	Hit        interface{} `json:"hit"` // bool or "unavailable"
	LastClose  float64     `json:"last_close_price"`
	Open15     float64     `json:"open_15min_price"`
	Conclusion Direction   `json:"conclusion"`
	Reason     string      `json:"reason"`
	Confidence float64     `json:"confidence"`
	Diff       float64     `json:"diff"`
	PrevDate   string      `json:"prev_date,omitempty"`
	Summary    string      `json:"summary,omitempty"`
}

// MarshalJSON writes the persisted highlight contract
func (h Highlight) MarshalJSON() ([]byte, error) {
	out := highlightJSON{
		ID:         h.ID,
		StockID:    h.StockID,
		Date:       h.Date,
		LastClose:  orMissing(h.PrevClose),
		Open15:     orMissing(h.Opening),
		Conclusion: h.Prediction,
		Reason:     h.Rationale,
		Confidence: h.Confidence,
		Diff:       orMissing(h.Diff),
		PrevDate:   h.PrevDate,
		Summary:    h.Summary,
	}

	switch h.Outcome {
	case OutcomeHit:
		out.Hit = true
	case OutcomeMiss:
		out.Hit = false
	default:
		out.Hit = string(OutcomeUnavailable)
	}

	return json.Marshal(out)
}

// UnmarshalJSON reads the persisted highlight contract back into optional fields
func (h *Highlight) UnmarshalJSON(data []byte) error {
	var in highlightJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*h = Highlight{
		ID:         in.ID,
		StockID:    in.StockID,
		Date:       in.Date,
		Prediction: in.Conclusion,
		Confidence: in.Confidence,
		Rationale:  in.Reason,
		PrevDate:   in.PrevDate,
		Summary:    in.Summary,
		Outcome:    OutcomeUnavailable,
	}

	// prices are always positive, so the sentinel is unambiguous for them
	if in.Open15 > 0 {
		h.Opening = Float(in.Open15)
	}
	if in.LastClose > 0 {
		h.PrevClose = Float(in.LastClose)
	}

	if hit, ok := in.Hit.(bool); ok {
		h.Outcome = OutcomeMiss
		if hit {
			h.Outcome = OutcomeHit
		}
		// diff may legitimately be -1.0 once evaluated
		h.Diff = Float(in.Diff)
	}

	return nil
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}

func orMissing(v *float64) float64 {
	if v == nil {
		return MissingValue
	}
	return *v
}

// GenerationSummary is the per-stock result of one highlight recompute.
// On the wire the count is generated_count; the legacy "generated" key is
// written alongside it and accepted when decoding.
type GenerationSummary struct {
	StockID   string
	Generated int
	Items     []Highlight
}

type generationSummaryJSON struct {
	StockID        string      `json:"stock_id"`
	GeneratedCount *int        `json:"generated_count"`
	Generated      *int        `json:"generated,omitempty"`
	Items          []Highlight `json:"items"`
}

// MarshalJSON writes both count keys and an empty items array instead of null
func (s GenerationSummary) MarshalJSON() ([]byte, error) {
	items := s.Items
	if items == nil {
		items = []Highlight{}
	}
	n := s.Generated
	return json.Marshal(generationSummaryJSON{
		StockID:        s.StockID,
		GeneratedCount: &n,
		Generated:      &n,
		Items:          items,
	})
}

// UnmarshalJSON prefers generated_count and falls back to generated
func (s *GenerationSummary) UnmarshalJSON(data []byte) error {
	var w generationSummaryJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	s.StockID = w.StockID
	s.Items = w.Items
	switch {
	case w.GeneratedCount != nil:
		s.Generated = *w.GeneratedCount
	case w.Generated != nil:
		s.Generated = *w.Generated
	default:
		s.Generated = len(w.Items)
	}
	return nil
}

// HighlightList is the stored highlights of one stock, newest date first
type HighlightList struct {
	StockID string      `json:"stock_id"`
	Total   int         `json:"total"`
	Items   []Highlight `json:"items"`
}
