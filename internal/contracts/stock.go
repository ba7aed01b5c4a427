package contracts

// StockStatus is the operator-controlled processing flag of a stock
type StockStatus string

const (
	StockActive   StockStatus = "active"
	StockInactive StockStatus = "inactive"
)

// Stock is an operator-maintained tracked symbol.
// ⭐ SSOT: 종목 정의는 여기서만
type Stock struct {
	ID       string      `json:"id" validate:"required"`        // exchange-prefixed symbol (e.g. sz002594)
	Name     string      `json:"name"`                          // display name
	MarketID string      `json:"market_id"`                     // external market-data identifier
	Status   StockStatus `json:"status" validate:"omitempty,oneof=active inactive"`
}

// IsActive reports whether the daily cycle should process the stock
func (s Stock) IsActive() bool {
	return s.Status == StockActive
}

// ActiveStocks filters a stock list down to the active ones, keeping order
func ActiveStocks(stocks []Stock) []Stock {
	active := make([]Stock, 0, len(stocks))
	for _, s := range stocks {
		if s.IsActive() {
			active = append(active, s)
		}
	}
	return active
}
