package contracts

// Daily cycle state 정의 (SSOT)
// 모든 로그, 상태 메시지, 사이클 기록에서 이 상수를 사용해야 함
//
// 사이클 흐름 (무한 반복):
//   AwaitOpen → CollectInfo → Predict&Conclude → MonitorTrading → RecomputeHighlights → AwaitNextCycle

// CycleState represents a state of the daily orchestration cycle
type CycleState string

const (
	// StateAwaitOpen polls the market-open check until the market opens
	StateAwaitOpen CycleState = "AWAIT_OPEN"

	// StateCollectInfo runs every info source for one stock and feeds the predictor
	StateCollectInfo CycleState = "COLLECT_INFO"

	// StatePredictConclude turns a stock's evidence into a stored conclusion
	StatePredictConclude CycleState = "PREDICT_CONCLUDE"

	// StateMonitorTrading records the opening-window average and the close
	StateMonitorTrading CycleState = "MONITOR_TRADING"

	// StateRecomputeHighlights triggers highlight reconciliation
	StateRecomputeHighlights CycleState = "RECOMPUTE_HIGHLIGHTS"

	// StateAwaitNextCycle waits for the end of day before restarting
	StateAwaitNextCycle CycleState = "AWAIT_NEXT_CYCLE"
)

// String returns the state name
func (s CycleState) String() string {
	return string(s)
}

// Next returns the state that follows s. The cycle loops forever.
func (s CycleState) Next() CycleState {
	switch s {
	case StateAwaitOpen:
		return StateCollectInfo
	case StateCollectInfo:
		return StatePredictConclude
	case StatePredictConclude:
		return StateMonitorTrading
	case StateMonitorTrading:
		return StateRecomputeHighlights
	case StateRecomputeHighlights:
		return StateAwaitNextCycle
	default:
		return StateAwaitOpen
	}
}

// Status returns the operator-facing status string published for the state
func (s CycleState) Status() string {
	switch s {
	case StateAwaitOpen:
		return "checking market status"
	case StateCollectInfo, StatePredictConclude:
		return "collecting news and trading data"
	case StateMonitorTrading:
		return "monitoring trading"
	case StateRecomputeHighlights:
		return "reconciling predictions"
	case StateAwaitNextCycle:
		return "waiting for after-hours wrap-up"
	default:
		return "unknown"
	}
}

// StatusMarketClosed is published while AwaitOpen sleeps through a closed day
const StatusMarketClosed = "market closed"

// CycleResult records the outcome of one pass through the daily cycle
type CycleResult struct {
	Date       string         `json:"date"`
	Reached    CycleState     `json:"reached"` // last state entered
	Success    bool           `json:"success"`
	Stocks     int            `json:"stocks"`
	Concluded  int            `json:"concluded"`
	Failures   map[string]int `json:"failures,omitempty"` // error kind -> count
	DurationMs int64          `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
}
