package observability

import (
	"sort"
	"sync"
	"time"
)

// Stage names one step of a spoken reply.
type Stage string

const (
	StageSTT       Stage = "stt"
	StageLLM       Stage = "llm"
	StageTTS       Stage = "tts"
	StageTurnTotal Stage = "turn_total"
)

// Stages lists the turn stages in pipeline order.
var Stages = []Stage{StageSTT, StageLLM, StageTTS, StageTurnTotal}

// BudgetMS is the p95 target for the stage in milliseconds, 0 when unset.
func (s Stage) BudgetMS() float64 {
	switch s {
	case StageSTT:
		return 1500
	case StageLLM:
		return 4000
	case StageTTS:
		return 1500
	case StageTurnTotal:
		return 7000
	default:
		return 0
	}
}

// TurnTiming is the stage breakdown of one completed turn. A zero stage was
// skipped: text turns have no STT and unsupported languages have no TTS.
type TurnTiming struct {
	STT   time.Duration
	LLM   time.Duration
	TTS   time.Duration
	Total time.Duration
}

func (t TurnTiming) of(s Stage) time.Duration {
	switch s {
	case StageSTT:
		return t.STT
	case StageLLM:
		return t.LLM
	case StageTTS:
		return t.TTS
	case StageTurnTotal:
		return t.Total
	default:
		return 0
	}
}

type StageStats struct {
	Stage      Stage   `json:"stage"`
	Samples    int     `json:"samples"`
	LastMS     float64 `json:"last_ms"`
	AvgMS      float64 `json:"avg_ms"`
	P50MS      float64 `json:"p50_ms"`
	P95MS      float64 `json:"p95_ms"`
	P99MS      float64 `json:"p99_ms"`
	BudgetMS   float64 `json:"budget_ms,omitempty"`
	OverBudget int     `json:"over_budget"`

	// SharePct is the stage's part of total turn time over the turns that
	// ran it.
	SharePct float64 `json:"share_pct,omitempty"`
}

type LatencySnapshot struct {
	GeneratedAt time.Time    `json:"generated_at"`
	WindowSize  int          `json:"window_size"`
	Turns       int          `json:"turns"`
	Stages      []StageStats `json:"stages"`
}

// LatencyWindow keeps the most recent completed turns.
type LatencyWindow struct {
	mu    sync.RWMutex
	turns []TurnTiming
	next  int
	full  bool
}

func NewLatencyWindow(size int) *LatencyWindow {
	if size <= 0 {
		size = 256
	}
	return &LatencyWindow{turns: make([]TurnTiming, size)}
}

// Add records one turn. Turns without a total are ignored.
func (w *LatencyWindow) Add(t TurnTiming) {
	if t.Total <= 0 || t.STT < 0 || t.LLM < 0 || t.TTS < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.turns[w.next] = t
	w.next++
	if w.next == len(w.turns) {
		w.next = 0
		w.full = true
	}
}

// recent returns the stored turns oldest first.
func (w *LatencyWindow) recent() []TurnTiming {
	if !w.full {
		return append([]TurnTiming(nil), w.turns[:w.next]...)
	}
	out := make([]TurnTiming, 0, len(w.turns))
	out = append(out, w.turns[w.next:]...)
	return append(out, w.turns[:w.next]...)
}

func (w *LatencyWindow) Snapshot() LatencySnapshot {
	w.mu.RLock()
	turns := w.recent()
	size := len(w.turns)
	w.mu.RUnlock()

	stages := make([]StageStats, 0, len(Stages))
	for _, stage := range Stages {
		if st, ok := stageStats(stage, turns); ok {
			stages = append(stages, st)
		}
	}
	return LatencySnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  size,
		Turns:       len(turns),
		Stages:      stages,
	}
}

func stageStats(stage Stage, turns []TurnTiming) (StageStats, bool) {
	var (
		samples    []float64
		stageSum   time.Duration
		totalSum   time.Duration
		last       float64
		overBudget int
	)
	budget := stage.BudgetMS()
	for _, t := range turns {
		d := t.of(stage)
		if d <= 0 {
			continue
		}
		ms := millis(d)
		samples = append(samples, ms)
		stageSum += d
		totalSum += t.Total
		last = ms
		if budget > 0 && ms > budget {
			overBudget++
		}
	}
	if len(samples) == 0 {
		return StageStats{}, false
	}
	sort.Float64s(samples)

	st := StageStats{
		Stage:      stage,
		Samples:    len(samples),
		LastMS:     last,
		AvgMS:      round2(millis(stageSum) / float64(len(samples))),
		P50MS:      nearestRank(samples, 50),
		P95MS:      nearestRank(samples, 95),
		P99MS:      nearestRank(samples, 99),
		BudgetMS:   budget,
		OverBudget: overBudget,
	}
	if stage != StageTurnTotal && totalSum > 0 {
		st.SharePct = round2(100 * float64(stageSum) / float64(totalSum))
	}
	return st, true
}

// nearestRank expects sorted input.
func nearestRank(sorted []float64, pct int) float64 {
	rank := (pct*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

func millis(d time.Duration) float64 {
	return round2(float64(d.Microseconds()) / 1000)
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
