package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func TestLatencyWindowSnapshot(t *testing.T) {
	w := NewLatencyWindow(4)
	// The first turn falls out of the window.
	w.Add(TurnTiming{LLM: ms(9000), Total: ms(9000)})
	w.Add(TurnTiming{LLM: ms(1000), TTS: ms(500), Total: ms(2000)})
	w.Add(TurnTiming{STT: ms(800), LLM: ms(2000), TTS: ms(700), Total: ms(4000)})
	w.Add(TurnTiming{LLM: ms(5000), Total: ms(6000)})
	w.Add(TurnTiming{STT: ms(600), LLM: ms(3000), TTS: ms(900), Total: ms(5000)})
	w.Add(TurnTiming{LLM: ms(100)})
	w.Add(TurnTiming{LLM: -ms(1), Total: ms(10)})

	snap := w.Snapshot()
	if snap.Turns != 4 || snap.WindowSize != 4 {
		t.Fatalf("Snapshot() turns = %d window = %d, want 4 and 4", snap.Turns, snap.WindowSize)
	}
	if len(snap.Stages) != 4 {
		t.Fatalf("stages = %+v, want all four", snap.Stages)
	}
	for i, want := range Stages {
		if snap.Stages[i].Stage != want {
			t.Fatalf("stage[%d] = %q, want %q", i, snap.Stages[i].Stage, want)
		}
	}

	stt := snap.Stages[0]
	if stt.Samples != 2 || stt.LastMS != 600 || stt.AvgMS != 700 {
		t.Fatalf("stt stats = %+v", stt)
	}
	// 1400ms of STT over 9000ms of the turns that ran it.
	if stt.SharePct != 15.56 {
		t.Fatalf("stt SharePct = %v, want 15.56", stt.SharePct)
	}

	llm := snap.Stages[1]
	if llm.Samples != 4 || llm.P50MS != 2000 || llm.P95MS != 5000 || llm.OverBudget != 1 || llm.BudgetMS != 4000 {
		t.Fatalf("llm stats = %+v", llm)
	}

	total := snap.Stages[3]
	if total.Samples != 4 || total.AvgMS != 4250 || total.SharePct != 0 {
		t.Fatalf("turn_total stats = %+v", total)
	}
}

func TestLatencyWindowEmpty(t *testing.T) {
	snap := NewLatencyWindow(0).Snapshot()
	if snap.WindowSize != 256 || snap.Turns != 0 || len(snap.Stages) != 0 {
		t.Fatalf("Snapshot() = %+v, want empty default window", snap)
	}
}

func TestMetricsHandlerExposesInstruments(t *testing.T) {
	m := NewMetrics("sahaj_test", nil)
	m.SessionEvent("connected")
	m.Message("in", "text_message")
	m.ProviderError("llm", "timeout")
	m.Transition("discovery", "courses")
	m.ObserveStage(StageLLM, 900*time.Millisecond)
	m.ObserveTurn(TurnTiming{LLM: 900 * time.Millisecond, Total: 1500 * time.Millisecond})
	m.ActiveConnections.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`sahaj_test_session_events_total{event="connected"} 1`,
		`sahaj_test_ws_messages_total{direction="in",type="text_message"} 1`,
		`sahaj_test_provider_errors_total{code="timeout",provider="llm"} 1`,
		`sahaj_test_state_transitions_total{from="discovery",to="courses"} 1`,
		`sahaj_test_active_connections 1`,
		`sahaj_test_turn_latency_ms_count{stage="turn_total"} 1`,
		`sahaj_test_turn_latency_ms_count{stage="llm"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}

	snap := m.LatencySnapshot()
	if snap.Turns != 1 || len(snap.Stages) != 2 || snap.Stages[1].LastMS != 1500 {
		t.Fatalf("LatencySnapshot() = %+v", snap)
	}

	// A second instance must not collide with the first.
	_ = NewMetrics("sahaj_test", nil)
}
