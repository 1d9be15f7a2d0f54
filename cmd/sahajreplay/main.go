// Command sahajreplay drives scripted conversations against a running server
// and reports per-turn round-trip latency.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sahaj-careers/sahaj/internal/protocol"
)

type options struct {
	baseURL        string
	language       string
	turns          int
	audio          bool
	interTurnDelay time.Duration
	turnTimeout    time.Duration
	texts          []string
	verbose        bool
}

type registerResponse struct {
	UserID string `json:"user_id"`
}

type wsEnvelope struct {
	Type         string `json:"type"`
	Message      string `json:"message,omitempty"`
	Code         string `json:"code,omitempty"`
	State        string `json:"state,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	ResponseText string `json:"response_text,omitempty"`
}

type turnResult struct {
	Text    string
	Latency time.Duration
	State   string
	Err     string
}

type report struct {
	UserID    string
	SessionID string
	Turns     []turnResult
}

var defaultUtterances = []string{
	"Mera naam Ravi hai.",
	"Maine dasvi tak padhai ki hai.",
	"Mujhe khana banana aata hai.",
	"Main Pune mein rehta hoon.",
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "sahajreplay: %v\n", err)
		os.Exit(2)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Minute)
	defer cancel()

	rep, err := run(ctx, cfg, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sahajreplay: %v\n", err)
		os.Exit(1)
	}
	printSummary(os.Stdout, rep)
}

func parseFlags(args []string) (options, error) {
	var cfg options
	var textsRaw string
	var interTurnMS int
	var turnTimeoutMS int

	fs := flag.NewFlagSet("sahajreplay", flag.ContinueOnError)
	fs.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8000", "server base URL")
	fs.StringVar(&cfg.language, "language", "hi-IN", "language sent on registration and init")
	fs.IntVar(&cfg.turns, "turns", 4, "number of turns to replay")
	fs.BoolVar(&cfg.audio, "audio", false, "send utterances as binary frames instead of text_message")
	fs.IntVar(&interTurnMS, "inter-turn-ms", 200, "delay between turns in milliseconds")
	fs.IntVar(&turnTimeoutMS, "turn-timeout-ms", 30000, "timeout waiting for each response in milliseconds")
	fs.StringVar(&textsRaw, "texts", "", "utterances separated by '|' (optional)")
	fs.BoolVar(&cfg.verbose, "verbose", true, "print replay progress")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if cfg.turns <= 0 {
		return options{}, fmt.Errorf("turns must be > 0")
	}
	if interTurnMS < 0 {
		interTurnMS = 0
	}
	if turnTimeoutMS < 1000 {
		turnTimeoutMS = 1000
	}
	cfg.interTurnDelay = time.Duration(interTurnMS) * time.Millisecond
	cfg.turnTimeout = time.Duration(turnTimeoutMS) * time.Millisecond

	if strings.TrimSpace(textsRaw) == "" {
		cfg.texts = append([]string(nil), defaultUtterances...)
	} else {
		for _, part := range strings.Split(textsRaw, "|") {
			if t := strings.TrimSpace(part); t != "" {
				cfg.texts = append(cfg.texts, t)
			}
		}
		if len(cfg.texts) == 0 {
			return options{}, fmt.Errorf("texts produced no non-empty utterances")
		}
	}
	return cfg, nil
}

func run(ctx context.Context, cfg options, progress io.Writer) (report, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	userID, err := register(ctx, httpClient, cfg)
	if err != nil {
		return report{}, fmt.Errorf("register: %w", err)
	}

	wsURL, err := voiceURL(cfg.baseURL)
	if err != nil {
		return report{}, fmt.Errorf("build ws URL: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return report{}, fmt.Errorf("open websocket: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(protocol.Init{UserID: userID, Language: cfg.language}); err != nil {
		return report{}, fmt.Errorf("send init: %w", err)
	}

	rep := report{UserID: userID}
	if err := awaitHandshake(conn, cfg.turnTimeout, &rep); err != nil {
		return rep, fmt.Errorf("handshake: %w", err)
	}
	if cfg.verbose {
		fmt.Fprintf(progress, "sahajreplay: user=%s session=%s turns=%d audio=%t\n", userID, rep.SessionID, cfg.turns, cfg.audio)
	}

	for i := 0; i < cfg.turns; i++ {
		text := cfg.texts[i%len(cfg.texts)]
		res := turnResult{Text: text}

		started := time.Now()
		if cfg.audio {
			err = conn.WriteMessage(websocket.BinaryMessage, []byte(text))
		} else {
			err = conn.WriteJSON(protocol.TextMessage{Type: protocol.TypeTextMessage, Text: text})
		}
		if err != nil {
			return rep, fmt.Errorf("turn %d send: %w", i+1, err)
		}

		env, err := readEnvelope(conn, cfg.turnTimeout)
		if err != nil {
			return rep, fmt.Errorf("turn %d await response: %w", i+1, err)
		}
		res.Latency = time.Since(started)
		res.State = env.State
		if env.Type == string(protocol.TypeError) {
			res.Err = env.Message
		}
		rep.Turns = append(rep.Turns, res)

		if cfg.verbose {
			fmt.Fprintf(progress, "sahajreplay: turn %d/%d %s state=%s latency=%s\n", i+1, cfg.turns, env.Type, env.State, res.Latency.Round(time.Millisecond))
		}
		if cfg.interTurnDelay > 0 && i < cfg.turns-1 {
			time.Sleep(cfg.interTurnDelay)
		}
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return rep, nil
}

// awaitHandshake reads session_init and the greeting.
func awaitHandshake(conn *websocket.Conn, timeout time.Duration, rep *report) error {
	for {
		env, err := readEnvelope(conn, timeout)
		if err != nil {
			return err
		}
		switch env.Type {
		case string(protocol.TypeSessionInit):
			rep.SessionID = env.SessionID
		case string(protocol.TypeGreeting):
			return nil
		case string(protocol.TypeError):
			return fmt.Errorf("refused: %s", env.Message)
		}
	}
}

func register(ctx context.Context, client *http.Client, cfg options) (string, error) {
	payload, err := json.Marshal(map[string]string{"language": cfg.language})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.baseURL+"/api/auth/register", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	var out registerResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.UserID) == "" {
		return "", fmt.Errorf("missing user_id in response")
	}
	return out.UserID, nil
}

func voiceURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base-url scheme %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", fmt.Errorf("base-url host is required")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/voice"
	return u.String(), nil
}

func readEnvelope(conn *websocket.Conn, timeout time.Duration) (wsEnvelope, error) {
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	var env wsEnvelope
	if err := conn.ReadJSON(&env); err != nil {
		return wsEnvelope{}, err
	}
	return env, nil
}

// percentile uses nearest-rank on a sorted copy of values.
func percentile(values []time.Duration, q float64) time.Duration {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	rank := int(math.Ceil(q*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

func printSummary(w io.Writer, rep report) {
	latencies := make([]time.Duration, 0, len(rep.Turns))
	failed := 0
	for _, t := range rep.Turns {
		latencies = append(latencies, t.Latency)
		if t.Err != "" {
			failed++
		}
	}
	fmt.Fprintf(w, "sahajreplay: turns=%d errors=%d p50=%s p95=%s max=%s\n",
		len(rep.Turns), failed,
		percentile(latencies, 0.50).Round(time.Millisecond),
		percentile(latencies, 0.95).Round(time.Millisecond),
		percentile(latencies, 1).Round(time.Millisecond),
	)
}
