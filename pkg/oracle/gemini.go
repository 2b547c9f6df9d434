package oracle

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	apperrors "github.com/schemforge/schemforge/pkg/errors"
	"github.com/schemforge/schemforge/pkg/httputil"
	"github.com/schemforge/schemforge/pkg/schematic"
)

// Default Gemini client settings.
const (
	DefaultGeminiModel   = "gemini-2.0-flash"
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiTimeout = 60 * time.Second

	// DefaultGeminiRate caps upstream calls; the free tier allows
	// roughly 15 requests per minute.
	DefaultGeminiRate = rate.Limit(0.25)
)

// GeminiOptions configures a [Gemini] oracle.
type GeminiOptions struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
	Logger  *log.Logger
}

// Gemini asks a generative model to complete the whole netlist in one
// call, then answers per-pin queries from the memoized response. The
// snapshot is fingerprinted so each distinct connectivity state costs at
// most one upstream request.
type Gemini struct {
	opts    GeminiOptions
	limiter *rate.Limiter

	mu     sync.Mutex
	memoed string // fingerprint of the cached batch response
	batch  map[string][]Suggestion
}

// NewGemini returns a Gemini oracle or an error when the API key is missing.
func NewGemini(opts GeminiOptions) (*Gemini, error) {
	if opts.APIKey == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "gemini: API key is required")
	}
	if opts.Model == "" {
		opts.Model = DefaultGeminiModel
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultGeminiBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultGeminiTimeout
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Gemini{
		opts:    opts,
		limiter: rate.NewLimiter(DefaultGeminiRate, 1),
	}, nil
}

// SuggestNets implements Oracle.
func (g *Gemini) SuggestNets(ctx context.Context, snap *Snapshot, target schematic.PinRef) ([]Suggestion, error) {
	batch, err := g.complete(ctx, snap)
	if err != nil {
		return nil, err
	}
	return batch[target.String()], nil
}

// complete returns the per-pin suggestion map for snap, issuing at most
// one upstream call per snapshot fingerprint.
func (g *Gemini) complete(ctx context.Context, snap *Snapshot) (map[string][]Suggestion, error) {
	fp := fingerprint(snap)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.memoed == fp && g.batch != nil {
		return g.batch, nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	raw, err := g.generate(ctx, snap)
	if err != nil {
		return nil, err
	}

	batch, err := parseBatch(raw)
	if err != nil {
		// A malformed model response degrades to "no opinion" rather
		// than failing the run.
		g.opts.Logger.Warn("gemini: unparseable response", "error", err)
		batch = map[string][]Suggestion{}
	}

	g.memoed = fp
	g.batch = batch
	return batch, nil
}

func (g *Gemini) generate(ctx context.Context, snap *Snapshot) (string, error) {
	prompt, err := buildPrompt(snap)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]any{"temperature": 0},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(g.opts.BaseURL, "/"), g.opts.Model, g.opts.APIKey)

	var text string
	err = httputil.RetryWithBackoff(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.opts.Client.Do(req)
		if err != nil {
			return &httputil.RetryableError{Err: err}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return &httputil.RetryableError{Err: err}
		}
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("gemini: status %d: %s", resp.StatusCode, truncate(string(data), 200))
			if httputil.StatusRetryable(resp.StatusCode) {
				return &httputil.RetryableError{Err: err}
			}
			return err
		}

		var parsed struct {
			Candidates []struct {
				Content struct {
					Parts []struct {
						Text string `json:"text"`
					} `json:"parts"`
				} `json:"content"`
			} `json:"candidates"`
		}
		if err := json.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("gemini: decode response: %w", err)
		}
		if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
			return fmt.Errorf("gemini: empty response")
		}
		text = parsed.Candidates[0].Content.Parts[0].Text
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

const promptHeader = `You are an expert electronics engineer. Given the circuit state below,
propose net connections for every unconnected pin. Respond with ONLY a
JSON object mapping "REF.PIN" to an array of candidates, each candidate
an object with "net" (net name, reusing existing net IDs where the pin
belongs on an existing net) and "confidence" (0.0 to 1.0).`

func buildPrompt(snap *Snapshot) (string, error) {
	state, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", err
	}
	return promptHeader + "\n\nCircuit state:\n" + string(state) + "\n", nil
}

// parseBatch decodes the model's JSON answer, tolerating markdown code
// fences around the payload.
func parseBatch(raw string) (map[string][]Suggestion, error) {
	raw = stripFences(raw)
	out := map[string][]Suggestion{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	for pin, suggestions := range out {
		kept := suggestions[:0]
		for _, s := range suggestions {
			if s.Net != "" && s.Confidence >= 0 && s.Confidence <= 1 {
				kept = append(kept, s)
			}
		}
		out[pin] = kept
	}
	return out, nil
}

// stripFences removes a leading ```json (or bare ```) fence and the
// matching trailing fence, if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func fingerprint(snap *Snapshot) string {
	data, _ := json.Marshal(snap)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Oracle = (*Gemini)(nil)
