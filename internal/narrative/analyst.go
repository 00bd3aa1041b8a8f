package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"cotpulse/pkg/contracts/domain"
)

var (
	// ErrUnavailable means no model is configured or the breaker is open.
	ErrUnavailable = errors.New("narrative analysis unavailable")
	// ErrUnsupportedLanguage is returned for language codes other than en, ar and fr.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrMalformedResponse is returned when the model output is not the expected JSON.
	ErrMalformedResponse = errors.New("malformed model response")
)

// Generator produces a JSON document for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt, system string) (string, error)
}

// Analyst produces commentary for a snapshot.
type Analyst interface {
	Analyze(ctx context.Context, records []domain.SnapshotRecord, lang string) (*domain.Analysis, error)
}

// Settings tune the breaker and per-call timeout.
type Settings struct {
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Service is the Analyst backed by a Generator.
type Service struct {
	gen     Generator
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	logger  *slog.Logger
}

// NewService wraps gen. A nil gen yields a service that always reports
// ErrUnavailable.
func NewService(gen Generator, s Settings, logger *slog.Logger) *Service {
	if s.Timeout <= 0 {
		s.Timeout = 60 * time.Second
	}
	if s.BreakerFailures == 0 {
		s.BreakerFailures = 3
	}
	if s.BreakerCooldown <= 0 {
		s.BreakerCooldown = 30 * time.Second
	}

	logger = logger.With(slog.String("component", "narrative"))
	failures := s.BreakerFailures

	st := gobreaker.Settings{Name: "narrative"}
	st.Timeout = s.BreakerCooldown
	st.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= failures }
	st.IsSuccessful = func(err error) bool {
		// Caller mistakes and cancellations say nothing about upstream health.
		return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrUnsupportedLanguage)
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn("circuit breaker state changed",
			slog.String("breaker", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()))
	}

	return &Service{
		gen:     gen,
		cb:      gobreaker.NewCircuitBreaker(st),
		timeout: s.Timeout,
		logger:  logger,
	}
}

// Available reports whether a generator is configured and the breaker is
// not open.
func (s *Service) Available() bool {
	return s.gen != nil && s.cb.State() != gobreaker.StateOpen
}

// Analyze asks the model for commentary on records in lang.
func (s *Service) Analyze(ctx context.Context, records []domain.SnapshotRecord, lang string) (*domain.Analysis, error) {
	if s.gen == nil {
		return nil, fmt.Errorf("%w: no API key configured", ErrUnavailable)
	}
	language, ok := LanguageName(lang)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	if lang == "" {
		lang = domain.LangEnglish
	}

	prompt := BuildPrompt(records, language)
	system := SystemInstruction(language)

	result, err := s.cb.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		start := time.Now()
		raw, err := s.gen.Generate(callCtx, prompt, system)
		if err != nil {
			return nil, err
		}
		analysis, err := decodeAnalysis(raw)
		if err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "analysis generated",
			slog.String("lang", lang),
			slog.Int("records", len(records)),
			slog.Duration("took", time.Since(start)))
		return analysis, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}

	analysis := result.(*domain.Analysis)
	analysis.Lang = lang
	return analysis, nil
}

// decodeAnalysis accepts the bare JSON document, tolerating a surrounding
// markdown code fence.
func decodeAnalysis(raw string) (*domain.Analysis, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var a domain.Analysis
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &a, nil
}
