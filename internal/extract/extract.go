// Package extract turns plain text into event candidates with a language
// model. Model output is untrusted: bad content yields fewer candidates,
// never an error. Only service failures are returned, as
// *model.ExtractionServiceError.
package extract

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/alfredjeanlab/campusevents/internal/llm"
	"github.com/alfredjeanlab/campusevents/internal/model"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultMaxTokens  = 3000
	DefaultTimeout    = 60 * time.Second
	DefaultMaxRetries = 1
)

// Config bounds a single extraction.
type Config struct {
	MaxTokens  int           // word budget for the submitted text
	Timeout    time.Duration // per model call
	MaxRetries int           // extra attempts after a service failure; negative disables
}

// Extractor submits text to a Completer and parses the reply.
type Extractor struct {
	llm    llm.Completer
	cfg    Config
	logger *slog.Logger
}

// New returns an Extractor. Zero Config fields take the package defaults.
func New(c llm.Completer, cfg Config, logger *slog.Logger) *Extractor {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	} else if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{llm: c, cfg: cfg, logger: logger}
}

// Extract returns the ordered candidates found in text. Empty text yields an
// empty result without calling the model.
func (x *Extractor) Extract(ctx context.Context, source, text string) (*model.ExtractionResult, error) {
	result := &model.ExtractionResult{Source: source}
	text = strings.TrimSpace(text)
	if text == "" {
		return result, nil
	}

	body, truncated := Truncate(text, x.cfg.MaxTokens)
	if truncated {
		x.logger.Debug("truncated source text", "source", source, "max_tokens", x.cfg.MaxTokens)
	}

	reply, err := x.complete(ctx, userPromptPrefix+body)
	if err != nil {
		return nil, &model.ExtractionServiceError{Source: source, Err: err}
	}

	candidates, ok := ParseResponse(reply)
	if !ok {
		x.logger.Warn("unparseable model output", "source", source, "bytes", len(reply))
		return result, nil
	}
	result.Candidates = candidates
	if n := result.MalformedCount(); n > 0 {
		x.logger.Info("dropped malformed candidates", "source", source, "malformed", n, "total", len(candidates))
	}
	return result, nil
}

// complete calls the model with a per-attempt timeout, retrying service
// failures up to MaxRetries times. Rejected credentials are not retried.
func (x *Extractor) complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= x.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			x.logger.Warn("retrying model call", "attempt", attempt+1, "err", lastErr)
		}
		callCtx, cancel := context.WithTimeout(ctx, x.cfg.Timeout)
		reply, err := x.llm.Complete(callCtx, systemPrompt, prompt)
		cancel()
		if err == nil {
			return reply, nil
		}
		lastErr = err
		// The caller gave up; a retry cannot succeed.
		if ctx.Err() != nil || errors.Is(err, llm.ErrUnauthorized) {
			break
		}
	}
	return "", lastErr
}

// Truncate keeps the first maxWords whitespace-separated words of text. The
// text is returned unchanged when it already fits.
func Truncate(text string, maxWords int) (string, bool) {
	words := strings.Fields(text)
	if maxWords <= 0 || len(words) <= maxWords {
		return text, false
	}
	return strings.Join(words[:maxWords], " "), true
}
