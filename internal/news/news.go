// Package news produces the flavor-text headline shown next to the game.
//
// Headlines come from an external text generator that has its own
// budget: one call per cooldown window, and an extended blackout after the
// provider reports a quota problem. Failures are never fatal; the caller is
// told why and keeps showing a fallback headline.
package news

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/moneyclicker/idle-engine/internal/clock"
	"github.com/moneyclicker/idle-engine/internal/metrics"
	"github.com/moneyclicker/idle-engine/internal/rng"
)

var (
	// ErrRateLimited marks a provider quota or HTTP 429 failure.
	ErrRateLimited = errors.New("news: rate limited")

	// ErrCoolingDown is returned while the cooldown or blackout is active.
	ErrCoolingDown = errors.New("news: cooling down")

	// ErrInFlight is returned when a refresh is already running.
	ErrInFlight = errors.New("news: request in flight")

	// ErrEmptyHeadline is returned when the generator answers with nothing.
	ErrEmptyHeadline = errors.New("news: empty headline")
)

// Fallbacks are shown whenever no generated headline is available.
var Fallbacks = []string{
	"The central bank leaves interest rates unchanged.",
	"Your net worth now exceeds a regional government budget.",
	"Your company keeps the top market share on the exchange.",
	"Rumour has it golden coins are raining on the financial district.",
	"The value of every currency in the universe is now pegged to you.",
	"Economists call your investment strategy pure magic.",
	"The property market is in an unprecedented bubble.",
	"Places one to one hundred on the rich list are all you.",
	"An AI concludes that money is your friend.",
	"Lunar real estate is sold out, and you bought all of it.",
	"A new digital currency, Money-C, has been launched.",
	"Taxes across the universe drop to zero; your profits soar.",
	"Markets move with every single click you make.",
	"The Space Bank awards you a medal of special merit.",
	"The mint considers putting your face on the new banknote.",
}

// Fallback picks one fallback headline.
func Fallback(src rng.Source) string {
	return Fallbacks[rng.IntN(src, len(Fallbacks))]
}

// Generator produces a headline for the given economy.
type Generator interface {
	Generate(ctx context.Context, balance, rate decimal.Decimal) (string, error)
}

// Sink receives refresh results. Calls never block the caller for long.
type Sink interface {
	Headline(text string)
	FetchFailed(err error, retryIn time.Duration)
}

// Policy holds the provider budget.
type Policy struct {
	Cooldown time.Duration // minimum time between calls
	Blackout time.Duration // pause after a rate limit
	Timeout  time.Duration // per-call deadline
}

// DefaultPolicy returns the reference budget: 5 minutes between calls,
// 15 minutes after a rate limit.
func DefaultPolicy() Policy {
	return Policy{
		Cooldown: 5 * time.Minute,
		Blackout: 15 * time.Minute,
		Timeout:  20 * time.Second,
	}
}

// Service rate-limits a Generator.
type Service struct {
	gen    Generator
	policy Policy
	clock  clock.Clock
	src    rng.Source // fallback picks for empty headlines

	mu           sync.Mutex
	lastCall     time.Time
	blockedUntil time.Time
	inFlight     bool
}

// NewService wraps gen. A nil gen makes every refresh fail transiently,
// which keeps the fallback rotation running. src picks the fallback shown
// when the generator answers with an empty headline; nil seeds one from
// the clock.
func NewService(gen Generator, policy Policy, clk clock.Clock, src rng.Source) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	if src == nil {
		src = rng.New(uint64(clk.Now().UnixNano()))
	}
	return &Service{gen: gen, policy: policy, clock: clk, src: src}
}

// Remaining returns how long until the next call is allowed.
func (s *Service) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingLocked(s.clock.Now())
}

func (s *Service) remainingLocked(now time.Time) time.Duration {
	next := time.Time{}
	if !s.lastCall.IsZero() {
		next = s.lastCall.Add(s.policy.Cooldown)
	}
	if s.blockedUntil.After(next) {
		next = s.blockedUntil
	}
	if !next.After(now) {
		return 0
	}
	return next.Sub(now)
}

// InFlight reports whether a refresh is running.
func (s *Service) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Refresh asks the generator for a new headline and delivers the outcome to
// sink. It blocks for at most the policy timeout. Cooldown rejections are
// delivered too so the caller can show how long is left; ErrInFlight is
// only returned.
func (s *Service) Refresh(ctx context.Context, balance, rate decimal.Decimal, sink Sink) error {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return ErrInFlight
	}
	now := s.clock.Now()
	if rem := s.remainingLocked(now); rem > 0 {
		s.mu.Unlock()
		metrics.NewsRequests.WithLabelValues("cooling_down").Inc()
		sink.FetchFailed(ErrCoolingDown, rem)
		return fmt.Errorf("%w: %s left", ErrCoolingDown, rem.Round(time.Second))
	}
	s.inFlight = true
	s.lastCall = now
	s.mu.Unlock()

	text, err := s.generate(ctx, balance, rate)

	s.mu.Lock()
	s.inFlight = false
	var retryIn time.Duration
	if errors.Is(err, ErrRateLimited) {
		s.blockedUntil = s.clock.Now().Add(s.policy.Blackout)
		retryIn = s.policy.Blackout
	}
	if errors.Is(err, ErrEmptyHeadline) {
		text, err = Fallback(s.src), nil
	}
	s.mu.Unlock()

	if err != nil {
		outcome := "error"
		if retryIn > 0 {
			outcome = "rate_limited"
		}
		metrics.NewsRequests.WithLabelValues(outcome).Inc()
		slog.Warn("headline fetch failed", "err", err, "retry_in", retryIn)
		sink.FetchFailed(err, retryIn)
		return err
	}
	metrics.NewsRequests.WithLabelValues("ok").Inc()
	sink.Headline(text)
	return nil
}

func (s *Service) generate(ctx context.Context, balance, rate decimal.Decimal) (string, error) {
	if s.gen == nil {
		return "", errors.New("news: no generator configured")
	}
	if s.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.policy.Timeout)
		defer cancel()
	}
	text, err := s.gen.Generate(ctx, balance, rate)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyHeadline
	}
	return text, nil
}
