// Package rates resolves the source→display exchange rate. The external
// fetch is modeled as a capability so the pipeline can run with a
// subprocess-backed source, a fixed test source, or none at all.
package rates

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"strings"

	"github.com/wanderplan/wanderplan/config"
	"github.com/wanderplan/wanderplan/internal/trip"
)

// Source fetches how many units of dst one unit of src buys.
type Source interface {
	Fetch(ctx context.Context, src, dst string) (float64, error)
}

// knownCodes is the whitelist of currency codes that may be handed to a
// subprocess. Codes are validated structurally first, then against this
// set; anything else is rejected before any command runs.
var knownCodes = map[string]bool{
	"CNY": true, "EUR": true, "USD": true, "GBP": true, "JPY": true,
	"HKD": true, "MOP": true, "TWD": true, "KRW": true, "SGD": true,
	"THB": true, "MYR": true, "AUD": true, "CAD": true, "CHF": true,
}

// ValidateCode rejects anything that is not a whitelisted ISO-4217 code.
func ValidateCode(code string) error {
	if !config.IsCurrencyCode(code) {
		return trip.E(trip.KindInvalidInput, "currency code %q is not three uppercase letters", code)
	}
	if !knownCodes[code] {
		return trip.E(trip.KindInvalidInput, "currency code %q is not in the whitelist", code)
	}
	return nil
}

// SubprocessSource shells out to a configured command, passing the two
// codes as trailing arguments and reading a single float from stdout.
type SubprocessSource struct {
	cfg config.CurrencyConfig
	log *log.Logger
}

// NewSubprocessSource builds a source from currency config. Returns nil
// when no fetch command is configured.
func NewSubprocessSource(cfg config.CurrencyConfig) *SubprocessSource {
	if len(cfg.FetchCommand) == 0 {
		return nil
	}
	return &SubprocessSource{
		cfg: cfg,
		log: log.New(log.Writer(), "[RATES] ", log.LstdFlags),
	}
}

func (s *SubprocessSource) Fetch(ctx context.Context, src, dst string) (float64, error) {
	if err := ValidateCode(src); err != nil {
		return 0, err
	}
	if err := ValidateCode(dst); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	args := append(append([]string{}, s.cfg.FetchCommand[1:]...), src, dst)
	cmd := exec.CommandContext(ctx, s.cfg.FetchCommand[0], args...)
	out, err := cmd.Output()
	if err != nil {
		return 0, trip.Wrap(trip.KindExternalFailure, err, "rate fetch %s->%s", src, dst)
	}
	rate, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, trip.Wrap(trip.KindExternalFailure, err, "rate fetch %s->%s: non-numeric output %q", src, dst, strings.TrimSpace(string(out)))
	}
	if rate <= 0 {
		return 0, trip.E(trip.KindExternalFailure, "rate fetch %s->%s: non-positive rate %v", src, dst, rate)
	}
	s.log.Printf("%s->%s = %v", src, dst, rate)
	return rate, nil
}

// FixedSource always returns the same rate. Used in tests and when the
// operator pins a rate by hand.
type FixedSource struct{ Rate float64 }

func (f FixedSource) Fetch(_ context.Context, _, _ string) (float64, error) {
	if f.Rate <= 0 {
		return 0, trip.E(trip.KindInvalidInput, "fixed rate must be positive")
	}
	return f.Rate, nil
}

// FallbackRate derives the src→dst rate from the configured CNY-per-EUR
// fallback, inverting it when the pair runs the other way. Unrelated pairs
// come back as 1 so display numbers degrade to source numbers rather than
// garbage.
func FallbackRate(cfg config.CurrencyConfig, src, dst string) float64 {
	switch {
	case src == dst:
		return 1
	case src == "CNY" && dst == "EUR":
		return 1 / cfg.FallbackRate
	case src == "EUR" && dst == "CNY":
		return cfg.FallbackRate
	default:
		return 1
	}
}

// Resolve returns the display-per-source multiplier for the configured
// pair. A failing or absent source falls back to the configured rate; the
// caller never retries.
func Resolve(ctx context.Context, cfg config.CurrencyConfig, source Source) (float64, error) {
	if err := ValidateCode(cfg.Source); err != nil {
		return 0, err
	}
	if err := ValidateCode(cfg.Display); err != nil {
		return 0, err
	}
	if source != nil {
		rate, err := source.Fetch(ctx, cfg.Source, cfg.Display)
		if err == nil {
			return rate, nil
		}
		logger := log.New(log.Writer(), "[RATES] ", log.LstdFlags)
		logger.Printf("fetch failed (%v); using fallback", err)
	}
	return FallbackRate(cfg, cfg.Source, cfg.Display), nil
}

// Describe renders the pair for diagnostics.
func Describe(cfg config.CurrencyConfig, rate float64) string {
	return fmt.Sprintf("1 %s = %v %s", cfg.Source, rate, cfg.Display)
}
