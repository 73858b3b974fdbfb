package services

import (
	"context"
	"errors"
	"fmt"

	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/lexpraxis/legal_practice_app/internal/apperrors"
	portsrepo "github.com/lexpraxis/legal_practice_app/internal/core/ports/repositories"
	portssvc "github.com/lexpraxis/legal_practice_app/internal/core/ports/services"
	"github.com/lexpraxis/legal_practice_app/internal/middleware"
)

// ErrConversionUnavailable means no stored rate or static fallback covers the
// requested currency pair. Callers must treat it as a hard failure; an
// unconverted amount is never silently returned.
var ErrConversionUnavailable = errors.New("no conversion rate available for currency pair")

// fallbackRates covers the pairs the firm most commonly bills across when no
// rate has been recorded yet. Inverses are derived at lookup time.
var fallbackRates = map[string]decimal.Decimal{
	"USD/EGP": decimal.RequireFromString("48.50"),
	"USD/EUR": decimal.RequireFromString("0.92"),
	"EUR/EGP": decimal.RequireFromString("52.70"),
	"GBP/USD": decimal.RequireFromString("1.27"),
}

// conversionService converts amounts between currencies using stored exchange
// rates first and the static fallback table second.
type conversionService struct {
	rateRepo portsrepo.ExchangeRateReader
}

// NewConversionService creates a new conversion gateway.
func NewConversionService(rateRepo portsrepo.ExchangeRateReader) portssvc.ConversionSvcFacade {
	return &conversionService{rateRepo: rateRepo}
}

var _ portssvc.ConversionSvcFacade = (*conversionService)(nil)

// Convert returns amount expressed in the target currency.
func (s *conversionService) Convert(ctx context.Context, amount decimal.Decimal, fromCurrencyCode, toCurrencyCode string) (decimal.Decimal, error) {
	if fromCurrencyCode == toCurrencyCode {
		return amount, nil
	}

	rate, inverted, err := s.lookupRate(ctx, fromCurrencyCode, toCurrencyCode)
	if err != nil {
		return decimal.Zero, err
	}
	if inverted {
		// Dividing by the stored rate keeps the full quotient; multiplying by
		// a truncated reciprocal loses money on round trips.
		return amount.Div(rate), nil
	}
	return amount.Mul(rate), nil
}

// lookupRate resolves a rate: stored direct, stored inverse, then fallback.
// inverted reports that the returned rate is quoted in the opposite direction
// and the caller must divide by it.
func (s *conversionService) lookupRate(ctx context.Context, from, to string) (decimal.Decimal, bool, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	stored, err := s.rateRepo.FindExchangeRate(ctx, from, to)
	if err == nil {
		return stored.Rate, false, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		logger.Error("Failed to look up exchange rate", slog.String("error", err.Error()), slog.String("from", from), slog.String("to", to))
		return decimal.Zero, false, fmt.Errorf("failed to look up exchange rate %s/%s: %w", from, to, err)
	}

	inverse, err := s.rateRepo.FindExchangeRate(ctx, to, from)
	if err == nil {
		if inverse.Rate.IsZero() {
			return decimal.Zero, false, fmt.Errorf("%w: stored inverse rate %s/%s is zero", apperrors.ErrValidation, to, from)
		}
		return inverse.Rate, true, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		logger.Error("Failed to look up inverse exchange rate", slog.String("error", err.Error()), slog.String("from", to), slog.String("to", from))
		return decimal.Zero, false, fmt.Errorf("failed to look up exchange rate %s/%s: %w", to, from, err)
	}

	if rate, ok := fallbackRates[from+"/"+to]; ok {
		logger.Debug("Using static fallback exchange rate", slog.String("pair", from+"/"+to))
		return rate, false, nil
	}
	if rate, ok := fallbackRates[to+"/"+from]; ok {
		logger.Debug("Using inverted static fallback exchange rate", slog.String("pair", to+"/"+from))
		return rate, true, nil
	}

	return decimal.Zero, false, fmt.Errorf("%w: %w: %s to %s", apperrors.ErrValidation, ErrConversionUnavailable, from, to)
}
