package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/oraclerelay/internal/domain"
)

// QuoteSource produces the public price quote.
type QuoteSource interface {
	Quote(ctx context.Context) (domain.Quote, error)
}

// PriceHandler serves the public price endpoint.
type PriceHandler struct {
	quotes QuoteSource
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler.
func NewPriceHandler(quotes QuoteSource, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{
		quotes: quotes,
		logger: logger.With(slog.String("handler", "price")),
	}
}

// GetPrice returns the current quote, or 503 when no live or cached
// snapshot exists.
// GET /public/price
func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	q, err := h.quotes.Quote(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "Oracle unavailable")
			return
		}
		h.logger.ErrorContext(r.Context(), "quote failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, q)
}
