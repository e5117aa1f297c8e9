package domain

// Quote is the value object handed to the HTTP layer for the public price
// read path.
type Quote struct {
	Price           float64 `json:"price"`
	FormattedPrice  string  `json:"formatted_price"`
	PreviousPrice   float64 `json:"previous_price"`
	PriceChange     float64 `json:"price_change"`
	IsUp            bool    `json:"is_up"`
	IsDown          bool    `json:"is_down"`
	IsNeutral       bool    `json:"is_neutral"`
	PriceAgeSeconds float64 `json:"price_age_seconds"`
	PriceState      string  `json:"price_state"`
}
