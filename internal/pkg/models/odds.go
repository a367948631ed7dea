package models

import (
	"strconv"
	"strings"
)

// Depth is the number of price levels kept on each side of the book.
const Depth = 3

// PriceLevel is one rung of the back or lay ladder. Nil fields mean the
// source did not show a value.
type PriceLevel struct {
	Price *float64 `json:"price"`
	Size  *float64 `json:"size"`
}

// Fluctuations is the fixed-price movement history a bookmaker displays.
type Fluctuations struct {
	Open        string   `json:"open"`
	OpenDecimal *float64 `json:"open_decimal"`
	History     []string `json:"history"`
}

// Quote is one source's prices for one runner. Back[0] and Lay[0] are the
// best available prices.
type Quote struct {
	Number       string            `json:"number,omitempty"`
	Back         [Depth]PriceLevel `json:"back"`
	Lay          [Depth]PriceLevel `json:"lay"`
	Fluctuations *Fluctuations     `json:"fluctuations,omitempty"`
}

// BestBack returns the best back price if the source showed one.
func (q Quote) BestBack() (float64, bool) {
	if q.Back[0].Price == nil {
		return 0, false
	}
	return *q.Back[0].Price, true
}

// BestLay returns the best lay price if the source showed one.
func (q Quote) BestLay() (float64, bool) {
	if q.Lay[0].Price == nil {
		return 0, false
	}
	return *q.Lay[0].Price, true
}

// OddsSnapshot is the complete set of quotes one session extracted in one
// cycle. Snapshots are replaced wholesale, never merged.
type OddsSnapshot map[RunnerName]Quote

// Runners returns the runner names present in the snapshot.
func (s OddsSnapshot) Runners() []RunnerName {
	out := make([]RunnerName, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	return out
}

// ParsePrice reads a displayed price or volume such as "3.45", "$1,204" or
// "SP". Anything that is not a number yields nil.
func ParsePrice(s string) *float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
