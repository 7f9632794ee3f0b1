package contracts

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownTicker is returned by a PriceSource that holds no prices for a ticker
var ErrUnknownTicker = errors.New("unknown ticker")

// RawPrice is one unprepared daily sample as delivered by a price source.
// Close stays textual so malformed values reach series preparation, which
// drops them.
type RawPrice struct {
	Date  time.Time `json:"date"`
	Close string    `json:"close"`
}

// PriceSource supplies the raw daily history of a ticker
// ⭐ SSOT: 가격 입력 경계는 이 인터페이스 하나
type PriceSource interface {
	LoadPrices(ctx context.Context, ticker string) ([]RawPrice, error)
}
