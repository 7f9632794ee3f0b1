// Package series turns raw daily closes into the canonical, ordered price
// series consumed by the backtest simulator.
package series

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// Moving average windows carried by every prepared series
const (
	MAMonth   = 20
	MAQuarter = 60
	MAYear    = 240
)

// PricePoint is one trading day of a prepared series
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
	MA20  *float64  `json:"ma20,omitempty"`
	MA60  *float64  `json:"ma60,omitempty"`
	MA240 *float64  `json:"ma240,omitempty"`
}

// Series is an immutable, date-ascending sequence of PricePoints with
// distinct calendar dates.
type Series struct {
	points []PricePoint
}

// New builds a Series from points that are already clean. Dates are
// truncated to calendar days and must be strictly increasing; closes must be
// positive. Moving averages are (re)computed.
func New(points []PricePoint) (*Series, error) {
	if len(points) == 0 {
		return nil, &InsufficientDataError{Reason: "no price points"}
	}

	out := make([]PricePoint, len(points))
	for i, p := range points {
		if !validClose(p.Close) {
			return nil, fmt.Errorf("point %d: close must be a positive finite number, got %v", i, p.Close)
		}
		d := calendarDate(p.Date)
		if i > 0 && !d.After(out[i-1].Date) {
			return nil, fmt.Errorf("point %d: date %s is not after %s", i, d.Format("2006-01-02"), out[i-1].Date.Format("2006-01-02"))
		}
		out[i] = PricePoint{Date: d, Close: p.Close}
	}

	attachMovingAverages(out)
	return &Series{points: out}, nil
}

// Len returns the number of trading days
func (s *Series) Len() int {
	return len(s.points)
}

// At returns the point at index i
func (s *Series) At(i int) PricePoint {
	return s.points[i]
}

// Latest returns the most recent point
func (s *Series) Latest() PricePoint {
	return s.points[len(s.points)-1]
}

// Points returns a copy of all points
func (s *Series) Points() []PricePoint {
	out := make([]PricePoint, len(s.points))
	copy(out, s.points)
	return out
}

// Closes returns a copy of the close prices in date order
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Close
	}
	return out
}

// Dates returns a copy of the trading dates in order
func (s *Series) Dates() []time.Time {
	out := make([]time.Time, len(s.points))
	for i, p := range s.points {
		out[i] = p.Date
	}
	return out
}

// Hash returns a content hash over dates and closes. Two series with the
// same trading history hash identically regardless of where they came from.
func (s *Series) Hash() string {
	h := sha256.New()
	buf := make([]byte, 0, 32)
	for _, p := range s.points {
		buf = buf[:0]
		buf = p.Date.AppendFormat(buf, "2006-01-02")
		buf = append(buf, ':')
		buf = strconv.AppendFloat(buf, p.Close, 'g', -1, 64)
		buf = append(buf, '\n')
		h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
