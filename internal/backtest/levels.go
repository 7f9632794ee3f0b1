package backtest

import "github.com/wonny/eln-backtest/internal/series"

// LevelsAt prices the note terms against the latest close of s, which is
// what a note issued today would be struck at.
func LevelsAt(s *series.Series, cfg Config) (Levels, error) {
	if s == nil || s.Len() == 0 {
		return Levels{}, &series.InsufficientDataError{Reason: "empty series"}
	}

	latest := s.Latest()
	return Levels{
		ReferenceDate:  latest.Date,
		ReferencePrice: latest.Close,
		KnockOut:       latest.Close * (cfg.KnockOutPct / 100),
		Strike:         latest.Close * (cfg.StrikePct / 100),
		KnockIn:        latest.Close * (cfg.KnockInPct / 100),
	}, nil
}
