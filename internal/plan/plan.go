// Package plan loads batch backtest plans: a list of tickers, the note terms
// to test them with and an optional refresh schedule.
package plan

import (
	"github.com/wonny/eln-backtest/internal/backtest"
)

// Plan is the root of a plan YAML file
type Plan struct {
	Meta     Meta      `yaml:"meta" json:"meta"`
	Schedule Schedule  `yaml:"schedule" json:"schedule"`
	Defaults Terms     `yaml:"defaults" json:"defaults"`
	Notes    []NoteRef `yaml:"notes" json:"notes" validate:"required,min=1,dive"`
}

// Meta identifies a plan
type Meta struct {
	PlanID      string `yaml:"plan_id" json:"plan_id" validate:"required,max=64"`
	Description string `yaml:"description" json:"description"`
}

// Schedule controls the scheduler refresh of a plan
type Schedule struct {
	Cron     string `yaml:"cron" json:"cron"`           // 6-field expression with seconds, e.g. "0 30 18 * * 1-5"
	CacheTTL string `yaml:"cache_ttl" json:"cache_ttl"` // Go duration, e.g. "24h"
}

// Terms are complete note terms
type Terms struct {
	KnockOutPct   float64 `yaml:"knock_out_pct" json:"knock_out_pct" validate:"gt=0"`
	StrikePct     float64 `yaml:"strike_pct" json:"strike_pct" validate:"gt=0"`
	KnockInPct    float64 `yaml:"knock_in_pct" json:"knock_in_pct" validate:"gt=0"`
	HorizonMonths float64 `yaml:"horizon_months" json:"horizon_months" validate:"gt=0"`
}

// Override replaces individual default terms for one note
type Override struct {
	KnockOutPct   *float64 `yaml:"knock_out_pct" json:"knock_out_pct,omitempty" validate:"omitempty,gt=0"`
	StrikePct     *float64 `yaml:"strike_pct" json:"strike_pct,omitempty" validate:"omitempty,gt=0"`
	KnockInPct    *float64 `yaml:"knock_in_pct" json:"knock_in_pct,omitempty" validate:"omitempty,gt=0"`
	HorizonMonths *float64 `yaml:"horizon_months" json:"horizon_months,omitempty" validate:"omitempty,gt=0"`
}

// NoteRef is one ticker of the plan
type NoteRef struct {
	Ticker string    `yaml:"ticker" json:"ticker" validate:"required,max=32"`
	Terms  *Override `yaml:"terms" json:"terms,omitempty"`
}

// Config converts terms into backtest terms
func (t Terms) Config() backtest.Config {
	return backtest.Config{
		KnockOutPct:   t.KnockOutPct,
		StrikePct:     t.StrikePct,
		KnockInPct:    t.KnockInPct,
		HorizonMonths: t.HorizonMonths,
	}
}

// Apply returns base with the overridden terms replaced
func (o *Override) Apply(base backtest.Config) backtest.Config {
	if o == nil {
		return base
	}
	if o.KnockOutPct != nil {
		base.KnockOutPct = *o.KnockOutPct
	}
	if o.StrikePct != nil {
		base.StrikePct = *o.StrikePct
	}
	if o.KnockInPct != nil {
		base.KnockInPct = *o.KnockInPct
	}
	if o.HorizonMonths != nil {
		base.HorizonMonths = *o.HorizonMonths
	}
	return base
}

// Jobs expands the plan into one backtest job per note, in file order
func (p *Plan) Jobs() []backtest.Job {
	base := p.Defaults.Config()
	jobs := make([]backtest.Job, 0, len(p.Notes))
	for _, n := range p.Notes {
		jobs = append(jobs, backtest.Job{
			Ticker: backtest.NormalizeTicker(n.Ticker),
			Config: n.Terms.Apply(base),
		})
	}
	return jobs
}

// Tickers returns the normalized tickers of the plan
func (p *Plan) Tickers() []string {
	out := make([]string, len(p.Notes))
	for i, n := range p.Notes {
		out[i] = backtest.NormalizeTicker(n.Ticker)
	}
	return out
}
