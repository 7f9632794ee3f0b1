package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wonny/eln-backtest/internal/backtest"
	"github.com/wonny/eln-backtest/pkg/logger"
)

// BatchRunner runs ticker backtests concurrently
type BatchRunner interface {
	RunBatch(ctx context.Context, jobs []backtest.Job) ([]backtest.BatchItem, error)
}

// SingleRunner backtests one ticker and prices its levels
type SingleRunner interface {
	Run(ctx context.Context, ticker string, cfg backtest.Config) (*backtest.Report, error)
	Levels(ctx context.Context, ticker string, cfg backtest.Config) (backtest.Levels, error)
}

// RunLister reads persisted run summaries
type RunLister interface {
	ListByTicker(ctx context.Context, ticker string, limit int) ([]*backtest.RunRecord, error)
}

// BacktestHandler handles backtest API endpoints
// ⭐ SSOT: 백테스트 API 핸들러는 이 구조체에서만
type BacktestHandler struct {
	engine   SingleRunner
	runner   BatchRunner
	runs     RunLister
	defaults backtest.Config
	logger   *logger.Logger
}

// NewBacktestHandler creates a new backtest handler. runs may be nil when no
// database is configured.
func NewBacktestHandler(engine SingleRunner, runner BatchRunner, runs RunLister, defaults backtest.Config, log *logger.Logger) *BacktestHandler {
	return &BacktestHandler{
		engine:   engine,
		runner:   runner,
		runs:     runs,
		defaults: defaults,
		logger:   log,
	}
}

// TermsRequest overrides individual default note terms
type TermsRequest struct {
	KnockOutPct   *float64 `json:"knock_out_pct" validate:"omitempty,gt=0,lte=1000"`
	StrikePct     *float64 `json:"strike_pct" validate:"omitempty,gt=0,lte=1000"`
	KnockInPct    *float64 `json:"knock_in_pct" validate:"omitempty,gt=0,lte=1000"`
	HorizonMonths *float64 `json:"horizon_months" validate:"omitempty,gt=0,lte=240"`
}

// BacktestRequest is the body of POST /api/backtest
type BacktestRequest struct {
	Tickers     []string     `json:"tickers" validate:"required,min=1,max=20,dive,required,max=32"`
	Terms       TermsRequest `json:"terms"`
	IncludeRows bool         `json:"include_rows"`
}

// BacktestItem is the outcome for one requested ticker
type BacktestItem struct {
	Ticker string           `json:"ticker"`
	Report *backtest.Report `json:"report,omitempty"`
	Error  *ErrorResponse   `json:"error,omitempty"`
	Status int              `json:"status"`
}

// BacktestResponse is the body of a POST /api/backtest reply
type BacktestResponse struct {
	Terms   backtest.Config `json:"terms"`
	Results []BacktestItem  `json:"results"`
}

func (h *BacktestHandler) apply(t TermsRequest) backtest.Config {
	cfg := h.defaults
	if t.KnockOutPct != nil {
		cfg.KnockOutPct = *t.KnockOutPct
	}
	if t.StrikePct != nil {
		cfg.StrikePct = *t.StrikePct
	}
	if t.KnockInPct != nil {
		cfg.KnockInPct = *t.KnockInPct
	}
	if t.HorizonMonths != nil {
		cfg.HorizonMonths = *t.HorizonMonths
	}
	return cfg
}

// Run backtests one or more tickers
// POST /api/backtest
//
// A single-ticker request that fails is answered with the failure's status.
// Multi-ticker requests answer 200 and report per-ticker errors inline.
func (h *BacktestHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if errResp := decodeAndValidate(r, &req); errResp != nil {
		respondJSON(w, http.StatusBadRequest, errResp)
		return
	}

	cfg := h.apply(req.Terms)
	if err := cfg.Validate(); err != nil {
		respondBacktestError(w, err)
		return
	}

	tickers := backtest.ParseTickers(strings.Join(req.Tickers, ","))
	if len(tickers) == 0 {
		respondError(w, http.StatusBadRequest, "tickers is required")
		return
	}

	items, err := h.runner.RunBatch(r.Context(), backtest.JobsFor(tickers, cfg))
	if err != nil {
		h.logger.WithError(err).Warn("Backtest batch interrupted")
		respondBacktestError(w, err)
		return
	}

	resp := BacktestResponse{Terms: cfg, Results: make([]BacktestItem, len(items))}
	for i, item := range items {
		out := BacktestItem{Ticker: item.Ticker, Report: item.Report, Status: http.StatusOK}
		if item.Err != nil {
			out.Status = StatusFor(item.Err)
			out.Error = &ErrorResponse{Error: item.Err.Error(), Kind: backtest.ErrorKind(item.Err)}
		} else if !req.IncludeRows && item.Report.Result != nil {
			trimmed := *item.Report.Result
			trimmed.Rows = nil
			report := *item.Report
			report.Result = &trimmed
			out.Report = &report
		}
		resp.Results[i] = out
	}

	if len(items) == 1 && items[0].Err != nil {
		respondBacktestError(w, items[0].Err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// RowsCSV streams the full result table of one ticker as CSV
// GET /api/backtest/{ticker}/rows.csv?ko=&strike=&ki=&months=
func (h *BacktestHandler) RowsCSV(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.termsFromQuery(w, r)
	if !ok {
		return
	}

	report, err := h.engine.Run(r.Context(), mux.Vars(r)["ticker"], cfg)
	if err != nil {
		respondBacktestError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+report.Ticker+"_rows.csv\"")
	if err := backtest.WriteRowsCSV(w, report.Result.Rows); err != nil {
		h.logger.WithError(err).Warn("Failed to write CSV response")
	}
}

// GetLevels prices the note terms against the latest close
// GET /api/levels/{ticker}?ko=&strike=&ki=&months=
func (h *BacktestHandler) GetLevels(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.termsFromQuery(w, r)
	if !ok {
		return
	}

	levels, err := h.engine.Levels(r.Context(), mux.Vars(r)["ticker"], cfg)
	if err != nil {
		respondBacktestError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ticker": backtest.NormalizeTicker(mux.Vars(r)["ticker"]),
		"terms":  cfg,
		"levels": levels,
	})
}

// ListRuns returns the latest persisted runs of a ticker
// GET /api/runs/{ticker}?limit=20
func (h *BacktestHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "Run history requires a database")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			respondError(w, http.StatusBadRequest, "limit must be an integer between 1 and 500")
			return
		}
		limit = n
	}

	runs, err := h.runs.ListByTicker(r.Context(), mux.Vars(r)["ticker"], limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve runs")
		return
	}
	if runs == nil {
		runs = []*backtest.RunRecord{}
	}

	respondJSON(w, http.StatusOK, runs)
}

// termsFromQuery reads ko, strike, ki and months query overrides
func (h *BacktestHandler) termsFromQuery(w http.ResponseWriter, r *http.Request) (backtest.Config, bool) {
	q := r.URL.Query()
	var t TermsRequest
	for _, p := range []struct {
		name string
		dst  **float64
	}{
		{"ko", &t.KnockOutPct},
		{"strike", &t.StrikePct},
		{"ki", &t.KnockInPct},
		{"months", &t.HorizonMonths},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid "+p.name+" parameter")
			return backtest.Config{}, false
		}
		*p.dst = &f
	}

	cfg := h.apply(t)
	if err := cfg.Validate(); err != nil {
		respondBacktestError(w, err)
		return backtest.Config{}, false
	}
	return cfg, true
}
