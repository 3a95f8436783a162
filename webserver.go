package main

import (
	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

// WebServer exposes the calculator and the population models over HTTP.
type WebServer struct {
	config *Config
	addr   string
}

// NewWebServer creates a server bound to addr, falling back to the
// configured address when addr is empty.
func NewWebServer(config *Config, addr string) *WebServer {
	if addr == "" && config != nil {
		addr = config.Server.Addr
	}
	if addr == "" {
		addr = ":8080"
	}
	return &WebServer{config: config, addr: addr}
}

// Start blocks serving the API.
func (ws *WebServer) Start() error {
	log.WithField("addr", ws.addr).Info("starting API server")
	return fasthttp.ListenAndServe(ws.addr, ws.route)
}

// ErrorResponse is the JSON error payload of every endpoint.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (ws *WebServer) route(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	switch path {
	case "/healthz":
		ws.handleHealth(ctx)
	case "/api/config":
		ws.handleGetConfig(ctx)
	case "/api/tax/schedule":
		ws.handleSchedule(ctx)
	case "/api/tax/compute":
		ws.handleTaxCompute(ctx)
	case "/api/tax/curve":
		ws.handleTaxCurve(ctx)
	case "/api/simulate/ode":
		ws.handleSimulate(ctx, ModelODE)
	case "/api/simulate/markov":
		ws.handleSimulate(ctx, ModelMarkov)
	case "/api/markov/stationary":
		ws.handleStationary(ctx)
	case "/api/scenarios/shock":
		ws.handleShock(ctx)
	case "/api/scenarios/redistribution":
		ws.handleRedistribution(ctx)
	default:
		writeError(ctx, fasthttp.StatusNotFound, "unknown endpoint: "+path)
	}
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v interface{}) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	if err := json.NewEncoder(ctx).Encode(v); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}

func writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	writeJSON(ctx, status, ErrorResponse{Status: status, Message: message})
}

// writeComputeError maps validation failures to 400 and everything else,
// solver blowups included, to 500.
func writeComputeError(ctx *fasthttp.RequestCtx, err error) {
	if isInvalidInput(err) {
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	log.WithError(err).Warn("computation failed")
	writeError(ctx, fasthttp.StatusInternalServerError, err.Error())
}

func decodeBody(ctx *fasthttp.RequestCtx, v interface{}) bool {
	if !ctx.IsPost() {
		writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	if err := json.Unmarshal(ctx.PostBody(), v); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (ws *WebServer) handleHealth(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "ok"})
}

func (ws *WebServer) handleGetConfig(ctx *fasthttp.RequestCtx) {
	if ws.config != nil {
		writeJSON(ctx, fasthttp.StatusOK, ws.config)
		return
	}
	config, err := LoadDefaultConfig()
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, config)
}

func (ws *WebServer) handleSchedule(ctx *fasthttp.RequestCtx) {
	year := ctx.QueryArgs().GetUintOrZero("year")
	if year == 0 {
		schedule, err := ws.resolveSchedule()
		if err != nil {
			writeError(ctx, fasthttp.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, schedule)
		return
	}
	schedule, err := ScheduleForYear(year)
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, schedule)
}

// APITaxRequest is one household computation. Schedule and policy are
// optional; missing values fall back to the server configuration.
type APITaxRequest struct {
	Income      float64         `json:"income"`
	Parts       float64         `json:"parts"`
	ApplyRebate *bool           `json:"apply_rebate,omitempty"`
	ApplyCap    *bool           `json:"apply_cap,omitempty"`
	Year        int             `json:"year,omitempty"`
	Schedule    BracketSchedule `json:"schedule,omitempty"`
	Policy      *TaxPolicy      `json:"policy,omitempty"`
}

func (ws *WebServer) handleTaxCompute(ctx *fasthttp.RequestCtx) {
	var req APITaxRequest
	if !decodeBody(ctx, &req) {
		return
	}
	schedule, policy, err := ws.resolveTaxInputs(req.Year, req.Schedule, req.Policy)
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	h := Household{Income: req.Income, Parts: req.Parts, ApplyRebate: true, ApplyCap: true}
	if req.ApplyRebate != nil {
		h.ApplyRebate = *req.ApplyRebate
	}
	if req.ApplyCap != nil {
		h.ApplyCap = *req.ApplyCap
	}
	result, err := ComputeTax(h, schedule, policy)
	if err != nil {
		writeComputeError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, result)
}

// APICurveRequest samples the net tax and rates over an income range.
type APICurveRequest struct {
	APITaxRequest
	MaxIncome float64 `json:"max_income"`
	Points    int     `json:"points"`
}

func (ws *WebServer) handleTaxCurve(ctx *fasthttp.RequestCtx) {
	var req APICurveRequest
	if !decodeBody(ctx, &req) {
		return
	}
	schedule, policy, err := ws.resolveTaxInputs(req.Year, req.Schedule, req.Policy)
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	parts := req.Parts
	if parts == 0 {
		parts = 1
	}
	maxIncome := req.MaxIncome
	if maxIncome == 0 {
		maxIncome = 200000
	}
	points := req.Points
	if points == 0 {
		points = 200
	}
	applyRebate, applyCap := true, true
	if req.ApplyRebate != nil {
		applyRebate = *req.ApplyRebate
	}
	if req.ApplyCap != nil {
		applyCap = *req.ApplyCap
	}
	curve, err := RateCurve(schedule, policy, parts, maxIncome, points, applyRebate, applyCap)
	if err != nil {
		writeComputeError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, curve)
}

func (ws *WebServer) handleSimulate(ctx *fasthttp.RequestCtx, kind ModelKind) {
	var in ScenarioInput
	if !decodeBody(ctx, &in) {
		return
	}
	in.Kind = kind
	if err := ws.fillScenarioDefaults(&in); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	traj, err := simulate(ctx, in, in.Schedule, in.Params)
	if err != nil {
		writeComputeError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, traj)
}

// APIStationaryRequest configures the stationary solve. All fields are
// optional; a GET runs with the server configuration.
type APIStationaryRequest struct {
	Year      int             `json:"year,omitempty"`
	Schedule  BracketSchedule `json:"schedule,omitempty"`
	Policy    *TaxPolicy      `json:"policy,omitempty"`
	TopIncome float64         `json:"top_income,omitempty"`
	Params    *ModelParams    `json:"params,omitempty"`
	Stability bool            `json:"stability,omitempty"`
}

func (ws *WebServer) handleStationary(ctx *fasthttp.RequestCtx) {
	var req APIStationaryRequest
	if ctx.IsPost() {
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			writeError(ctx, fasthttp.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	} else if !ctx.IsGet() {
		writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
		return
	}

	schedule, policy, err := ws.resolveTaxInputs(req.Year, req.Schedule, req.Policy)
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	topIncome := req.TopIncome
	if topIncome == 0 {
		topIncome = ws.topIncome()
	}
	params := ws.params()
	if req.Params != nil {
		params = *req.Params
	}
	if err := params.Validate(); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}

	model, err := NewMarkovModel(schedule, policy, topIncome)
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	if req.Stability {
		analysis, err := model.AnalyzeStability(params)
		if err != nil {
			writeComputeError(ctx, err)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, analysis)
		return
	}
	result, err := model.StationaryDistribution(params)
	if err != nil {
		writeComputeError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, result)
}

// APIShockRequest runs a baseline and a top-rate-shocked variant.
type APIShockRequest struct {
	ScenarioInput
	DeltaTau float64 `json:"delta_tau"`
}

func (ws *WebServer) handleShock(ctx *fasthttp.RequestCtx) {
	var req APIShockRequest
	if !decodeBody(ctx, &req) {
		return
	}
	if err := ws.fillScenarioDefaults(&req.ScenarioInput); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	scenario, err := RunTaxShock(ctx, req.ScenarioInput, req.DeltaTau)
	if err != nil {
		writeComputeError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, scenario)
}

// APIRedistributionRequest boosts upward mobility by rho.
type APIRedistributionRequest struct {
	ScenarioInput
	Rho float64 `json:"rho"`
}

func (ws *WebServer) handleRedistribution(ctx *fasthttp.RequestCtx) {
	var req APIRedistributionRequest
	if !decodeBody(ctx, &req) {
		return
	}
	if err := ws.fillScenarioDefaults(&req.ScenarioInput); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	scenario, err := RunRedistribution(ctx, req.ScenarioInput, req.Rho)
	if err != nil {
		writeComputeError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, scenario)
}

func (ws *WebServer) resolveSchedule() (BracketSchedule, error) {
	if ws.config != nil {
		return ws.config.ResolveSchedule()
	}
	return Schedule2024(), nil
}

func (ws *WebServer) resolveTaxInputs(year int, schedule BracketSchedule, policy *TaxPolicy) (BracketSchedule, TaxPolicy, error) {
	var err error
	switch {
	case len(schedule) > 0:
		err = ValidateSchedule(schedule)
	case year != 0:
		schedule, err = ScheduleForYear(year)
	default:
		schedule, err = ws.resolveSchedule()
	}
	if err != nil {
		return nil, TaxPolicy{}, err
	}

	p := DefaultTaxPolicy()
	if policy != nil {
		p = *policy
	} else if ws.config != nil && ws.config.Policy.Rebate.Coefficient > 0 {
		p = ws.config.Policy
	}
	return schedule, p, nil
}

func (ws *WebServer) params() ModelParams {
	if ws.config != nil {
		return ws.config.Params
	}
	return ModelParams{}
}

func (ws *WebServer) topIncome() float64 {
	if ws.config != nil && ws.config.Population.TopIncome > 0 {
		return ws.config.Population.TopIncome
	}
	return DefaultTopIncome
}

// fillScenarioDefaults completes a scenario request from the server
// configuration so clients only send what they want to override.
func (ws *WebServer) fillScenarioDefaults(in *ScenarioInput) error {
	if len(in.Schedule) == 0 {
		schedule, err := ws.resolveSchedule()
		if err != nil {
			return err
		}
		in.Schedule = schedule
	} else if err := ValidateSchedule(in.Schedule); err != nil {
		return err
	}
	if in.Policy.Rebate.Coefficient == 0 {
		if ws.config != nil && ws.config.Policy.Rebate.Coefficient > 0 {
			in.Policy = ws.config.Policy
		} else {
			in.Policy = DefaultTaxPolicy()
		}
	}
	if in.TopIncome == 0 {
		in.TopIncome = ws.topIncome()
	}
	if len(in.Initial) == 0 {
		if ws.config == nil {
			return &InvalidInputError{Field: "initial", Reason: "missing initial population"}
		}
		initial, err := ws.config.InitialState()
		if err != nil {
			return err
		}
		in.Initial = initial
	}
	if in.Span.End <= in.Span.Start {
		if ws.config != nil && ws.config.Simulation.Span.End > ws.config.Simulation.Span.Start {
			in.Span = ws.config.Simulation.Span
		} else {
			in.Span = TimeSpan{Start: 0, End: 10}
		}
	}
	if in.Points == 0 {
		if ws.config != nil && ws.config.Simulation.Points > 0 {
			in.Points = ws.config.Simulation.Points
		} else {
			in.Points = 100
		}
	}
	if in.Params == (ModelParams{}) {
		in.Params = ws.params()
	}
	return in.Params.Validate()
}
