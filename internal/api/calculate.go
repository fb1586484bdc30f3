package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/socialweight/socialweight/internal/engine"
	"github.com/socialweight/socialweight/internal/store"
	"github.com/socialweight/socialweight/pkg/scoring"
)

// Error codes.
const (
	CodeInvalidUserID = "invalid_user_id"
	CodeUnauthorized  = "unauthorized"
	CodeAccessDenied  = "access_denied"
	CodeConfigMissing = "config_missing"
	CodeInternal      = "internal_error"
)

// calculateResponse is the public score payload.
type calculateResponse struct {
	TotalSW          int64                `json:"totalSW"`
	OriginalSW       float64              `json:"originalSW"`
	BaseSW           float64              `json:"baseSW"`
	AdminAdjustments float64              `json:"adminAdjustments"`
	Breakdown        scoring.Breakdown    `json:"breakdown"`
	Weights          scoring.WeightConfig `json:"weights"`
	InflationRate    float64              `json:"inflationRate"`
	Tier             string               `json:"tier"`
	TierChangedAt    time.Time            `json:"tierChangedAt"`
	Cached           bool                 `json:"cached"`
	CacheAge         *int64               `json:"cacheAge,omitempty"`
}

func newCalculateResponse(res *engine.Result) calculateResponse {
	out := calculateResponse{
		TotalSW:          res.Score.Total,
		OriginalSW:       res.Score.OriginalTotal,
		BaseSW:           res.Score.BaseScore,
		AdminAdjustments: res.Score.AdminAdjustments,
		Breakdown:        res.Score.Breakdown,
		Weights:          res.Weights,
		InflationRate:    res.Score.DecayRate,
		Tier:             res.Score.Tier,
		TierChangedAt:    res.Score.TierChangedAt,
		Cached:           res.Cached,
	}
	if res.Cached {
		age := int64(res.CacheAge / time.Second)
		out.CacheAge = &age
	}
	return out
}

// handleCalculate serves GET /sw/calculate?user_id=<uuid>. Without user_id
// the caller's own score is returned. Elevated callers may pass fresh=true
// to bypass the cache.
func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = caller.UserID
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidUserID, "user_id must be a UUID")
		return
	}

	req := engine.Request{UserID: id.String(), Elevated: caller.Elevated}
	if caller.Elevated {
		req.Fresh, _ = strconv.ParseBool(r.URL.Query().Get("fresh"))
	}

	res, err := h.scorer.Score(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCalculateResponse(res))
}

// fail maps an engine error to a response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, scoring.ErrConfigMissing):
		h.log.Error().Err(err).Msg("weight configuration missing")
		h.writeInternal(w, CodeConfigMissing, "weight configuration missing", err)
	case errors.Is(err, store.ErrAccessDenied):
		writeError(w, http.StatusForbidden, CodeAccessDenied, "access denied")
	default:
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		h.writeInternal(w, CodeInternal, "internal error", err)
	}
}

func (h *Handler) writeInternal(w http.ResponseWriter, code, msg string, err error) {
	body := errorBody{Error: msg, Code: code}
	if !h.opts.Production {
		body.Error = err.Error()
		body.Stack = errorChain(err)
	}
	writeJSON(w, http.StatusInternalServerError, body)
}

// errorChain lists the messages of err and every error it wraps.
func errorChain(err error) []string {
	var out []string
	for err != nil {
		out = append(out, err.Error())
		err = errors.Unwrap(err)
	}
	return out
}
