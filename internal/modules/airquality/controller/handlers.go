package controller

import (
	"bytes"
	"context"
	"net/http"
	"strconv"

	"aqi-explorer/internal/modules/airquality/mapview"
	"aqi-explorer/internal/modules/airquality/pipeline"
	"aqi-explorer/internal/modules/airquality/types"
	"aqi-explorer/internal/modules/airquality/views"
	"aqi-explorer/internal/utils"
)

func (c *airQualityControllerImpl) handleIndex(w http.ResponseWriter, r *http.Request) {
	lookups, err := c.history.GetRecentLookups(r.Context(), recentLookupsShown)
	if err != nil {
		c.logger.Warn("index: recent lookups unavailable", "error", err)
		lookups = nil
	}

	widget := mapview.NewSceneWidget()
	presenter := mapview.NewPresenter(widget, c.mapCfg)
	if err := presenter.InitSelectionMap(r.Context()); err != nil {
		c.logger.Error("index: selection map failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to build map")
		return
	}
	scene, err := widget.JSON()
	if err != nil {
		c.logger.Error("index: encode scene failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to build map")
		return
	}

	data := views.IndexData{
		DemoMode:        c.demoMode,
		SelectionScene:  string(scene),
		ReadyIntervalMs: c.mapCfg.Readiness.Interval.Milliseconds(),
		ReadyAttempts:   c.mapCfg.Readiness.Attempts,
		Lookups:         views.NewLookupsData(lookups),
	}
	var buf bytes.Buffer
	if err := views.RenderIndex(&buf, &data); err != nil {
		c.logger.Error("index template render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	c.writeHTML(w, http.StatusOK, buf.Bytes())
}

// handleLookup serves the results partial for the query parse builds.
// Validation failures render the inline error partial with 422.
func (c *airQualityControllerImpl) handleLookup(parse queryParser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := c.resolve(r, parse)
		if err != nil {
			c.writeLookupError(w, err)
			return
		}

		scene := c.resultsScene(r.Context(), res)
		data := views.NewResultsData(res, scene)
		var buf bytes.Buffer
		if err := views.RenderResultsPartial(&buf, &data); err != nil {
			c.logger.Error("results partial render failed", "lookup_id", res.ID, "error", err)
			utils.WriteError(w, http.StatusInternalServerError, "failed to render")
			return
		}
		c.writeHTML(w, http.StatusOK, buf.Bytes())
	}
}

func (c *airQualityControllerImpl) handleLookupsPartial(w http.ResponseWriter, r *http.Request) {
	lookups, err := c.history.GetRecentLookups(r.Context(), recentLookupsShown)
	if err != nil {
		c.logger.Error("lookups partial: get recent lookups failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load lookups")
		return
	}
	data := views.NewLookupsData(lookups)
	var buf bytes.Buffer
	if err := views.RenderLookupsPartial(&buf, &data); err != nil {
		c.logger.Error("lookups partial render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render")
		return
	}
	c.writeHTML(w, http.StatusOK, buf.Bytes())
}

// airQualityResponse is the JSON form of one lookup.
type airQualityResponse struct {
	pipeline.Result
	ElapsedMs int64 `json:"elapsed_ms"`
}

func (c *airQualityControllerImpl) handleAirQuality(w http.ResponseWriter, r *http.Request) {
	res, err := c.resolve(r, apiQuery)
	if err != nil {
		if _, msg, ok := validationMessage(err); ok {
			utils.WriteError(w, http.StatusBadRequest, msg)
			return
		}
		c.logger.Error("api lookup failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	utils.WriteJSON(w, http.StatusOK, airQualityResponse{Result: res, ElapsedMs: res.Elapsed.Milliseconds()})
}

func (c *airQualityControllerImpl) handleLookups(w http.ResponseWriter, r *http.Request) {
	limit, err := utils.QueryLimit(r, defaultLookupsLimit, maxLookupsLimit)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	lookups, err := c.history.GetRecentLookups(r.Context(), limit)
	if err != nil {
		c.logger.Error("api: get recent lookups failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load lookups")
		return
	}
	if lookups == nil {
		lookups = []types.Lookup{}
	}
	if total, err := c.history.CountLookups(r.Context()); err != nil {
		c.logger.Warn("api: count lookups failed", "error", err)
	} else {
		w.Header().Set("X-Total-Count", strconv.Itoa(total))
	}
	utils.WriteJSON(w, http.StatusOK, lookups)
}

func (c *airQualityControllerImpl) resolve(r *http.Request, parse queryParser) (pipeline.Result, error) {
	q, err := parse(r)
	if err != nil {
		return pipeline.Result{}, err
	}
	return c.resolver.Resolve(r.Context(), q)
}

// resultsScene draws res on a fresh widget. A failed drawing still returns
// the results panel, only without a map.
func (c *airQualityControllerImpl) resultsScene(ctx context.Context, res pipeline.Result) []byte {
	widget := mapview.NewSceneWidget()
	presenter := mapview.NewPresenter(widget, c.mapCfg)
	if err := presenter.InitResultsMap(ctx, res); err != nil {
		c.logger.Error("results map failed", "lookup_id", res.ID, "error", err)
		return nil
	}
	scene, err := widget.JSON()
	if err != nil {
		c.logger.Error("encode results scene failed", "lookup_id", res.ID, "error", err)
		return nil
	}
	return scene
}

func (c *airQualityControllerImpl) writeLookupError(w http.ResponseWriter, err error) {
	field, msg, ok := validationMessage(err)
	if !ok {
		c.logger.Error("lookup failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	var buf bytes.Buffer
	if err := views.RenderErrorPartial(&buf, &views.ErrorData{Field: field, Message: msg}); err != nil {
		c.logger.Error("error partial render failed", "error", err)
		utils.WriteError(w, http.StatusUnprocessableEntity, msg)
		return
	}
	c.writeHTML(w, http.StatusUnprocessableEntity, buf.Bytes())
}

func (c *airQualityControllerImpl) writeHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		c.logger.Error("write response failed", "error", err)
	}
}
