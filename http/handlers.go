package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"messforecast/ml"
	"messforecast/monitoring"
	"messforecast/pipeline"
	"messforecast/predict"
)

const defaultHistoryLimit = 20

var errSessionNotFound = errors.New("session not found")

// APIOptions tunes the API surface.
type APIOptions struct {
	RequiredFields int
	AllowedOrigins []string
	Metrics        *monitoring.Metrics
}

// API binds the prediction core to HTTP routes.
type API struct {
	service  *predict.Service
	trainer  *Trainer
	sessions *SessionStore
	metrics  *monitoring.Metrics
	logger   *zap.Logger

	required int
	origins  []string
}

func NewAPI(service *predict.Service, trainer *Trainer, sessions *SessionStore, logger *zap.Logger, opts APIOptions) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequiredFields <= 0 {
		opts.RequiredFields = predict.RequiredFields
	}
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewMetrics()
	}
	return &API{
		service:  service,
		trainer:  trainer,
		sessions: sessions,
		metrics:  opts.Metrics,
		logger:   logger.With(zap.String("component", "api")),
		required: opts.RequiredFields,
		origins:  opts.AllowedOrigins,
	}
}

func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", a.handleHealth)
	mux.HandleFunc("POST /api/dataset", a.handleUpload)
	mux.HandleFunc("GET /api/model", a.handleModel)
	mux.HandleFunc("GET /api/training/history", a.handleHistory)
	mux.HandleFunc("GET /api/vocabulary", a.handleVocabulary)

	mux.HandleFunc("POST /api/sessions", a.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", a.handleGetSession)
	mux.HandleFunc("PUT /api/sessions/{id}/fields/{field}", a.handleSetField)
	mux.HandleFunc("DELETE /api/sessions/{id}", a.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/predict", a.handlePredict)

	mux.HandleFunc("GET /api/ws/session", a.handleSessionSocket)

	mux.HandleFunc("GET /api/stats", a.handleStats)
	mux.HandleFunc("GET /metrics", a.handleMetrics)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, err := a.service.Model()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"trained": err == nil,
	})
}

func (a *API) handleUpload(w http.ResponseWriter, r *http.Request) {
	body, name, err := uploadBody(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	defer body.Close()

	report, err := a.trainer.TrainReader(r.Context(), name, body)
	if err != nil {
		a.metrics.Inc(monitoring.UploadsRejected)
		a.writeError(w, err)
		return
	}
	a.metrics.Inc(monitoring.UploadsAccepted)
	writeJSON(w, http.StatusOK, report)
}

// uploadBody accepts either a multipart form with a "file" field or the raw
// CSV as the request body.
func uploadBody(r *http.Request) (io.ReadCloser, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, "", err
			}
			return nil, "", badRequest("multipart upload needs a \"file\" field: " + err.Error())
		}
		return file, header.Filename, nil
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload.csv"
	}
	return r.Body, name, nil
}

type modelView struct {
	Schema            []string  `json:"schema"`
	MeanAbsoluteError float64   `json:"mean_absolute_error"`
	ConfidencePercent float64   `json:"confidence_percent"`
	TrainRows         int       `json:"train_rows"`
	EvalRows          int       `json:"eval_rows"`
	Trees             int       `json:"trees"`
	Seed              int64     `json:"seed"`
	TrainedAt         time.Time `json:"trained_at"`
}

func (a *API) handleModel(w http.ResponseWriter, r *http.Request) {
	model, err := a.service.Model()
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, modelView{
		Schema:            model.Schema.Names(),
		MeanAbsoluteError: model.MAE,
		ConfidencePercent: model.Confidence,
		TrainRows:         model.TrainRows,
		EvalRows:          model.EvalRows,
		Trees:             model.Trees,
		Seed:              model.Seed,
		TrainedAt:         model.TrainedAt,
	})
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			a.writeError(w, badRequest("limit must be a positive integer"))
			return
		}
		limit = l
	}

	runs, err := a.trainer.History(r.Context(), limit)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (a *API) handleVocabulary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"fields":   predict.Vocabulary(),
		"required": a.required,
	})
}

type sessionView struct {
	SessionID string             `json:"session_id"`
	Fields    map[string]float64 `json:"fields"`
	Complete  bool               `json:"complete"`
	Required  int                `json:"required"`
}

func (a *API) viewSession(id string, acc *predict.Accumulator) sessionView {
	return sessionView{
		SessionID: id,
		Fields:    acc.Snapshot(),
		Complete:  acc.IsComplete(a.required),
		Required:  a.required,
	}
}

func (a *API) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, acc := a.sessions.Create()
	a.metrics.Inc(monitoring.SessionsCreated)
	writeJSON(w, http.StatusCreated, a.viewSession(id, acc))
}

func (a *API) lookupSession(w http.ResponseWriter, r *http.Request) (string, *predict.Accumulator, bool) {
	id := r.PathValue("id")
	acc, ok := a.sessions.Get(id)
	if !ok {
		a.writeError(w, errSessionNotFound)
		return id, nil, false
	}
	return id, acc, true
}

func (a *API) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, acc, ok := a.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a.viewSession(id, acc))
}

type fieldValue struct {
	Value *float64 `json:"value"`
}

func (a *API) handleSetField(w http.ResponseWriter, r *http.Request) {
	id, acc, ok := a.lookupSession(w, r)
	if !ok {
		return
	}

	var body fieldValue
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.writeError(w, badRequest("invalid json body: "+err.Error()))
		return
	}
	if body.Value == nil {
		a.writeError(w, badRequest("value is required"))
		return
	}

	field := r.PathValue("field")
	if err := predict.ValidateSelection(field, *body.Value); err != nil {
		a.writeError(w, err)
		return
	}
	acc.Set(field, *body.Value)
	writeJSON(w, http.StatusOK, a.viewSession(id, acc))
}

func (a *API) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !a.sessions.Delete(r.PathValue("id")) {
		a.writeError(w, errSessionNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type predictionView struct {
	predict.Result
	Complete bool `json:"complete"`
}

func (a *API) handlePredict(w http.ResponseWriter, r *http.Request) {
	_, acc, ok := a.lookupSession(w, r)
	if !ok {
		return
	}
	result, err := a.service.PredictSession(acc)
	if err != nil {
		a.metrics.Inc(monitoring.PredictionErrors)
		a.writeError(w, err)
		return
	}
	a.metrics.Inc(monitoring.Predictions)
	writeJSON(w, http.StatusOK, predictionView{Result: result, Complete: acc.IsComplete(a.required)})
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	a.metrics.SetGauge("sessions_active", float64(a.sessions.Len()))
	writeJSON(w, http.StatusOK, a.metrics.Snapshot())
}

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	a.metrics.SetGauge("sessions_active", float64(a.sessions.Len()))
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	io.WriteString(w, a.metrics.ExportPrometheus())
}

type errorBody struct {
	Error  string                 `json:"error"`
	Kind   string                 `json:"kind"`
	Detail map[string]interface{} `json:"detail,omitempty"`
}

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &badRequestError{msg: msg}
}

// classifyError maps core errors onto a status code and a response body.
func classifyError(err error) (int, errorBody) {
	body := errorBody{Error: err.Error()}

	var (
		schemaErr    *pipeline.SchemaError
		parseErr     *pipeline.ParseError
		trainingErr  *ml.TrainingError
		selectionErr *predict.SelectionError
		requestErr   *badRequestError
		tooLarge     *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooLarge):
		body.Kind = "too_large"
		body.Detail = map[string]interface{}{"limit": tooLarge.Limit}
		return http.StatusRequestEntityTooLarge, body
	case errors.As(err, &schemaErr):
		body.Kind = "schema"
		body.Detail = map[string]interface{}{"expected": schemaErr.Expected, "header": schemaErr.Header}
		return http.StatusUnprocessableEntity, body
	case errors.As(err, &parseErr):
		body.Kind = "parse"
		body.Detail = map[string]interface{}{"line": parseErr.Line}
		if parseErr.Column != "" {
			body.Detail["column"] = parseErr.Column
		}
		return http.StatusUnprocessableEntity, body
	case errors.As(err, &trainingErr):
		body.Kind = "training"
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, predict.ErrNotTrained):
		body.Kind = "not_trained"
		return http.StatusConflict, body
	case errors.As(err, &selectionErr):
		body.Kind = "selection"
		body.Detail = map[string]interface{}{"field": selectionErr.Field, "value": selectionErr.Value}
		return http.StatusBadRequest, body
	case errors.As(err, &requestErr):
		body.Kind = "bad_request"
		return http.StatusBadRequest, body
	case errors.Is(err, errSessionNotFound):
		body.Kind = "session_not_found"
		return http.StatusNotFound, body
	default:
		body.Kind = "internal"
		return http.StatusInternalServerError, body
	}
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	status, body := classifyError(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", zap.Error(err))
		body.Error = "internal server error"
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (a *API) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(a.origins) == 0 {
		return true
	}
	if originAllowed(a.origins, origin) {
		return true
	}
	return strings.EqualFold(strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://"), r.Host)
}
