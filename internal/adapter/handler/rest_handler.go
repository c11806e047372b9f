package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/fusion"
	"github.com/Boukadre/appweb-SOC-IA/internal/service"
)

const (
	maxJSONBody = 1 << 20

	analysisTimeout = 60 * time.Second
	storageTimeout  = 5 * time.Second
)

// Services groups the application services exposed over REST.
type Services struct {
	Phishing *service.PhishingService
	Network  *service.NetworkService
	AuthLog  *service.AuthLogService
	CVE      *service.CVEService
	Password *service.PasswordService
	History  *service.HistoryService
	Reports  *service.ReportService
}

type RestHandler struct {
	svc        Services
	components map[string]bool
	logger     *zap.Logger
}

// NewRestHandler builds the handler. components lists optional integrations
// and whether they are enabled; it is reported by the health check.
func NewRestHandler(svc Services, components map[string]bool, logger *zap.Logger) *RestHandler {
	return &RestHandler{svc: svc, components: components, logger: logger}
}

// Register mounts every endpoint under /api/v1.
func (h *RestHandler) Register(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", h.Health).Methods("GET")

	api.HandleFunc("/network-scan/quick", h.QuickScan).Methods("POST")
	api.HandleFunc("/network-scan/auth-log", h.AuthLog).Methods("POST")
	api.HandleFunc("/network-scan/report", h.ReportAbuse).Methods("POST")

	api.HandleFunc("/phishing-detect/analyze", h.AnalyzeEmail).Methods("POST")
	api.HandleFunc("/phishing-detect/keywords", h.ScanKeywords).Methods("POST")

	api.HandleFunc("/cve-scanner/scan", h.ScanWebsite).Methods("POST")
	api.HandleFunc("/cve-scanner/lookup", h.LookupCVEs).Methods("POST")

	api.HandleFunc("/password-analyzer/analyze", h.AnalyzePassword).Methods("POST")

	api.HandleFunc("/scans", h.ListScans).Methods("GET")
	api.HandleFunc("/scans/{id}", h.GetScan).Methods("GET")
	api.HandleFunc("/scans/{id}", h.DeleteScan).Methods("DELETE")

	api.HandleFunc("/reports", h.GenerateReport).Methods("POST")
	api.HandleFunc("/reports/{id}", h.GetReport).Methods("GET")
}

// Health check endpoint
func (h *RestHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "socia-api",
		"modules": map[string]string{
			"network_scan":      "operational",
			"phishing_detect":   "operational",
			"cve_scanner":       "operational",
			"password_analyzer": "operational",
			"report_gen":        "operational",
		},
		"components": h.components,
		"classifier": map[string]interface{}{
			"available": h.svc.Phishing != nil && h.svc.Phishing.ClassifierAvailable(),
		},
	}
	writeJSON(w, http.StatusOK, response)
}

type quickScanRequest struct {
	Target string `json:"target"`
	Ports  string `json:"ports"`
}

func (h *RestHandler) QuickScan(w http.ResponseWriter, r *http.Request) {
	var req quickScanRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), analysisTimeout)
	defer cancel()

	scan, err := h.svc.Network.QuickScan(ctx, req.Target, req.Ports)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

// AuthLog accepts either {"content": "..."} or the raw log as the body.
func (h *RestHandler) AuthLog(w http.ResponseWriter, r *http.Request) {
	var content string
	if isJSON(r) {
		var req struct {
			Content string `json:"content"`
		}
		// JSON escaping can grow a log, leave room for it
		r.Body = http.MaxBytesReader(w, r.Body, 2*fusion.MaxAuthLogBytes)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeDecodeError(w, err)
			return
		}
		content = req.Content
	} else {
		data, err := io.ReadAll(io.LimitReader(r.Body, fusion.MaxAuthLogBytes+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		content = string(data)
	}

	ctx, cancel := context.WithTimeout(r.Context(), analysisTimeout)
	defer cancel()

	analysis, err := h.svc.AuthLog.Analyze(ctx, content)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

type reportAbuseRequest struct {
	IP         string `json:"ip"`
	Categories []int  `json:"categories"`
	Comment    string `json:"comment"`
}

func (h *RestHandler) ReportAbuse(w http.ResponseWriter, r *http.Request) {
	var req reportAbuseRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), analysisTimeout)
	defer cancel()

	if err := h.svc.Network.ReportAddress(ctx, req.IP, req.Categories, req.Comment); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reported", "ip": req.IP})
}

func (h *RestHandler) AnalyzeEmail(w http.ResponseWriter, r *http.Request) {
	var req fusion.Email
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), analysisTimeout)
	defer cancel()

	analysis, err := h.svc.Phishing.Analyze(ctx, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (h *RestHandler) ScanKeywords(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.svc.Phishing.ScanKeywords(req.Text)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *RestHandler) ScanWebsite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), analysisTimeout)
	defer cancel()

	scan, err := h.svc.CVE.Scan(ctx, req.URL)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

func (h *RestHandler) LookupCVEs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Technologies []domain.Technology `json:"technologies"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	report, err := h.svc.CVE.Lookup(req.Technologies)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *RestHandler) AnalyzePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	analysis, err := h.svc.Password.Analyze(req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (h *RestHandler) ListScans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	kind, err := service.ParseKind(q.Get("kind"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	limit, ok := intParam(w, q.Get("limit"), "limit")
	if !ok {
		return
	}
	offset, ok := intParam(w, q.Get("offset"), "offset")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storageTimeout)
	defer cancel()

	records, err := h.svc.History.List(ctx, kind, limit, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(records),
		"records": records,
	})
}

func (h *RestHandler) GetScan(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), storageTimeout)
	defer cancel()

	rec, err := h.svc.History.Get(ctx, mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *RestHandler) DeleteScan(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ctx, cancel := context.WithTimeout(r.Context(), storageTimeout)
	defer cancel()

	if err := h.svc.History.Delete(ctx, id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

type reportRequest struct {
	AnalysisIDs []string `json:"analysis_ids"`
	Format      string   `json:"format"`
}

func (h *RestHandler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	report, err := h.svc.Reports.Generate(ctx, req.AnalysisIDs, req.Format)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

// GetReport returns the stored report. With ?download=true the rendered
// content is written as is, with its own content type.
func (h *RestHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), storageTimeout)
	defer cancel()

	report, err := h.svc.Reports.Get(ctx, mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if download, _ := strconv.ParseBool(r.URL.Query().Get("download")); download {
		w.Header().Set("Content-Type", report.ContentType)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(report.Content)); err != nil {
			h.logger.Warn("failed to write report", zap.String("id", report.ID), zap.Error(err))
		}
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Helper functions

func (h *RestHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeDecodeError(w, err)
		return false
	}
	return true
}

func (h *RestHandler) writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "invalid JSON payload")
}

// writeServiceError maps domain errors onto status codes. Unexpected errors
// are logged and hidden from the client.
func (h *RestHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrPayloadTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid '"+name+"' parameter")
		return 0, false
	}
	return n, true
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode JSON response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
