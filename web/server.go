// Package web serves a localhost-only JSON API for a single user; it
// intentionally has no auth/CSRF protection in this mode.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"recap/aggregate"
	"recap/internal/timeutil"
	"recap/issue"
	"recap/reconcile"
	"recap/source"
	"recap/storage"
	"recap/workitem"
)

type Server struct {
	store    *storage.SQLiteStore
	adapters []source.Adapter
	service  *reconcile.Service
	resolver *issue.Resolver

	mux *http.ServeMux
}

type overviewResponse struct {
	From    string    `json:"from"`
	To      string    `json:"to"`
	Days    []DayView `json:"days"`
	Version int64     `json:"version"`
}

type projectsResponse struct {
	Projects []projectOverviewView `json:"projects"`
}

type projectOverviewView struct {
	ProjectPath string  `json:"projectPath"`
	ProjectName string  `json:"projectName"`
	LastActive  string  `json:"lastActive"`
	TotalHours  float64 `json:"totalHours"`
	ActiveDays  int     `json:"activeDays"`
}

type validateResponse struct {
	Valid   bool   `json:"valid"`
	Summary string `json:"summary,omitempty"`
	Message string `json:"message,omitempty"`
}

type manualItemRequest struct {
	Date        string  `json:"date"`
	Hours       float64 `json:"hours"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
}

type issueKeyRequest struct {
	Target   string `json:"target"`
	IssueKey string `json:"issueKey"`
}

type versionResponse struct {
	Version int64 `json:"version"`
}

func NewServer(store *storage.SQLiteStore, adapters []source.Adapter, service *reconcile.Service, resolver *issue.Resolver) http.Handler {
	server := &Server{
		store:    store,
		adapters: adapters,
		service:  service,
		resolver: resolver,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/overview", server.handleOverview)
	mux.HandleFunc("GET /api/projects", server.handleProjects)
	mux.HandleFunc("GET /api/sync/records", server.handleSyncRecords)
	mux.HandleFunc("GET /api/sync/version", server.handleSyncVersion)
	mux.HandleFunc("POST /api/sync/day/{date}", server.handleSyncDay)
	mux.HandleFunc("POST /api/sync/week/{date}", server.handleSyncWeek)
	mux.HandleFunc("GET /api/issue/{key}/validate", server.handleValidateIssue)
	mux.HandleFunc("PUT /api/issue-key", server.handleRememberIssueKey)
	mux.HandleFunc("POST /api/manual", server.handleManualCreate)
	mux.HandleFunc("DELETE /api/manual/{id}", server.handleManualDelete)
	server.mux = mux

	return server
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) loadDays(ctx context.Context, rng workitem.DateRange) []workitem.WorklogDay {
	// A failed source degrades to an empty contribution; the healthy
	// sources still render.
	records, _ := source.Collect(ctx, s.adapters, rng)
	return aggregate.Aggregate(records, rng)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	days := s.loadDays(r.Context(), rng)
	records, err := s.store.SyncRecordsByTarget()
	if err != nil {
		http.Error(w, fmt.Sprintf("load sync records: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, overviewResponse{
		From:    timeutil.DayKey(rng.From),
		To:      timeutil.DayKey(rng.To),
		Days:    BuildDayViews(days, records),
		Version: s.service.Version(),
	})
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	days := s.loadDays(r.Context(), rng)

	overviews := aggregate.ProjectsByRecentActivity(days)
	resp := projectsResponse{Projects: make([]projectOverviewView, 0, len(overviews))}
	for _, overview := range overviews {
		resp.Projects = append(resp.Projects, projectOverviewView{
			ProjectPath: overview.ProjectPath,
			ProjectName: overview.ProjectName,
			LastActive:  timeutil.DayKey(overview.LastActive),
			TotalHours:  overview.TotalHours,
			ActiveDays:  overview.ActiveDays,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSyncRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListSyncRecords()
	if err != nil {
		http.Error(w, fmt.Sprintf("list sync records: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, BuildRecordViews(records))
}

func (s *Server) handleSyncVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, versionResponse{Version: s.service.Version()})
}

func (s *Server) handleSyncDay(w http.ResponseWriter, r *http.Request) {
	date, err := timeutil.ParseDay(strings.TrimSpace(r.PathValue("date")))
	if err != nil {
		http.Error(w, "invalid date format (expected YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	s.runSync(w, r, workitem.DateRange{From: date, To: date})
}

func (s *Server) handleSyncWeek(w http.ResponseWriter, r *http.Request) {
	date, err := timeutil.ParseDay(strings.TrimSpace(r.PathValue("date")))
	if err != nil {
		http.Error(w, "invalid date format (expected YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	from, to := timeutil.WeekOf(date)
	s.runSync(w, r, workitem.DateRange{From: from, To: to})
}

func (s *Server) runSync(w http.ResponseWriter, r *http.Request, rng workitem.DateRange) {
	dryRun := queryFlag(r, "dry_run")
	force := queryFlag(r, "force")

	days := s.loadDays(r.Context(), rng)

	// A dropped request must not abort an in-flight submission: once a
	// worklog reaches the tracker, the call is awaited and its sync record
	// written, otherwise a retry would submit the same entry twice.
	result, err := s.service.SyncWeek(context.WithoutCancel(r.Context()), days, dryRun, force)
	if !dryRun && s.resolver != nil {
		s.resolver.ClearSession()
	}
	if err != nil {
		if errors.Is(err, reconcile.ErrSyncInFlight) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, BuildResultView(result))
}

func (s *Server) handleValidateIssue(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.PathValue("key"))
	if key == "" {
		http.Error(w, "issue key is required", http.StatusBadRequest)
		return
	}

	validation, err := s.resolver.Validate(r.Context(), key)
	if err != nil {
		http.Error(w, fmt.Sprintf("validate issue: %v", err), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{
		Valid:   validation.Valid,
		Summary: validation.Summary,
		Message: validation.Message,
	})
}

func (s *Server) handleRememberIssueKey(w http.ResponseWriter, r *http.Request) {
	var body issueKeyRequest
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	target, err := workitem.ParseSyncTarget(body.Target)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.store.RememberIssueKey(target, body.IssueKey); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleManualCreate(w http.ResponseWriter, r *http.Request) {
	var body manualItemRequest
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	date, err := timeutil.ParseDay(strings.TrimSpace(body.Date))
	if err != nil {
		http.Error(w, "invalid date format (expected YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	id, err := s.store.InsertManualItem(workitem.ActivityRecord{
		Source:      workitem.SourceManual,
		Date:        date,
		Hours:       body.Hours,
		Title:       body.Title,
		Description: body.Description,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleManualDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.PathValue("id")), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid manual item id", http.StatusBadRequest)
		return
	}

	deleted, err := s.store.DeleteManualItem(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "manual item not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseRange(fromRaw, toRaw string) (workitem.DateRange, error) {
	now := time.Now()
	from, to := timeutil.WeekOf(now)

	if strings.TrimSpace(fromRaw) != "" {
		parsed, err := timeutil.ParseDay(strings.TrimSpace(fromRaw))
		if err != nil {
			return workitem.DateRange{}, fmt.Errorf("invalid from date (expected YYYY-MM-DD)")
		}
		from = parsed
	}
	if strings.TrimSpace(toRaw) != "" {
		parsed, err := timeutil.ParseDay(strings.TrimSpace(toRaw))
		if err != nil {
			return workitem.DateRange{}, fmt.Errorf("invalid to date (expected YYYY-MM-DD)")
		}
		to = parsed
	}
	if to.Before(from) {
		return workitem.DateRange{}, fmt.Errorf("to date is before from date")
	}
	return workitem.DateRange{From: from, To: to}, nil
}

func queryFlag(r *http.Request, name string) bool {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	return value == "1" || strings.EqualFold(value, "true")
}

func decodeJSON(r *http.Request, out any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
