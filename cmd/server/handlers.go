package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/liamcoop/precheck/criteria"
	"github.com/liamcoop/precheck/projects"
	"github.com/liamcoop/precheck/resolver"
	"github.com/liamcoop/precheck/rules"
	"github.com/liamcoop/precheck/rulesets"
)

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "healthy",
		Store:    "memory",
		Rulesets: len(rulesets.IDs()),
		Projects: len(s.projects.List()),
	}
	if s.db != nil {
		resp.Store = "postgres"
		if err := s.db.PingContext(r.Context()); err != nil {
			resp.Status = "unhealthy"
			resp.Error = err.Error()
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRulesets(w http.ResponseWriter, r *http.Request) {
	resp := RulesetsListResponse{Rulesets: []RulesetSummary{}}
	for _, id := range rulesets.IDs() {
		rs, _ := rulesets.Get(id)
		resp.Rulesets = append(resp.Rulesets, summarize(rs))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRuleset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "rulesetId")
	rs, ok := rulesets.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "ruleset not found", nil)
		return
	}
	respondJSON(w, http.StatusOK, rs)
}

// Precheck handler
func (s *Server) handlePrecheck(w http.ResponseWriter, r *http.Request) {
	var req PrecheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.RulesetID == "" {
		respondError(w, http.StatusBadRequest, "ruleset_id is required", nil)
		return
	}

	result, err := s.precheck(req.RulesetID, req.Fields)
	if err != nil {
		respondError(w, http.StatusNotFound, "ruleset not found", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) precheck(rulesetID string, fields rules.Fields) (rules.PrecheckResult, error) {
	start := time.Now()
	result, err := rules.Precheck(rulesetID, fields)
	if err != nil {
		return rules.PrecheckResult{}, err
	}
	s.metrics.ObservePrecheck(rulesetID, result.Passed, time.Since(start))
	return result, nil
}

// Criteria handlers

func (s *Server) handleListCriteria(w http.ResponseWriter, r *http.Request) {
	list, err := s.criteria.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list criteria", err)
		return
	}
	if list == nil {
		list = []*criteria.Criterion{}
	}
	respondJSON(w, http.StatusOK, CriteriaListResponse{Criteria: list})
}

func (s *Server) handleCreateCriterion(w http.ResponseWriter, r *http.Request) {
	var c criteria.Criterion
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := s.criteria.Add(&c); err != nil {
		respondError(w, criteriaStatus(err), "failed to add criterion", err)
		return
	}
	respondJSON(w, http.StatusCreated, &c)
}

func (s *Server) handleGetCriterion(w http.ResponseWriter, r *http.Request) {
	c, err := s.criteria.Get(chi.URLParam(r, "criterionId"))
	if err != nil {
		respondError(w, criteriaStatus(err), "criterion not found", err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateCriterion(w http.ResponseWriter, r *http.Request) {
	var c criteria.Criterion
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	c.ID = chi.URLParam(r, "criterionId")

	if err := s.criteria.Update(&c); err != nil {
		respondError(w, criteriaStatus(err), "failed to update criterion", err)
		return
	}
	respondJSON(w, http.StatusOK, &c)
}

func (s *Server) handleDeleteCriterion(w http.ResponseWriter, r *http.Request) {
	if err := s.criteria.Delete(chi.URLParam(r, "criterionId")); err != nil {
		respondError(w, criteriaStatus(err), "failed to delete criterion", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvaluateCriteria(w http.ResponseWriter, r *http.Request) {
	var req EvaluateCriteriaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.DocumentData == nil {
		respondError(w, http.StatusBadRequest, "document_data is required", nil)
		return
	}

	results, err := s.evaluate(req.ProjectID, req.RulesetID, req.ProjectContext, req.DocumentData)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "evaluation failed", err)
		return
	}
	respondJSON(w, http.StatusOK, summarizeCriteria(results))
}

// criteriaEngine returns the engine of a registered project. Unregistered
// projects get an engine over the inline context, if any.
func (s *Server) criteriaEngine(projectID string, inline *criteria.ProjectContext) *criteria.Engine {
	if inline == nil && projectID != "" {
		if en, err := s.projects.Engine(projectID); err == nil {
			return en
		}
	}
	var pc criteria.ProjectContext
	if inline != nil {
		pc = *inline
	}
	return criteria.NewEngine(pc, criteria.WithFailurePolicy(s.policy))
}

func (s *Server) evaluate(projectID, rulesetID string, inline *criteria.ProjectContext, data map[string]any) ([]criteria.CriterionResult, error) {
	en := s.criteriaEngine(projectID, inline)
	results, err := s.criteria.Evaluate(en, projectID, rulesetID, data)
	if err != nil {
		return nil, err
	}
	for _, res := range results {
		s.metrics.IncrementCriterion(string(res.Status), string(res.Severity))
	}
	return results, nil
}

func criteriaStatus(err error) int {
	switch {
	case errors.Is(err, criteria.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, criteria.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, criteria.ErrInvalidConfig), errors.Is(err, criteria.ErrUnknownLogicType):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Resolution handlers

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	respondJSON(w, http.StatusOK, summarizeResolution(s.resolve(req.RuleResults, req.LLMResults, req.UserOverrides)))
}

func (s *Server) resolve(rule, llm, user map[string]resolver.SourceValue) map[string]resolver.ResolvedValue {
	resolved := s.resolver.MergeResults(rule, llm, user)
	for _, v := range resolved {
		s.metrics.IncrementResolution(string(v.ConflictStatus), string(v.Source))
	}
	return resolved
}

// ruleSourceValues turns the accepted precheck values into RULE candidates.
func ruleSourceValues(result rules.PrecheckResult, fields rules.Fields) map[string]resolver.SourceValue {
	out := make(map[string]resolver.SourceValue)
	for id, v := range result.Values() {
		sv := resolver.SourceValue{Source: resolver.SourceRule, Value: v}
		if check, ok := result.Check(id); ok {
			sv.Reasoning = check.Message
		}
		if f, ok := fields[id]; ok && f.Confidence > 0 {
			c := f.Confidence
			sv.Confidence = &c
		}
		out[id] = sv
	}
	return out
}

// Document check handler: precheck and criteria run in parallel, then the
// accepted rule values are resolved against the model and user values.
func (s *Server) handleDocumentCheck(w http.ResponseWriter, r *http.Request) {
	var req DocumentCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.RulesetID == "" {
		respondError(w, http.StatusBadRequest, "ruleset_id is required", nil)
		return
	}
	if _, ok := rulesets.Get(req.RulesetID); !ok {
		respondError(w, http.StatusNotFound, "ruleset not found", rules.ErrUnknownRuleset)
		return
	}

	data := make(map[string]any, len(req.Fields)+len(req.DocumentData))
	for id, f := range req.Fields {
		data[id] = f.Value
	}
	for k, v := range req.DocumentData {
		data[k] = v
	}

	var (
		pre     rules.PrecheckResult
		results []criteria.CriterionResult
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		pre, err = s.precheck(req.RulesetID, req.Fields)
		return err
	})
	g.Go(func() error {
		var err error
		results, err = s.evaluate(req.ProjectID, req.RulesetID, req.ProjectContext, data)
		return err
	})
	if err := g.Wait(); err != nil {
		respondError(w, http.StatusInternalServerError, "document check failed", err)
		return
	}

	resolved := s.resolve(ruleSourceValues(pre, req.Fields), req.LLMValues, req.UserOverrides)
	respondJSON(w, http.StatusOK, DocumentCheckResponse{
		Precheck: pre,
		Criteria: summarizeCriteria(results),
		Values:   summarizeResolution(resolved),
	})
}

// Project handlers

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ProjectsListResponse{Projects: s.projects.List()})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.projects.Get(chi.URLParam(r, "projectId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "project not found", err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handlePutProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	p := projects.Project{ID: chi.URLParam(r, "projectId"), Name: req.Name}
	var err error
	if p.StartDate, err = parseDate(req.StartDate); err != nil {
		respondError(w, http.StatusBadRequest, "invalid start_date", err)
		return
	}
	if p.EndDate, err = parseDate(req.EndDate); err != nil {
		respondError(w, http.StatusBadRequest, "invalid end_date", err)
		return
	}
	if err := projects.ValidateProject(p); err != nil {
		respondError(w, http.StatusBadRequest, "invalid project", err)
		return
	}

	saved, err := s.projects.Put(p)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save project", err)
		return
	}
	respondJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	err := s.projects.Delete(chi.URLParam(r, "projectId"))
	if errors.Is(err, projects.ErrNotFound) {
		respondError(w, http.StatusNotFound, "project not found", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	respondJSON(w, status, resp)
}
