package main

import (
	"github.com/liamcoop/precheck/criteria"
	"github.com/liamcoop/precheck/projects"
	"github.com/liamcoop/precheck/resolver"
	"github.com/liamcoop/precheck/rules"
	"github.com/liamcoop/precheck/rulesets"
)

// API request and response models

// RulesetSummary is one entry of the ruleset listing
type RulesetSummary struct {
	ID           string `json:"ruleset_id" example:"DE_USTG"`
	Name         string `json:"name" example:"German VAT Act invoice requirements"`
	Jurisdiction string `json:"jurisdiction" example:"DE"`
	Version      string `json:"version" example:"2024.1"`
	Features     int    `json:"features" example:"14"`
} // @name RulesetSummary

// RulesetsListResponse represents the response for listing rulesets
type RulesetsListResponse struct {
	Rulesets []RulesetSummary `json:"rulesets"`
} // @name RulesetsListResponse

func summarize(rs rulesets.Ruleset) RulesetSummary {
	return RulesetSummary{
		ID:           rs.ID,
		Name:         rs.Name,
		Jurisdiction: rs.Jurisdiction,
		Version:      rs.Version,
		Features:     len(rs.Features),
	}
}

// PrecheckRequest represents the request body for a precheck run
type PrecheckRequest struct {
	RulesetID string       `json:"ruleset_id" example:"DE_USTG" binding:"required"`
	Fields    rules.Fields `json:"fields" binding:"required"`
} // @name PrecheckRequest

// EvaluateCriteriaRequest represents the request body for evaluating custom criteria
type EvaluateCriteriaRequest struct {
	ProjectID      string                   `json:"project_id,omitempty" example:"grant-2025"`
	RulesetID      string                   `json:"ruleset_id,omitempty" example:"DE_USTG"`
	ProjectContext *criteria.ProjectContext `json:"project_context,omitempty"`
	DocumentData   map[string]any           `json:"document_data" binding:"required"`
} // @name EvaluateCriteriaRequest

// EvaluateCriteriaResponse lists the criterion results in priority order
type EvaluateCriteriaResponse struct {
	Results     []criteria.CriterionResult `json:"results"`
	Passed      bool                       `json:"passed"`
	NeedsReview bool                       `json:"needs_review"`
} // @name EvaluateCriteriaResponse

func summarizeCriteria(results []criteria.CriterionResult) EvaluateCriteriaResponse {
	resp := EvaluateCriteriaResponse{Results: results, Passed: true}
	if resp.Results == nil {
		resp.Results = []criteria.CriterionResult{}
	}
	for _, r := range results {
		if !r.Passed && r.Severity == criteria.SeverityError {
			resp.Passed = false
		}
		if r.NeedsReview {
			resp.NeedsReview = true
		}
	}
	return resp
}

// ResolveRequest represents the request body for resolving candidate values
type ResolveRequest struct {
	RuleResults   map[string]resolver.SourceValue `json:"rule_results,omitempty"`
	LLMResults    map[string]resolver.SourceValue `json:"llm_results,omitempty"`
	UserOverrides map[string]resolver.SourceValue `json:"user_overrides,omitempty"`
} // @name ResolveRequest

// ResolveResponse carries one resolved value per field
type ResolveResponse struct {
	Resolved  map[string]resolver.ResolvedValue `json:"resolved"`
	Conflicts []string                          `json:"conflicts"`
} // @name ResolveResponse

func summarizeResolution(resolved map[string]resolver.ResolvedValue) ResolveResponse {
	resp := ResolveResponse{Resolved: resolved, Conflicts: []string{}}
	for _, name := range resolver.Fields(resolved) {
		if resolved[name].HasConflict() {
			resp.Conflicts = append(resp.Conflicts, name)
		}
	}
	return resp
}

// DocumentCheckRequest represents the request body for a full document check
type DocumentCheckRequest struct {
	RulesetID      string                          `json:"ruleset_id" example:"DE_USTG" binding:"required"`
	ProjectID      string                          `json:"project_id,omitempty" example:"grant-2025"`
	ProjectContext *criteria.ProjectContext        `json:"project_context,omitempty"`
	Fields         rules.Fields                    `json:"fields" binding:"required"`
	DocumentData   map[string]any                  `json:"document_data,omitempty"`
	LLMValues      map[string]resolver.SourceValue `json:"llm_values,omitempty"`
	UserOverrides  map[string]resolver.SourceValue `json:"user_overrides,omitempty"`
} // @name DocumentCheckRequest

// DocumentCheckResponse combines the precheck, the criteria and the resolved values
type DocumentCheckResponse struct {
	Precheck rules.PrecheckResult     `json:"precheck"`
	Criteria EvaluateCriteriaResponse `json:"criteria"`
	Values   ResolveResponse          `json:"values"`
} // @name DocumentCheckResponse

// ProjectRequest represents the request body for creating or updating a project
type ProjectRequest struct {
	Name      string `json:"name" example:"Research grant 2025" binding:"required"`
	StartDate string `json:"start_date,omitempty" example:"2025-01-01"`
	EndDate   string `json:"end_date,omitempty" example:"2025-12-31"`
} // @name ProjectRequest

// ProjectsListResponse represents the response for listing projects
type ProjectsListResponse struct {
	Projects []projects.Project `json:"projects"`
} // @name ProjectsListResponse

// CriteriaListResponse represents the response for listing criteria
type CriteriaListResponse struct {
	Criteria []*criteria.Criterion `json:"criteria"`
} // @name CriteriaListResponse

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"invalid request body"`
	Details string `json:"details,omitempty" example:"unexpected EOF"`
} // @name ErrorResponse

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status" example:"healthy"`
	Store    string `json:"store" example:"postgres"`
	Rulesets int    `json:"rulesets" example:"3"`
	Projects int    `json:"projects" example:"2"`
	Error    string `json:"error,omitempty"`
} // @name HealthResponse
