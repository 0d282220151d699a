package api

import (
	"time"

	"castingai/internal/domain"
	"castingai/internal/orchestrator"
	"castingai/internal/scriptanalysis"
)

// chatRequest is the `POST /conversation/chat` and `/chat/stream` body.
type chatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Text      string `json:"text" validate:"required,min=1,max=4000"`
}

// chatResponse is the `POST /conversation/chat` body.
type chatResponse struct {
	SessionID      string                 `json:"session_id"`
	Intent         domain.Intent          `json:"intent"`
	Confidence     float64                `json:"confidence"`
	Content        string                 `json:"content"`
	SearchResults  []domain.RankedResult  `json:"search_results,omitempty"`
	ScriptAnalysis *scriptanalysis.Result `json:"script_analysis,omitempty"`
	Degraded       []domain.DegradedSignal `json:"degraded,omitempty"`
	Variant        string                  `json:"variant,omitempty"`
}

func toChatResponse(resp orchestrator.Response) chatResponse {
	return chatResponse{
		SessionID:      resp.SessionID,
		Intent:         resp.Intent,
		Confidence:     resp.Confidence,
		Content:        resp.Content,
		SearchResults:  resp.SearchResults,
		ScriptAnalysis: resp.ScriptAnalysis,
		Degraded:       resp.Degraded,
		Variant:        resp.Variant,
	}
}

// conversationView is the `GET /conversation/{id}` body: the session's
// current short-term-memory turn log.
type conversationView struct {
	SessionID string        `json:"session_id"`
	Turns     []domain.Turn `json:"turns"`
}

// semanticSearchRequest is the `POST /search/talent/semantic` body.
type semanticSearchRequest struct {
	Query             string   `json:"query" validate:"required,min=1"`
	Gender            string   `json:"gender,omitempty"`
	Location          string   `json:"location,omitempty"`
	Languages         []string `json:"languages,omitempty"`
	RequiredKeywords  []string `json:"required_keywords,omitempty"`
	AgeMin            *float64 `json:"age_min,omitempty"`
	AgeMax            *float64 `json:"age_max,omitempty"`
	HeightMinCM       *float64 `json:"height_min_cm,omitempty"`
	HeightMaxCM       *float64 `json:"height_max_cm,omitempty"`
	BudgetMin         *float64 `json:"budget_min,omitempty"`
	BudgetMax         *float64 `json:"budget_max,omitempty"`
	AvailabilityStart *time.Time `json:"availability_start,omitempty"`
	AvailabilityEnd   *time.Time `json:"availability_end,omitempty"`
	Limit             int      `json:"limit,omitempty" validate:"omitempty,min=1,max=200"`
}

func (req semanticSearchRequest) toCriteria() domain.SearchCriteria {
	c := domain.SearchCriteria{
		Gender:            req.Gender,
		Location:          req.Location,
		Languages:         req.Languages,
		RequiredKeywords:  req.RequiredKeywords,
		AvailabilityStart: req.AvailabilityStart,
		AvailabilityEnd:   req.AvailabilityEnd,
	}
	if req.AgeMin != nil && req.AgeMax != nil {
		c.AgeRange = &domain.Range{Min: *req.AgeMin, Max: *req.AgeMax}
	}
	if req.HeightMinCM != nil && req.HeightMaxCM != nil {
		c.HeightRangeCM = &domain.Range{Min: *req.HeightMinCM, Max: *req.HeightMaxCM}
	}
	if req.BudgetMin != nil && req.BudgetMax != nil {
		c.BudgetRange = &domain.Range{Min: *req.BudgetMin, Max: *req.BudgetMax}
	}
	return c
}

// searchResponse is the body shared by the semantic and similar-talent
// search endpoints.
type searchResponse struct {
	Results  []domain.RankedResult   `json:"results"`
	Degraded []domain.DegradedSignal `json:"degraded,omitempty"`
}

// indexTalentRequest is the `POST /search/index/talent` body.
type indexTalentRequest struct {
	TalentID string            `json:"talent_id" validate:"required"`
	Priority string            `json:"priority,omitempty" validate:"omitempty,oneof=normal high"`
}

// indexStatsResponse is the `GET /search/index/stats` body.
type indexStatsResponse struct {
	Count        int `json:"count"`
	Dimensions   int `json:"dim"`
	ManagerStats managerStatsView `json:"manager_stats"`
}

type managerStatsView struct {
	DeadLetters int `json:"dead_letters"`
	QueueDepth  int `json:"queue_depth"`
}

// analyzeScriptRequest is the `POST /ai/analyze/script` body. The two extract
// flags default false, in which case the handler returns every section;
// setting either one narrows the response to just that section.
type analyzeScriptRequest struct {
	ScriptText          string `json:"script_text" validate:"required,min=1"`
	ExtractCharacters   bool   `json:"extract_characters,omitempty"`
	ExtractRequirements bool   `json:"extract_requirements,omitempty"`
}
