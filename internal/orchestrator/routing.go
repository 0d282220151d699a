package orchestrator

import (
	"fmt"
	"strconv"
	"strings"

	"castingai/internal/completion"
	"castingai/internal/domain"
	"castingai/internal/memory/episodic"
	"castingai/internal/scriptanalysis"
	"castingai/internal/search"
)

// fallbackMessages assembles the completion request's message list from
// recent STM turns plus any relevant LTM items, per spec §4.11 step 4.
func fallbackMessages(req Request, history []domain.Turn, ltmItems []episodic.Memory) []completion.Message {
	messages := make([]completion.Message, 0, len(history)+len(ltmItems)+1)
	for _, t := range history {
		messages = append(messages, completion.Message{Role: string(t.Role), Content: t.Content})
	}
	for _, item := range ltmItems {
		if content, ok := item.Event["content"].(string); ok && content != "" {
			messages = append(messages, completion.Message{Role: "system", Content: "relevant memory: " + content})
		}
	}
	return append(messages, completion.Message{Role: "user", Content: req.Text})
}

func completionRequest(system string, messages []completion.Message) completion.Request {
	return completion.Request{System: system, Messages: messages}
}

// completionCacheModel tags every ModelResponseCache entry from the fallback
// path: completionRequest doesn't pin a specific model name, so there is only
// one logical "model" to key cache entries under here.
const completionCacheModel = "fallback"

// completionCacheKey fingerprints a completion request for ModelResponseCache
// lookups: system prompt plus every message's role and content, joined so
// that two requests only collide if both are identical (§4.2).
func completionCacheKey(system string, messages []completion.Message) string {
	var b strings.Builder
	b.WriteString(system)
	for _, m := range messages {
		b.WriteByte('\x00')
		b.WriteString(m.Role)
		b.WriteByte(':')
		b.WriteString(m.Content)
	}
	return b.String()
}

// criteriaFromEntities derives domain.SearchCriteria from the entities C7
// extracted for a search_talent utterance (spec §4.11 step 4).
func criteriaFromEntities(entities []domain.Entity) domain.SearchCriteria {
	var criteria domain.SearchCriteria
	var languages []string
	var keywords []string

	for _, e := range entities {
		switch e.Type {
		case "gender":
			criteria.Gender = e.Value
		case "location":
			criteria.Location = e.Value
		case "language":
			languages = append(languages, e.Value)
		case "age":
			if r, ok := parseRange(e.Value); ok {
				criteria.AgeRange = &r
			}
		case "skills", "role_type", "project_type", "experience_level":
			keywords = append(keywords, e.Value)
		}
	}
	criteria.Languages = languages
	criteria.RequiredKeywords = keywords
	return criteria
}

// parseRange parses an entity value of the form "min-max" into a
// domain.Range.
func parseRange(value string) (domain.Range, bool) {
	parts := strings.SplitN(value, "-", 2)
	if len(parts) != 2 {
		return domain.Range{}, false
	}
	min, err1 := strconv.ParseFloat(parts[0], 64)
	max, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil {
		return domain.Range{}, false
	}
	return domain.Range{Min: min, Max: max}, true
}

func searchSummary(results []domain.RankedResult) string {
	if len(results) == 0 {
		return "I couldn't find any matching talent for that search."
	}
	n := len(results)
	if n > 3 {
		n = 3
	}
	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = results[i].TalentID
	}
	return fmt.Sprintf("Found %d matches. Top results: %s.", len(results), strings.Join(names, ", "))
}

func scriptSummary(result scriptanalysis.Result) string {
	return fmt.Sprintf("Analyzed the script: %d characters identified across %d scenes.", result.TotalCharacters, result.TotalScenes)
}

func schedulingSummary(talentID string, status search.AvailabilityStatus, score float64) string {
	switch status {
	case search.AvailabilityAvailable:
		return fmt.Sprintf("%s appears available (confidence %.2f).", talentID, score)
	case search.AvailabilityBusy:
		return fmt.Sprintf("%s appears busy during the requested window.", talentID)
	default:
		return fmt.Sprintf("I couldn't confirm %s's availability right now.", talentID)
	}
}

// defaultSystemPrompts is the small static table keyed by (intent, domain)
// spec §4.11 step 4 names for the completion fallback.
func defaultSystemPrompts() map[string]string {
	return map[string]string{
		"view_profile|casting":           "You are a casting assistant. Summarize the requested talent profile concisely.",
		"discuss_budget|casting":         "You are a casting assistant discussing budget and day rates. Be concrete and transparent about ranges.",
		"request_recommendation|casting": "You are a casting assistant making a talent recommendation. Justify the suggestion briefly.",
		"compare_talents|casting":        "You are a casting assistant comparing two or more talents. Be balanced and specific.",
		"contract_negotiation|casting":   "You are a casting assistant discussing contract terms. Do not make binding commitments.",
		"feedback|casting":               "You are a casting assistant receiving feedback. Acknowledge it and ask a clarifying question if useful.",
		"technical_support|casting":      "You are a casting assistant helping with a technical issue. Ask for specifics needed to diagnose it.",
		"general_inquiry|casting":        "You are a casting assistant. Answer helpfully and concisely.",
	}
}

func (o *Orchestrator) systemPromptFor(intent domain.Intent, dom string) string {
	if dom == "" {
		dom = "casting"
	}
	key := string(intent) + "|" + dom
	if prompt, ok := o.systemPrompts[key]; ok {
		return prompt
	}
	return o.systemPrompts["general_inquiry|casting"]
}
