// Pattern tables for intent/entity extraction, written as plain Go data per
// SPEC_FULL.md §4.7b ("not reflection-driven"), in the explicit
// keyword/regex-table style of the pack's
// services/trace/agent/control/intent.go classifier (compiled-once regex
// slices, plain string slices for keyword buckets).
package nlp

import "regexp"

// intentPattern is one entry of the closed intent table (spec §4.7).
type intentPattern struct {
	intent           string
	keywords         []string
	regexes          []*regexp.Regexp
	relevantEntities []string
	examples         []string
}

var intentPatterns = []intentPattern{
	{
		intent:   "search_talent",
		keywords: []string{"find", "search", "looking for", "need an actor", "need a talent", "cast for", "who can play"},
		regexes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(find|search|looking for)\b.*\b(actor|actress|talent|performer)\b`),
		},
		relevantEntities: []string{"age", "gender", "location", "skills", "role_type"},
		examples: []string{
			"find me an actor for a lead role",
			"I need a talent who speaks Spanish",
			"looking for a stunt performer in Atlanta",
		},
	},
	{
		intent:   "view_profile",
		keywords: []string{"show me", "view profile", "tell me about", "who is"},
		regexes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(show|view|pull up)\b.*\bprofile\b`),
		},
		relevantEntities: []string{"names"},
		examples: []string{
			"show me the profile for Jordan Lee",
			"who is this talent",
		},
	},
	{
		intent:   "schedule_audition",
		keywords: []string{"schedule an audition", "book an audition", "set up a time", "audition slot"},
		regexes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bschedul\w*\b.*\baudition\b`),
		},
		relevantEntities: []string{"date", "names"},
		examples: []string{
			"schedule an audition for next Tuesday",
			"can we book an audition slot",
		},
	},
	{
		intent:   "analyze_script",
		keywords: []string{"analyze this script", "break down the script", "extract characters", "read this screenplay"},
		regexes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(analyz|break ?down)\w*\b.*\bscript\b`),
		},
		relevantEntities: []string{},
		examples: []string{
			"can you analyze this script and list the characters",
			"break down the screenplay for casting requirements",
		},
	},
	{
		intent:   "check_availability",
		keywords: []string{"are they available", "check availability", "is she free", "is he free"},
		regexes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bavailab\w*\b`),
		},
		relevantEntities: []string{"date", "names"},
		examples: []string{
			"is this talent available next month",
			"check availability for the shoot dates",
		},
	},
	{
		intent:   "discuss_budget",
		keywords: []string{"budget", "rate", "day rate", "how much", "cost"},
		regexes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(budget|day rate|how much|cost)\b`),
		},
		relevantEntities: []string{},
		examples: []string{
			"what's the budget range for this role",
			"how much would this talent cost per day",
		},
	},
	{
		intent:   "request_recommendation",
		keywords: []string{"recommend", "suggest", "who would you pick", "any suggestions"},
		regexes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(recommend|suggest)\w*\b`),
		},
		relevantEntities: []string{"role_type", "project_type"},
		examples: []string{
			"can you recommend someone for this role",
			"any suggestions for the lead character",
		},
	},
	{
		intent:   "compare_talents",
		keywords: []string{"compare", "versus", "which is better", "side by side"},
		regexes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bcompar\w*\b|\bvs\.?\b|\bversus\b`),
		},
		relevantEntities: []string{"names"},
		examples: []string{
			"compare these two talents",
			"which one is better for the role",
		},
	},
	{
		intent:   "contract_negotiation",
		keywords: []string{"contract", "negotiate", "terms", "sign", "agreement"},
		regexes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(contract|negotiat\w*|agreement)\b`),
		},
		relevantEntities: []string{},
		examples: []string{
			"let's negotiate the contract terms",
			"what are the standard agreement terms",
		},
	},
	{
		intent:   "feedback",
		keywords: []string{"feedback", "this was wrong", "great job", "not helpful", "that's incorrect"},
		regexes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bfeedback\b`),
		},
		relevantEntities: []string{},
		examples: []string{
			"this recommendation was not helpful",
			"great job on that search",
		},
	},
	{
		intent:   "technical_support",
		keywords: []string{"not working", "error", "bug", "broken", "can't log in", "help me fix"},
		regexes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(error|bug|broken|not working|crash)\b`),
		},
		relevantEntities: []string{},
		examples: []string{
			"the search is not working",
			"I'm getting an error when I log in",
		},
	},
	{
		intent:   "general_inquiry",
		keywords: []string{"hello", "hi", "what can you do", "help"},
		regexes:  nil,
		relevantEntities: []string{},
		examples: []string{
			"hi there",
			"what can you help me with",
		},
	},
}

// locationGazetteer and languageGazetteer are small representative lookup
// tables; a production deployment would load these from a managed data
// source, but the extraction algorithm itself is unaffected by table size.
var locationGazetteer = []string{
	"atlanta", "los angeles", "new york", "chicago", "london", "toronto",
	"vancouver", "austin", "miami", "san francisco", "seattle", "boston",
}

var languageGazetteer = []string{
	"english", "spanish", "french", "german", "mandarin", "cantonese",
	"japanese", "korean", "portuguese", "italian", "arabic", "hindi",
}

var skillVerbs = []string{
	"acting", "singing", "dancing", "stunts", "improv", "voice acting",
	"martial arts", "horseback riding", "sword fighting", "comedy",
}

var roleTypes = []string{
	"lead", "supporting", "extra", "voice over", "stunt double", "background",
}

var projectTypes = []string{
	"feature film", "tv series", "commercial", "short film", "documentary", "music video",
}

var experienceLevels = []string{
	"beginner", "intermediate", "experienced", "veteran", "newcomer",
}

var ageRangeRe = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:-|to)\s*(\d{1,2})\b`)
var ageExactRe = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:years?[ -]old|yo)\b`)
var genderRe = regexp.MustCompile(`(?i)\b(male|female|man|woman|non-binary|nonbinary)\b`)
var dateRelativeRe = regexp.MustCompile(`(?i)\b(today|tomorrow|next week|next month|this weekend)\b`)
var dateAbsoluteRe = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
var namesRe = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s[A-Z][a-z]+)+)\b`)
