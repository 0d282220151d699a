// Package domain holds the shared value types used across every component.
// It depends on nothing else in the module, mirroring the teacher's
// dependency-free internal/persistence value types.
package domain

import "time"

// TalentStatus is the lifecycle state of a TalentProfile.
type TalentStatus string

const (
	TalentActive   TalentStatus = "active"
	TalentArchived TalentStatus = "archived"
)

// Range is an inclusive numeric range, used for age, height, and budget.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Overlap returns the overlap length between r and o, or 0 if disjoint.
func (r Range) Overlap(o Range) float64 {
	lo := r.Min
	if o.Min > lo {
		lo = o.Min
	}
	hi := r.Max
	if o.Max < hi {
		hi = o.Max
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// Disjoint reports whether r and o share no overlap at all.
func (r Range) Disjoint(o Range) bool {
	return r.Max < o.Min || o.Max < r.Min
}

// TalentProfile is the immutable-id, admin-mutated casting profile record.
// The profile store itself is an out-of-scope external collaborator (§6);
// this struct is the shape the core reads and projects into vector metadata.
type TalentProfile struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Age             int          `json:"age"`
	Gender          string       `json:"gender"`
	Location        string       `json:"location"`
	Languages       []string     `json:"languages"`
	Skills          []string     `json:"skills"`
	ExperienceYears int          `json:"experience_years"`
	HeightCM        float64      `json:"height_cm"`
	Availability    Range        `json:"availability"`
	Budget          Range        `json:"budget"`
	Bio             string       `json:"bio"`
	Status          TalentStatus `json:"status"`
	Followers       int          `json:"followers"`
	Rating          float64      `json:"rating"`
	AwardsCount     int          `json:"awards_count"`
	RecentProjects  []Project    `json:"recent_projects"`
	Trending        bool         `json:"trending"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Project is a past or current body of work for a talent, used by recency
// and performance-boost ranking factors.
type Project struct {
	Title     string    `json:"title"`
	Genre     string    `json:"genre"`
	Date      time.Time `json:"date"`
	BoxOffice float64   `json:"box_office,omitempty"`
	Award     bool      `json:"award,omitempty"`
}

// SearchableText returns the canonical text used for keyword overlay (§4.4.2).
func (t TalentProfile) SearchableText() string {
	s := t.Name + " " + t.Bio
	for _, v := range t.Skills {
		s += " " + v
	}
	for _, v := range t.Languages {
		s += " " + v
	}
	return s
}

// VectorMetadata flattens a profile to the scalar/sequence map the vector
// index's metadata filters operate over (§3 Vector Record invariant).
func (t TalentProfile) VectorMetadata() map[string]string {
	return map[string]string{
		"talent_id": t.ID,
		"name":      t.Name,
		"gender":    t.Gender,
		"location":  t.Location,
		"status":    string(t.Status),
	}
}

// Embedding is a fixed-dimension, unit-norm vector bound to a content hash.
type Embedding struct {
	SourceID    string    `json:"source_id"`
	ContentHash string    `json:"content_hash"`
	Vector      []float32 `json:"vector"`
}

// Role identifies who produced a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one message in a Session's ordered log (§3).
type Turn struct {
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	Timestamp  time.Time      `json:"timestamp"`
	Importance float64        `json:"importance"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Intent is the closed set of conversational intents (§4.7).
type Intent string

const (
	IntentSearchTalent          Intent = "search_talent"
	IntentViewProfile           Intent = "view_profile"
	IntentScheduleAudition      Intent = "schedule_audition"
	IntentAnalyzeScript         Intent = "analyze_script"
	IntentCheckAvailability     Intent = "check_availability"
	IntentDiscussBudget         Intent = "discuss_budget"
	IntentRequestRecommendation Intent = "request_recommendation"
	IntentCompareTalents        Intent = "compare_talents"
	IntentContractNegotiation   Intent = "contract_negotiation"
	IntentFeedback              Intent = "feedback"
	IntentTechnicalSupport      Intent = "technical_support"
	IntentGeneralInquiry        Intent = "general_inquiry"
)

// Entity is a typed, normalized slot extracted from an utterance.
type Entity struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// IntentResult is the output of NLP analysis (§4.7 contract).
type IntentResult struct {
	Intent     Intent            `json:"intent"`
	Confidence float64           `json:"confidence"`
	Entities   []Entity          `json:"entities"`
	Sentiment  float64           `json:"sentiment"`
	Urgency    float64           `json:"urgency"`
	Domain     string            `json:"domain"`
	Raw        map[string]string `json:"-"`
}

// SearchCriteria is the structured filter set derived from entities/request
// body used to pre-derive metadata filters for the vector query (§4.4.1).
type SearchCriteria struct {
	Gender            string
	Location          string
	Languages         []string
	RequiredKeywords  []string
	AgeRange          *Range
	HeightRangeCM     *Range
	AvailabilityStart *time.Time
	AvailabilityEnd   *time.Time
	BudgetRange       *Range
}

// RankedResult is one scored candidate returned by hybrid search / ranking.
type RankedResult struct {
	TalentID        string             `json:"talent_id"`
	CompositeScore  float64            `json:"composite_score"`
	SubScores       map[string]float64 `json:"sub_scores"`
	Rank            int                `json:"rank"`
	Explanation     string             `json:"explanation"`
	DiversityBucket string             `json:"-"`
}

// DegradedSignal names a hybrid-search stage that fell back to a default
// instead of failing the whole request (§4.4 failure semantics, §7).
type DegradedSignal string
