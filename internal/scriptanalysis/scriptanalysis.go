// Package scriptanalysis implements the script analysis pipeline: extracting
// characters from free script text and emitting casting requirements for
// each, per the orchestrator's "analyze_script" routing target (spec §4.11)
// and supplemented from original_source/python-ai-service's
// script_analysis_service.py, which does the same extraction with spaCy +
// regex scene-heading detection plus an OpenAI description call. This
// rewrite keeps the regex scene/dialogue parsing but replaces the spaCy
// trait pass and the ad hoc ChatCompletion call with the shared
// completion.Provider abstraction (C11's own dependency), so the only model
// backend this package knows about is the one already wired for chat.
package scriptanalysis

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"castingai/internal/apierr"
	"castingai/internal/completion"
)

// Importance is the relative weight of a character in the script, derived
// from dialogue volume and scene count.
type Importance string

const (
	Lead       Importance = "lead"
	Supporting Importance = "supporting"
	Minor      Importance = "minor"
)

// Character is one character extracted from a script.
type Character struct {
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	Traits           []string   `json:"traits"`
	Emotions         []string   `json:"emotions"`
	AgeRangeMin      int        `json:"age_range_min"`
	AgeRangeMax      int        `json:"age_range_max"`
	HasAgeRange      bool       `json:"has_age_range"`
	Gender           string     `json:"gender"` // "male", "female", "" if undetermined
	Importance       Importance `json:"importance"`
	DialogueCount    int        `json:"dialogue_count"`
	SceneAppearances int        `json:"scene_appearances"`
	Relationships    []string   `json:"relationships"`
}

// CastingRequirement is one generated requirement, one per extracted
// character.
type CastingRequirement struct {
	CharacterName        string     `json:"character_name"`
	Importance           Importance `json:"importance"`
	Gender               string     `json:"gender"` // "any" if undetermined
	AgeRangeMin          int        `json:"age_range_min"`
	AgeRangeMax          int        `json:"age_range_max"`
	RequiredSkills       []string   `json:"required_skills"`
	PreferredTraits      []string   `json:"preferred_traits"`
	LanguageRequirements []string   `json:"language_requirements"`
	AvailabilityNeeds    string     `json:"availability_needs"`
}

// Result is the full output of analyzing one script.
type Result struct {
	Characters      []Character          `json:"characters"`
	Themes          []string             `json:"themes"`
	Setting         string               `json:"setting"`
	Genre           string               `json:"genre"`
	Requirements    []CastingRequirement `json:"requirements"`
	Suggestions     []string             `json:"suggestions"`
	TotalScenes     int                  `json:"total_scenes"`
	TotalCharacters int                  `json:"total_characters"`
}

var (
	sceneHeadingRe  = regexp.MustCompile(`^(INT\.|EXT\.|INT/EXT\.|I/E\.)\s+[A-Z][A-Z\s\-]+`)
	sceneNumberedRe = regexp.MustCompile(`^SCENE\s+\d+`)
	sceneDigitRe    = regexp.MustCompile(`^\d+\.\s+[A-Z]`)

	characterLineRe = regexp.MustCompile(`^([A-Z][A-Z\s\.]+)(?:\s*\([^)]+\))?\s*$`)

	ageYearsOldRe = regexp.MustCompile(`(?i)(\d{1,2})\s*years?\s*old`)
	ageExactRe    = regexp.MustCompile(`(?i)age\s*(\d{1,2})`)
)

var traitKeywords = map[string][]string{
	"confident":   {"sure", "certain", "know", "believe"},
	"aggressive":  {"fight", "attack", "destroy", "kill"},
	"caring":      {"love", "care", "help", "support"},
	"intelligent": {"think", "understand", "realize", "analyze"},
	"humorous":    {"joke", "laugh", "funny", "hilarious"},
	"mysterious":  {"secret", "hidden", "unknown", "mystery"},
	"romantic":    {"love", "heart", "kiss", "darling"},
	"fearful":     {"afraid", "scared", "fear", "terrified"},
}

var emotionKeywords = map[string][]string{
	"happy":      {"happy", "joy", "glad", "pleased", "delighted"},
	"sad":        {"sad", "cry", "tears", "sorrow", "grief"},
	"angry":      {"angry", "mad", "furious", "rage", "irritated"},
	"fearful":    {"afraid", "scared", "terrified", "frightened"},
	"surprised":  {"surprised", "shocked", "amazed", "astonished"},
	"disgusted":  {"disgusted", "revolted", "repulsed"},
}

var themeKeywords = map[string][]string{
	"love":       {"love", "romance", "heart", "kiss", "passion"},
	"revenge":    {"revenge", "vengeance", "payback", "retribution"},
	"family":     {"family", "mother", "father", "children", "home"},
	"friendship": {"friend", "buddy", "companion", "loyalty"},
	"betrayal":   {"betray", "deceive", "lie", "cheat", "backstab"},
	"redemption": {"redeem", "forgive", "second chance", "apologize"},
	"power":      {"power", "control", "dominate", "rule", "authority"},
	"survival":   {"survive", "alive", "escape", "danger", "threat"},
}

var genreKeywords = map[string][]string{
	"comedy":   {"laugh", "joke", "funny", "hilarious", "humor"},
	"drama":    {"cry", "tears", "emotion", "feel", "heart"},
	"action":   {"fight", "chase", "explosion", "gun", "battle"},
	"thriller": {"suspense", "mystery", "danger", "threat", "fear"},
	"romance":  {"love", "kiss", "heart", "romantic", "passion"},
	"horror":   {"scary", "terrify", "monster", "evil", "blood"},
	"sci-fi":   {"alien", "space", "future", "technology", "robot"},
}

var knownLocations = []string{"mumbai", "delhi", "london", "new york", "paris"}

// Pipeline analyzes scripts. completion may be nil, in which case character
// descriptions fall back to the trait/emotion summary sentence.
type Pipeline struct {
	completion completion.Provider
	model      string
}

func New(provider completion.Provider, model string) *Pipeline {
	return &Pipeline{completion: provider, model: model}
}

// Analyze runs the full pipeline over scriptText.
func (p *Pipeline) Analyze(ctx context.Context, scriptText string) (Result, error) {
	scenes := extractScenes(scriptText)
	names := extractCharacterNames(scriptText)
	dialogues := extractDialogues(scriptText)

	characters := make([]Character, 0, len(names))
	for _, name := range names {
		var charDialogues []string
		for _, d := range dialogues {
			if d.character == name {
				charDialogues = append(charDialogues, d.text)
			}
		}
		var sceneCount int
		for _, s := range scenes {
			if strings.Contains(s.text, name) {
				sceneCount++
			}
		}
		c, err := p.analyzeCharacter(ctx, name, charDialogues, sceneCount, scriptText)
		if err != nil {
			return Result{}, err
		}
		characters = append(characters, c)
	}

	themes := extractThemes(scriptText)
	setting := extractSetting(scriptText)
	genre := detectGenre(scriptText)
	requirements := generateCastingRequirements(characters, genre, setting)
	suggestions := generateSuggestions(characters, requirements, genre)

	return Result{
		Characters:      characters,
		Themes:          themes,
		Setting:         setting,
		Genre:           genre,
		Requirements:    requirements,
		Suggestions:     suggestions,
		TotalScenes:     len(scenes),
		TotalCharacters: len(names),
	}, nil
}

type scene struct {
	heading string
	text    string
}

// extractScenes splits the script into scenes by heading pattern, per
// script_analysis_service.py's _extract_scenes.
func extractScenes(scriptText string) []scene {
	var scenes []scene
	lines := strings.Split(scriptText, "\n")

	var current string
	var body []string
	flush := func() {
		if current != "" {
			scenes = append(scenes, scene{heading: current, text: strings.Join(body, "\n")})
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if sceneHeadingRe.MatchString(trimmed) || sceneNumberedRe.MatchString(trimmed) || sceneDigitRe.MatchString(trimmed) {
			flush()
			current = trimmed
			body = nil
			continue
		}
		if current != "" {
			body = append(body, line)
		}
	}
	flush()
	return scenes
}

// extractCharacterNames finds all-caps lines immediately followed by
// non-all-caps dialogue text, per _extract_characters.
func extractCharacterNames(scriptText string) []string {
	seen := make(map[string]bool)
	var names []string
	lines := strings.Split(scriptText, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		m := characterLineRe.FindStringSubmatch(trimmed)
		if m == nil || i+1 >= len(lines) {
			continue
		}
		next := strings.TrimSpace(lines[i+1])
		if next == "" || next == strings.ToUpper(next) {
			continue
		}
		name := strings.TrimRight(strings.Join(strings.Fields(m[1]), " "), ".")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type dialogueLine struct {
	character string
	text      string
}

// extractDialogues pairs each all-caps character cue with the dialogue
// lines that follow it, per _extract_dialogues.
func extractDialogues(scriptText string) []dialogueLine {
	var dialogues []dialogueLine
	lines := strings.Split(scriptText, "\n")

	var currentChar string
	var buf []string
	flush := func() {
		if currentChar != "" && len(buf) > 0 {
			dialogues = append(dialogues, dialogueLine{character: currentChar, text: strings.Join(buf, " ")})
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && trimmed == strings.ToUpper(trimmed) && !strings.HasPrefix(trimmed, "INT.") && !strings.HasPrefix(trimmed, "EXT.") {
			flush()
			currentChar = strings.TrimRight(trimmed, ".")
			buf = nil
			continue
		}
		if currentChar != "" && trimmed != "" {
			if !(strings.HasPrefix(trimmed, "(") && strings.HasSuffix(trimmed, ")")) {
				buf = append(buf, trimmed)
			}
		}
	}
	flush()
	return dialogues
}

func (p *Pipeline) analyzeCharacter(ctx context.Context, name string, dialogues []string, sceneCount int, fullScript string) (Character, error) {
	allDialogue := strings.Join(dialogues, " ")

	traits := extractTraits(allDialogue)
	emotions := extractEmotions(allDialogue)

	dialogueCount := len(dialogues)
	importance := Minor
	switch {
	case dialogueCount > 50 || sceneCount > 10:
		importance = Lead
	case dialogueCount > 20 || sceneCount > 5:
		importance = Supporting
	}

	ageMin, ageMax, hasAge := extractAgeRange(fullScript, name)
	gender := extractGender(fullScript, name)
	relationships := extractRelationships(fullScript, name)

	description, err := p.describeCharacter(ctx, name, allDialogue, traits, emotions)
	if err != nil {
		return Character{}, err
	}

	return Character{
		Name:             name,
		Description:      description,
		Traits:           traits,
		Emotions:         emotions,
		AgeRangeMin:      ageMin,
		AgeRangeMax:      ageMax,
		HasAgeRange:      hasAge,
		Gender:           gender,
		Importance:       importance,
		DialogueCount:    dialogueCount,
		SceneAppearances: sceneCount,
		Relationships:    relationships,
	}, nil
}

var traitAdjectives = []string{"brave", "smart", "kind", "cruel", "gentle", "tough"}

func extractTraits(dialogue string) []string {
	lower := strings.ToLower(dialogue)
	var traits []string
	keys := sortedKeys(traitKeywords)
	for _, trait := range keys {
		for _, kw := range traitKeywords[trait] {
			if strings.Contains(lower, kw) {
				traits = append(traits, trait)
				break
			}
		}
	}
	for _, adj := range traitAdjectives {
		if strings.Contains(lower, adj) && !contains(traits, adj) {
			traits = append(traits, adj)
		}
	}
	if len(traits) > 5 {
		traits = traits[:5]
	}
	return traits
}

func extractEmotions(dialogue string) []string {
	lower := strings.ToLower(dialogue)
	type count struct {
		name string
		n    int
	}
	var counts []count
	for _, emotion := range sortedKeys(emotionKeywords) {
		n := 0
		for _, kw := range emotionKeywords[emotion] {
			if strings.Contains(lower, kw) {
				n++
			}
		}
		if n > 0 {
			counts = append(counts, count{emotion, n})
		}
	}
	sort.SliceStable(counts, func(i, j int) bool { return counts[i].n > counts[j].n })
	var out []string
	for i, c := range counts {
		if i >= 3 {
			break
		}
		out = append(out, c.name)
	}
	return out
}

// extractAgeRange looks for "N years old" / "age N" mentions anywhere in the
// script. Unlike the original, it does not anchor the regex to the
// character's name (Go's RE2 engine has no unbounded-distance lookaround),
// so this is a script-wide signal rather than a per-character one; callers
// should treat a hit as weak evidence.
func extractAgeRange(script, characterName string) (min, max int, ok bool) {
	if !strings.Contains(script, characterName) {
		return 0, 0, false
	}
	if m := ageYearsOldRe.FindStringSubmatch(script); m != nil {
		age, err := strconv.Atoi(m[1])
		if err == nil {
			return age - 2, age + 2, true
		}
	}
	if m := ageExactRe.FindStringSubmatch(script); m != nil {
		age, err := strconv.Atoi(m[1])
		if err == nil {
			return age - 2, age + 2, true
		}
	}
	return 0, 0, false
}

func extractGender(script, characterName string) string {
	var around strings.Builder
	for _, sentence := range strings.Split(script, ".") {
		if strings.Contains(sentence, characterName) {
			around.WriteString(sentence)
			around.WriteString(" ")
		}
	}
	lower := strings.ToLower(around.String())
	male := countWords(lower, "he", "him", "his")
	female := countWords(lower, "she", "her", "hers")
	switch {
	case male > female*2:
		return "male"
	case female > male*2:
		return "female"
	default:
		return ""
	}
}

func countWords(text string, words ...string) int {
	n := 0
	for _, w := range words {
		re := regexp.MustCompile(`\b` + w + `\b`)
		n += len(re.FindAllString(text, -1))
	}
	return n
}

var relationshipWords = []string{"wife", "husband", "partner", "lover", "mother", "father", "son", "daughter", "brother", "sister"}

func extractRelationships(script, characterName string) []string {
	if !strings.Contains(script, characterName) {
		return nil
	}
	lower := strings.ToLower(script)
	var found []string
	for _, w := range relationshipWords {
		if strings.Contains(lower, w) && !contains(found, w) {
			found = append(found, w)
		}
		if len(found) >= 3 {
			break
		}
	}
	return found
}

func (p *Pipeline) describeCharacter(ctx context.Context, name, dialogue string, traits, emotions []string) (string, error) {
	if p.completion != nil && dialogue != "" {
		sample := dialogue
		if len(sample) > 500 {
			sample = sample[:500]
		}
		prompt := "Based on the following dialogue and traits, write a brief character description for " + name +
			".\n\nTraits: " + joinOrNone(traits) +
			"\nEmotions shown: " + joinOrNone(emotions) +
			"\nSample dialogue: \"" + sample + "\"\n\nWrite a 2-3 sentence character description:"

		resp, err := p.completion.Complete(ctx, completion.Request{
			Model:  p.model,
			System: "You are a casting director analyzing characters.",
			Messages: []completion.Message{
				{Role: "user", Content: prompt},
			},
			MaxTokens:   100,
			Temperature: 0.7,
		})
		if err == nil && strings.TrimSpace(resp.Content) != "" {
			return strings.TrimSpace(resp.Content), nil
		}
		if err != nil {
			if apierr.KindOf(err) == apierr.ProviderUnavailable {
				return fallbackDescription(name, traits, emotions), nil
			}
			return "", err
		}
	}
	return fallbackDescription(name, traits, emotions), nil
}

func fallbackDescription(name string, traits, emotions []string) string {
	var parts []string
	if len(traits) > 0 {
		parts = append(parts, "with "+strings.Join(traits, ", ")+" traits")
	}
	if len(emotions) > 0 {
		parts = append(parts, "showing "+strings.Join(emotions, ", "))
	}
	if len(parts) == 0 {
		return name + " is a character in this script."
	}
	return "A character " + strings.Join(parts, " and ") + "."
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "Not specified"
	}
	return strings.Join(items, ", ")
}

func extractThemes(script string) []string {
	lower := strings.ToLower(script)
	type count struct {
		name string
		n    int
	}
	var counts []count
	for _, theme := range sortedKeys(themeKeywords) {
		n := 0
		for _, kw := range themeKeywords[theme] {
			n += strings.Count(lower, kw)
		}
		if n > 2 {
			counts = append(counts, count{theme, n})
		}
	}
	sort.SliceStable(counts, func(i, j int) bool { return counts[i].n > counts[j].n })
	var out []string
	for i, c := range counts {
		if i >= 3 {
			break
		}
		out = append(out, c.name)
	}
	return out
}

func extractSetting(script string) string {
	lower := strings.ToLower(script)
	for _, loc := range knownLocations {
		if strings.Contains(lower, loc) {
			return strings.Title(loc)
		}
	}
	if m := sceneHeadingRe.FindStringSubmatch(script); m != nil {
		return strings.TrimSpace(strings.TrimPrefix(m[0], m[1]))
	}
	return "Contemporary"
}

func detectGenre(script string) string {
	lower := strings.ToLower(script)
	bestGenre := "drama"
	bestScore := 0
	for _, genre := range sortedKeys(genreKeywords) {
		score := 0
		for _, kw := range genreKeywords[genre] {
			score += strings.Count(lower, kw)
		}
		if score > bestScore {
			bestScore = score
			bestGenre = genre
		}
	}
	return bestGenre
}

func generateCastingRequirements(characters []Character, genre, setting string) []CastingRequirement {
	reqs := make([]CastingRequirement, 0, len(characters))
	for _, c := range characters {
		gender := c.Gender
		if gender == "" {
			gender = "any"
		}
		ageMin, ageMax := 20, 50
		if c.HasAgeRange {
			ageMin, ageMax = c.AgeRangeMin, c.AgeRangeMax
		}

		var skills []string
		switch genre {
		case "action":
			skills = append(skills, "stunt work", "physical fitness")
		case "comedy":
			skills = append(skills, "comedic timing")
		case "musical":
			skills = append(skills, "singing", "dancing")
		}

		languages := []string{"English"}
		if strings.Contains(setting, "Mumbai") || strings.Contains(setting, "India") {
			languages = append(languages, "Hindi")
		}

		availability := "flexible"
		switch c.Importance {
		case Lead:
			availability = "full-time"
		case Supporting:
			availability = "part-time"
		}

		reqs = append(reqs, CastingRequirement{
			CharacterName:        c.Name,
			Importance:           c.Importance,
			Gender:               gender,
			AgeRangeMin:          ageMin,
			AgeRangeMax:          ageMax,
			RequiredSkills:       skills,
			PreferredTraits:      c.Traits,
			LanguageRequirements: languages,
			AvailabilityNeeds:    availability,
		})
	}
	return reqs
}

// generateSuggestions turns the extracted cast and requirements into a short
// list of casting-director-facing notes: gaps worth flagging before a
// breakdown goes out. Has no original_source analogue (script_analysis_
// service.py never generates this kind of note) — a direct answer to
// spec.md's documented `suggestions[]` response field.
func generateSuggestions(characters []Character, requirements []CastingRequirement, genre string) []string {
	var out []string

	var leads, undetermined int
	for _, c := range characters {
		if c.Importance == Lead {
			leads++
		}
		if c.Gender == "" {
			undetermined++
		}
	}

	if leads == 0 && len(characters) > 0 {
		out = append(out, "No character reached lead-level dialogue volume; consider flagging the top role manually.")
	}
	if undetermined > 0 {
		out = append(out, fmt.Sprintf("%d character(s) have no determinable gender from dialogue alone; confirm before casting.", undetermined))
	}
	for _, req := range requirements {
		if len(req.RequiredSkills) > 0 {
			out = append(out, fmt.Sprintf("%s will need %s for this %s role.", req.CharacterName, strings.Join(req.RequiredSkills, " and "), genre))
		}
	}
	if len(characters) > 8 {
		out = append(out, "Large ensemble detected; budget extra time for group chemistry reads.")
	}
	return out
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
