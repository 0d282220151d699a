package scriptanalysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castingai/internal/apierr"
	"castingai/internal/completion"
)

const sampleScript = `INT. COFFEE SHOP - DAY

A cramped downtown coffee shop in Mumbai. JESS, late twenties, sits alone.

JESS
I can't believe you lied to me again.

MARCUS
I was scared. I didn't know how else to tell you I love you.

JESS
You said you were certain this would work. I trusted you.

INT. COFFEE SHOP - LATER

MARCUS
(quietly)
I'm sorry. I really am sorry.

JESS
I know. I forgive you.
`

type stubProvider struct {
	resp completion.Response
	err  error
}

func (s stubProvider) Complete(ctx context.Context, req completion.Request) (completion.Response, error) {
	return s.resp, s.err
}

func (s stubProvider) Stream(ctx context.Context, req completion.Request) (<-chan completion.Chunk, error) {
	return nil, nil
}

func TestExtractScenesSplitsOnSceneHeadings(t *testing.T) {
	scenes := extractScenes(sampleScript)
	require.Len(t, scenes, 2)
	assert.Contains(t, scenes[0].heading, "COFFEE SHOP")
}

func TestExtractCharacterNamesFindsSpeakers(t *testing.T) {
	names := extractCharacterNames(sampleScript)
	assert.ElementsMatch(t, []string{"JESS", "MARCUS"}, names)
}

func TestExtractDialoguesGroupsLinesByCharacter(t *testing.T) {
	dialogues := extractDialogues(sampleScript)
	require.NotEmpty(t, dialogues)
	var jessLines int
	for _, d := range dialogues {
		if d.character == "JESS" {
			jessLines++
		}
	}
	assert.Positive(t, jessLines)
}

func TestAnalyzeProducesCastingRequirementsPerCharacter(t *testing.T) {
	p := New(nil, "")
	result, err := p.Analyze(context.Background(), sampleScript)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalCharacters)
	assert.Len(t, result.Requirements, 2)
	for _, req := range result.Requirements {
		assert.NotEmpty(t, req.CharacterName)
		assert.NotEmpty(t, req.LanguageRequirements)
	}
}

func TestDescribeCharacterUsesCompletionProviderWhenAvailable(t *testing.T) {
	stub := stubProvider{resp: completion.Response{Content: "A determined young woman navigating betrayal."}}
	p := New(stub, "claude-3-haiku")

	desc, err := p.describeCharacter(context.Background(), "JESS", "I can't believe you lied to me again.", []string{"confident"}, []string{"angry"})

	require.NoError(t, err)
	assert.Equal(t, "A determined young woman navigating betrayal.", desc)
}

func TestDescribeCharacterFallsBackWhenProviderUnavailable(t *testing.T) {
	stub := stubProvider{err: apierr.New(apierr.ProviderUnavailable, "rate limited")}
	p := New(stub, "claude-3-haiku")

	desc, err := p.describeCharacter(context.Background(), "JESS", "some dialogue", []string{"caring"}, nil)

	require.NoError(t, err)
	assert.Contains(t, desc, "caring")
}

func TestDescribeCharacterFallsBackWithNoTraitsOrEmotions(t *testing.T) {
	desc := fallbackDescription("EXTRA", nil, nil)
	assert.Equal(t, "EXTRA is a character in this script.", desc)
}

func TestExtractTraitsCapsAtFive(t *testing.T) {
	dialogue := "I love you, I care, I think, I realize, I know, I believe, you are brave and kind and gentle"
	traits := extractTraits(dialogue)
	assert.LessOrEqual(t, len(traits), 5)
}

func TestDetectGenreDefaultsToDrama(t *testing.T) {
	genre := detectGenre("Nothing remarkable happens here at all.")
	assert.Equal(t, "drama", genre)
}

func TestExtractSettingDefaultsToContemporary(t *testing.T) {
	setting := extractSetting("A quiet afternoon with no location cues.")
	assert.Equal(t, "Contemporary", setting)
}

func TestGenerateCastingRequirementsAddsActionSkillsForActionGenre(t *testing.T) {
	characters := []Character{{Name: "HERO", Importance: Lead}}
	reqs := generateCastingRequirements(characters, "action", "Contemporary")
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].RequiredSkills, "stunt work")
	assert.Equal(t, "full-time", reqs[0].AvailabilityNeeds)
}
