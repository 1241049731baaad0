package agents

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStages_Order(t *testing.T) {
	stages := Stages()
	require.Len(t, stages, NumStages)
	assert.Equal(t, []Stage{StageGatherer, StageAnalyst, StageStrategist, StagePresenter}, stages)

	for i := 1; i < len(stages); i++ {
		assert.Less(t, stages[i-1], stages[i])
	}
}

func TestStage_NamesAndKeys(t *testing.T) {
	tests := []struct {
		stage Stage
		name  string
		key   string
	}{
		{StageGatherer, "Data Gatherer", "research_brief"},
		{StageAnalyst, "Analyst", "market_analysis"},
		{StageStrategist, "Strategist", "strategy_report"},
		{StagePresenter, "Presenter", "final_presentation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.stage.String())
			assert.Equal(t, tt.key, tt.stage.Key())
			assert.True(t, tt.stage.Valid())
		})
	}
}

func TestStage_Invalid(t *testing.T) {
	s := Stage(7)
	assert.False(t, s.Valid())
	assert.Equal(t, "Stage(7)", s.String())
	assert.Empty(t, s.Key())
}

func TestDefaultCatalog_Profiles(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, LanguageEnglish, c.Language())

	profiles := c.Profiles()
	require.Len(t, profiles, NumStages)

	assert.Equal(t, "Data Gatherer", profiles[0].Name)
	assert.Equal(t, 0.4, profiles[0].Temperature)
	assert.Equal(t, "Analyst", profiles[1].Name)
	assert.Equal(t, 0.3, profiles[1].Temperature)
	assert.Equal(t, "Strategist", profiles[2].Name)
	assert.Equal(t, 0.5, profiles[2].Temperature)
	assert.Equal(t, "Presenter", profiles[3].Name)
	assert.Equal(t, 0.6, profiles[3].Temperature)

	for _, p := range profiles {
		assert.NotEmpty(t, p.Instruction)
	}
}

func TestCatalog_ProfileIsStable(t *testing.T) {
	c := DefaultCatalog()

	first, err := c.Profile(StageAnalyst)
	require.NoError(t, err)
	second, err := c.Profile(StageAnalyst)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	// Mutating the returned slice must not leak into the catalog.
	profiles := c.Profiles()
	profiles[1].Instruction = "changed"
	third, err := c.Profile(StageAnalyst)
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestCatalog_ProfileUnknownStage(t *testing.T) {
	_, err := DefaultCatalog().Profile(Stage(-1))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown stage")
}

func TestCatalog_InstructionsAreDistinct(t *testing.T) {
	c := DefaultCatalog()
	seen := map[string]bool{}
	for _, p := range c.Profiles() {
		assert.False(t, seen[p.Instruction], "duplicate instruction for %s", p.Name)
		seen[p.Instruction] = true
	}
}

func TestCatalog_Framing(t *testing.T) {
	c := DefaultCatalog()

	assert.Equal(t, "Research brief prepared by the Data Gatherer:", c.SectionLabel(StageGatherer))
	assert.Equal(t, "Market analysis by the Analyst:", c.SectionLabel(StageAnalyst))
	assert.NotEmpty(t, c.Request(StagePresenter))
	assert.NotEmpty(t, c.BriefLabel())
	assert.Contains(t, c.EmptyBriefMessage(), "market brief")
	assert.Empty(t, c.SectionLabel(Stage(9)))
}

func TestCatalog_StageForInstruction(t *testing.T) {
	c := DefaultCatalog()
	for _, stage := range Stages() {
		p, err := c.Profile(stage)
		require.NoError(t, err)

		got, ok := c.StageForInstruction(p.Instruction)
		require.True(t, ok)
		assert.Equal(t, stage, got)
	}

	_, ok := c.StageForInstruction("not an instruction")
	assert.False(t, ok)
}

func TestNewCatalog_Italian(t *testing.T) {
	c, err := NewCatalog(LanguageItalian)
	require.NoError(t, err)

	p, err := c.Profile(StageGatherer)
	require.NoError(t, err)
	assert.Equal(t, "Data Gatherer", p.Name)
	assert.Contains(t, p.Instruction, "analista di ricerche di mercato")
	assert.Contains(t, c.EmptyBriefMessage(), "Per favore")
}

func TestNewCatalog_UnknownLanguage(t *testing.T) {
	_, err := NewCatalog(Language("xx"))
	assert.Error(t, err)
}

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		in      string
		want    Language
		wantErr bool
	}{
		{"", LanguageEnglish, false},
		{"en", LanguageEnglish, false},
		{" IT ", LanguageItalian, false},
		{"fr", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLanguage(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStage(t *testing.T) {
	for _, stage := range Stages() {
		got, err := ParseStage(stage.Key())
		require.NoError(t, err)
		assert.Equal(t, stage, got)
	}
	_, err := ParseStage("summary")
	assert.Error(t, err)
}

func TestStage_JSON(t *testing.T) {
	b, err := json.Marshal(map[string]Stage{"stage": StageStrategist})
	require.NoError(t, err)
	assert.JSONEq(t, `{"stage":"strategy_report"}`, string(b))

	var decoded struct {
		Stage Stage `json:"stage"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"stage":"final_presentation"}`), &decoded))
	assert.Equal(t, StagePresenter, decoded.Stage)

	_, err = json.Marshal(Stage(9))
	assert.Error(t, err)
}
