// Package agents defines the four fixed personas of the market research pipeline.
//
// A Stage is an enumerated tag; each stage carries a Profile (display name,
// instruction text, sampling temperature) resolved from a Catalog. Catalogs are
// built from embedded prompt files and never change after construction.
package agents

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jonathan/market-research/internal/prompts"
)

// Stage identifies one persona in the pipeline. Stages are totally ordered.
type Stage int

const (
	// StageGatherer expands the brief into a structured research brief
	StageGatherer Stage = iota
	// StageAnalyst builds the market analysis
	StageAnalyst
	// StageStrategist proposes positioning, SWOT and recommendations
	StageStrategist
	// StagePresenter writes the slide-ready executive summary
	StagePresenter
)

// NumStages is the number of stages in every pipeline run.
const NumStages = 4

// stageSpec is the static, language-independent part of a stage.
type stageSpec struct {
	prefix      string // key prefix in the prompt files
	name        string
	key         string // logical result key
	temperature float64
}

var stageSpecs = [NumStages]stageSpec{
	StageGatherer:   {prefix: "gatherer", name: "Data Gatherer", key: "research_brief", temperature: 0.4},
	StageAnalyst:    {prefix: "analyst", name: "Analyst", key: "market_analysis", temperature: 0.3},
	StageStrategist: {prefix: "strategist", name: "Strategist", key: "strategy_report", temperature: 0.5},
	StagePresenter:  {prefix: "presenter", name: "Presenter", key: "final_presentation", temperature: 0.6},
}

// Stages returns all stages in pipeline order.
func Stages() []Stage {
	return []Stage{StageGatherer, StageAnalyst, StageStrategist, StagePresenter}
}

// Valid reports whether s is one of the four stages.
func (s Stage) Valid() bool {
	return s >= StageGatherer && s <= StagePresenter
}

// String returns the persona display name.
func (s Stage) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageSpecs[s].name
}

// Key returns the logical result key for the stage's output (e.g. "research_brief").
func (s Stage) Key() string {
	if !s.Valid() {
		return ""
	}
	return stageSpecs[s].key
}

// ParseStage resolves a result key (e.g. "market_analysis") to its stage.
func ParseStage(key string) (Stage, error) {
	for _, stage := range Stages() {
		if stageSpecs[stage].key == key {
			return stage, nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", key)
}

// MarshalText encodes the stage as its result key.
func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown stage %d", int(s))
	}
	return []byte(s.Key()), nil
}

// UnmarshalText decodes a result key.
func (s *Stage) UnmarshalText(text []byte) error {
	stage, err := ParseStage(string(text))
	if err != nil {
		return err
	}
	*s = stage
	return nil
}

// Language selects the prompt file used to build a Catalog.
type Language string

const (
	// LanguageEnglish is the default language
	LanguageEnglish Language = "en"
	// LanguageItalian matches the persona text the pipeline was first written with
	LanguageItalian Language = "it"
)

// ParseLanguage validates a language code. An empty string selects English.
func ParseLanguage(s string) (Language, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return LanguageEnglish, nil
	}
	for _, lang := range prompts.Languages() {
		if lang == s {
			return Language(s), nil
		}
	}
	return "", fmt.Errorf("unsupported language %q (available: %s)", s, strings.Join(prompts.Languages(), ", "))
}

// Profile describes one persona. It is a value type; copies never alias.
type Profile struct {
	Name        string  `json:"name"`
	Instruction string  `json:"instruction"`
	Temperature float64 `json:"temperature"`
}

// Catalog holds the four profiles and the framing text for one language.
type Catalog struct {
	lang       Language
	profiles   [NumStages]Profile
	labels     [NumStages]string
	requests   [NumStages]string
	briefLabel string
	emptyBrief string
}

// NewCatalog builds the catalog for a language from the embedded prompt files.
func NewCatalog(lang Language) (*Catalog, error) {
	if lang == "" {
		lang = LanguageEnglish
	}
	file := prompts.FileForLanguage(string(lang))

	c := &Catalog{lang: lang}
	for _, stage := range Stages() {
		spec := stageSpecs[stage]

		instruction, err := prompts.Get(file, spec.prefix+".instruction")
		if err != nil {
			return nil, fmt.Errorf("loading %s profile: %w", spec.name, err)
		}
		label, err := prompts.Get(file, spec.prefix+".label")
		if err != nil {
			return nil, fmt.Errorf("loading %s label: %w", spec.name, err)
		}
		request, err := prompts.Get(file, spec.prefix+".request")
		if err != nil {
			return nil, fmt.Errorf("loading %s request: %w", spec.name, err)
		}

		c.profiles[stage] = Profile{
			Name:        spec.name,
			Instruction: instruction,
			Temperature: spec.temperature,
		}
		c.labels[stage] = prompts.Format(label, map[string]string{"Agent": spec.name})
		c.requests[stage] = request
	}

	var err error
	if c.briefLabel, err = prompts.Get(file, "brief.label"); err != nil {
		return nil, err
	}
	if c.emptyBrief, err = prompts.Get(file, "brief.empty"); err != nil {
		return nil, err
	}

	return c, nil
}

var (
	defaultCatalog     *Catalog
	defaultCatalogOnce sync.Once
)

// DefaultCatalog returns the English catalog. It panics if the embedded prompts are broken.
func DefaultCatalog() *Catalog {
	defaultCatalogOnce.Do(func() {
		c, err := NewCatalog(LanguageEnglish)
		if err != nil {
			panic(fmt.Sprintf("failed to build default catalog: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Language returns the catalog's language.
func (c *Catalog) Language() Language {
	return c.lang
}

// Profile returns the profile for a stage.
func (c *Catalog) Profile(stage Stage) (Profile, error) {
	if !stage.Valid() {
		return Profile{}, fmt.Errorf("unknown stage %d", int(stage))
	}
	return c.profiles[stage], nil
}

// Profiles returns the four profiles in stage order.
func (c *Catalog) Profiles() []Profile {
	out := make([]Profile, NumStages)
	copy(out, c.profiles[:])
	return out
}

// SectionLabel is the heading placed before a stage's output when it is
// forwarded to later stages.
func (c *Catalog) SectionLabel(stage Stage) string {
	if !stage.Valid() {
		return ""
	}
	return c.labels[stage]
}

// Request is the closing line of a stage's user content.
func (c *Catalog) Request(stage Stage) string {
	if !stage.Valid() {
		return ""
	}
	return c.requests[stage]
}

// BriefLabel is the heading placed before the user's brief.
func (c *Catalog) BriefLabel() string {
	return c.briefLabel
}

// EmptyBriefMessage is the guidance shown when a front end receives an empty brief.
func (c *Catalog) EmptyBriefMessage() string {
	return c.emptyBrief
}

// StageForInstruction finds the stage whose profile uses the given instruction text.
func (c *Catalog) StageForInstruction(instruction string) (Stage, bool) {
	for _, stage := range Stages() {
		if c.profiles[stage].Instruction == instruction {
			return stage, true
		}
	}
	return 0, false
}
