package prompts

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearCache() {
	cacheMu.Lock()
	cache = make(map[string]map[string]string)
	cacheMu.Unlock()
}

// keys returns the sorted prompt keys of a file
func keys(t *testing.T, filename string) []string {
	t.Helper()
	prompts, err := loadFile(filename)
	require.NoError(t, err)

	out := make([]string, 0, len(prompts))
	for key := range prompts {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func TestGet_ValidPrompt(t *testing.T) {
	clearCache()

	prompt, err := Get("agents.en.json", "gatherer.instruction")
	require.NoError(t, err)
	assert.NotEmpty(t, prompt)
	assert.Contains(t, prompt, "market research analyst")
}

func TestGet_InvalidFile(t *testing.T) {
	clearCache()

	_, err := Get("nonexistent.json", "some-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	clearCache()

	_, err := Get("agents.en.json", "nonexistent-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestGet_BlankPrompt(t *testing.T) {
	clearCache()
	cacheMu.Lock()
	cache["blank.json"] = map[string]string{"key": "   "}
	cacheMu.Unlock()
	t.Cleanup(clearCache)

	_, err := Get("blank.json", "key")
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	template := "Research brief prepared by the {{.Agent}}:"
	data := map[string]string{"Agent": "Data Gatherer"}

	result := Format(template, data)
	assert.Equal(t, "Research brief prepared by the Data Gatherer:", result)
}

func TestFormat_NoPlaceholders(t *testing.T) {
	template := "No placeholders here"
	data := map[string]string{"Key": "Value"}

	result := Format(template, data)
	assert.Equal(t, template, result)
}

func TestFormat_EmptyData(t *testing.T) {
	template := "Hello {{.Name}}"

	result := Format(template, map[string]string{})
	assert.Equal(t, template, result) // Placeholder remains
}

func TestFileForLanguage(t *testing.T) {
	assert.Equal(t, "agents.en.json", FileForLanguage("en"))
	assert.Equal(t, "agents.it.json", FileForLanguage("it"))
}

func TestLanguages(t *testing.T) {
	assert.Equal(t, []string{"en", "it"}, Languages())
}

func TestLanguageFilesHaveSameKeys(t *testing.T) {
	clearCache()

	en := keys(t, "agents.en.json")
	it := keys(t, "agents.it.json")

	assert.Equal(t, en, it)
	assert.Contains(t, en, "brief.label")
	assert.Contains(t, en, "brief.empty")
	for _, stage := range []string{"gatherer", "analyst", "strategist", "presenter"} {
		assert.Contains(t, en, stage+".instruction")
		assert.Contains(t, en, stage+".label")
		assert.Contains(t, en, stage+".request")
	}
}

func TestCaching(t *testing.T) {
	clearCache()

	prompt1, err := Get("agents.en.json", "analyst.instruction")
	require.NoError(t, err)

	prompt2, err := Get("agents.en.json", "analyst.instruction")
	require.NoError(t, err)

	assert.Equal(t, prompt1, prompt2)
}
