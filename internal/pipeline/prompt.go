package pipeline

import (
	"strings"

	"github.com/jonathan/market-research/internal/agents"
)

// buildUserContent frames the brief and every prior stage output for the given stage.
// Sections appear in fixed order, each under its label, followed by the stage's
// closing request. Prior outputs are forwarded verbatim.
func buildUserContent(catalog *agents.Catalog, stage agents.Stage, brief string, prior []StageOutput) string {
	sections := make([]string, 0, len(prior)+2)
	sections = append(sections, catalog.BriefLabel()+"\n"+brief)
	for _, out := range prior {
		sections = append(sections, catalog.SectionLabel(out.Stage)+"\n"+out.Text)
	}
	sections = append(sections, catalog.Request(stage))
	return strings.Join(sections, "\n\n")
}
