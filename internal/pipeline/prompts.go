package pipeline

import (
	"embed"
	"sort"
	"strings"
)

//go:embed prompts/*.md
var promptFS embed.FS

const (
	promptValidate = "ingest_validate"
	promptExtract  = "extract"
	promptClassify = "classify"
	promptMatch    = "match_score"
	promptReview   = "qa_review"
)

// renderPrompt fills the {{KEY}} placeholders of a bundled template.
func renderPrompt(name string, vars map[string]string) string {
	data, err := promptFS.ReadFile("prompts/" + name + ".md")
	if err != nil {
		// Templates are compiled in; a missing one is a build mistake.
		panic("missing prompt template " + name)
	}

	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	// One pass, so placeholders inside substituted values stay literal.
	pairs := make([]string, 0, 2*len(keys))
	for _, key := range keys {
		pairs = append(pairs, "{{"+key+"}}", vars[key])
	}

	return strings.TrimSpace(strings.NewReplacer(pairs...).Replace(string(data)))
}
