package compiler

import (
	"regexp"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// SegmentMarker introduces every step in planner output.
const SegmentMarker = "Plan:"

var (
	// StepTokenPattern matches a step number such as "#E3".
	StepTokenPattern = regexp.MustCompile(`#E\d+`)
	stepInputPattern = regexp.MustCompile(`\[(.*?)\]`)
)

// typeKeywords is tested in order; the first keyword present in a segment wins.
var typeKeywords = []struct {
	keyword  string
	stepType domain.StepType
}{
	{"DataBase", domain.StepDatabaseQuery},
	{"LLM", domain.StepLLM},
	{"Human", domain.StepUserQuery},
	{"WolframAlpha", domain.StepCalculation},
}

// Parse converts raw planner output into steps, in source order.
// A segment lacking a step number, type keyword or bracketed input yields a Step with
// the corresponding field left empty; Compile rejects such steps.
func Parse(text string) []domain.Step {
	segments := strings.Split(text, SegmentMarker)
	if len(segments) < 2 {
		return nil
	}

	steps := make([]domain.Step, 0, len(segments)-1)
	for _, segment := range segments[1:] {
		steps = append(steps, parseSegment(segment))
	}
	return steps
}

func parseSegment(segment string) domain.Step {
	var step domain.Step

	step.StepNumber = StepTokenPattern.FindString(segment)

	for _, kw := range typeKeywords {
		if strings.Contains(segment, kw.keyword) {
			step.Type = kw.stepType
			break
		}
	}

	if m := stepInputPattern.FindStringSubmatch(segment); m != nil {
		step.StepInput = strings.Trim(m[1], `"`)
	}

	step.Dependencies = dependencies(segment, step.StepNumber)
	return step
}

// dependencies returns every distinct step token of the segment except self, in order of appearance.
func dependencies(segment, self string) []string {
	seen := make(map[string]bool)
	deps := []string{}
	for _, token := range StepTokenPattern.FindAllString(segment, -1) {
		if token == self || seen[token] {
			continue
		}
		seen[token] = true
		deps = append(deps, token)
	}
	return deps
}
