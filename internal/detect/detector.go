// Package detect classifies terminal output from the wrapped child process.
// It decides whether a chunk of screen text is a permission prompt asking
// for approval, what kind of answer that prompt expects, and which prompts
// are actually multi-choice questions that must be left to the user.
package detect

import (
	"log/slog"
	"regexp"
	"strings"
)

// PromptKind describes the input shape a prompt expects.
type PromptKind string

const (
	// KindNumberedMenu is a "1. Yes / 2. No" style menu answered with Enter.
	KindNumberedMenu PromptKind = "numbered_menu"
	// KindTextInput expects literal text ("yes") followed by Enter.
	KindTextInput PromptKind = "text_input"
)

// DefaultMinScore is the detection threshold used when none is configured.
const DefaultMinScore = 3

// longTextLimit is the normalized length above which text is considered
// conversational output rather than a prompt.
const longTextLimit = 2000

var (
	actionRequest     = regexp.MustCompile(`(?i)Do you want to (create|edit|delete|modify|write)`)
	actionRequestAlt  = regexp.MustCompile(`(?i)Would you like to (create|edit|delete|modify|write)`)
	noOption          = regexp.MustCompile(`[23][.)]\s*No`)
	yesNoMarker       = regexp.MustCompile(`(?m)\(y/n\)\s*$`)
	numberedOption    = regexp.MustCompile(`\d+\)\s+`)
	selectOption      = regexp.MustCompile(`(?i)Select an option`)
	chooseOption      = regexp.MustCompile(`(?i)Choose.*:`)
	bracketedQuestion = regexp.MustCompile(`\[.*\].*\?`)
)

// defaultTextInputPatterns identify prompts that want typed text rather
// than a menu selection.
var defaultTextInputPatterns = []string{`Type.*yes`, `Enter.*yes`, `\(y/n\)`}

// Options configures a Detector. Zero values fall back to defaults.
type Options struct {
	MinScore int
	// PermissionIndicators are operator-configured substrings that mark a
	// permission prompt (+2 once, no matter how many match).
	PermissionIndicators []string
	// TextInputPatterns override the regexes used to recognize text-input
	// prompts in PromptKind.
	TextInputPatterns []string
}

// Detector scores terminal output against prompt heuristics. It holds only
// configuration; scoring itself is stateless and deterministic.
type Detector struct {
	minScore             int
	permissionIndicators []string
	textInputPatterns    []*regexp.Regexp
}

// New builds a Detector from opts. Invalid custom patterns are skipped with
// a warning rather than failing construction.
func New(opts Options) *Detector {
	d := &Detector{
		minScore:             opts.MinScore,
		permissionIndicators: opts.PermissionIndicators,
	}
	if d.minScore <= 0 {
		d.minScore = DefaultMinScore
	}

	patterns := opts.TextInputPatterns
	if len(patterns) == 0 {
		patterns = defaultTextInputPatterns
	}
	for _, p := range patterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			slog.Warn("skipping invalid text input pattern", "pattern", p, "error", err)
			continue
		}
		d.textInputPatterns = append(d.textInputPatterns, re)
	}
	return d
}

// IsPermissionPrompt reports whether text looks like a permission prompt
// that may be auto-approved.
func (d *Detector) IsPermissionPrompt(text string) bool {
	return d.Score(text) >= d.minScore
}

// Score computes the additive detection score over the normalized text.
// The scoring is intentionally strict: a single weak indicator never
// crosses the default threshold on its own.
func (d *Detector) Score(text string) int {
	clean := Normalize(text)

	score := 0

	// Strong indicators.
	if strings.Contains(clean, "Permission rule") {
		score += 2
	}
	if strings.Contains(clean, "Do you want to proceed?") {
		score += 2
	}
	if strings.Contains(clean, "Would you like to proceed?") {
		score += 2
	}
	if actionRequest.MatchString(clean) {
		score += 2
	}
	if actionRequestAlt.MatchString(clean) {
		score += 2
	}

	// Medium indicators.
	if strings.Contains(clean, "Esc to cancel") {
		score++
	}
	if strings.Contains(clean, "Tab to amend") {
		score++
	}
	if strings.Contains(clean, "Enter to approve") || strings.Contains(clean, "Enter to confirm") {
		score++
	}

	// A Yes option paired with a No option is enough on its own.
	hasYes := strings.Contains(clean, "1. Yes") || strings.Contains(clean, "1) Yes")
	if hasYes && noOption.MatchString(clean) {
		score += 3
	}

	if yesNoMarker.MatchString(clean) {
		score++
	}

	for _, indicator := range d.permissionIndicators {
		if strings.Contains(clean, indicator) {
			score += 2
			break
		}
	}

	// Safety discounts. Code blocks are never prompts; long or sentence-heavy
	// text is conversational output.
	if strings.Contains(clean, "```") {
		score = 0
	}
	if len(clean) > longTextLimit {
		score = max(0, score-2)
	}
	sentences := strings.Count(clean, ".") + strings.Count(clean, "?") + strings.Count(clean, "!")
	if sentences > 10 {
		score = max(0, score-1)
	}

	slog.Debug("prompt score",
		"score", score,
		"threshold", d.minScore,
		"length", len(clean),
		"sentences", sentences)

	return score
}

// PromptKind determines what input shape answers the prompt. It is
// independent of the detection score.
func (d *Detector) PromptKind(text string) PromptKind {
	clean := Normalize(text)

	if strings.Contains(clean, "1. Yes") || strings.Contains(clean, "2. No") {
		return KindNumberedMenu
	}
	for _, re := range d.textInputPatterns {
		if re.MatchString(clean) {
			return KindTextInput
		}
	}
	// Numbered menus are the most common shape.
	return KindNumberedMenu
}

// IsQuestion reports whether text is a genuine multi-choice question rather
// than a permission prompt. A permission prompt is never a question.
func (d *Detector) IsQuestion(text string) bool {
	if d.IsPermissionPrompt(text) {
		return false
	}
	for _, re := range []*regexp.Regexp{numberedOption, selectOption, chooseOption, bracketedQuestion} {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
