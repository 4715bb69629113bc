package chat

import (
	_ "embed"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"estimator/pkg/estimate"
)

//go:embed rules.yaml
var rulesData []byte

type intensity struct {
	Ratio   float64  `yaml:"ratio"`
	Phrases []string `yaml:"phrases"`
}

type ruleSet struct {
	ApplyAll       []string            `yaml:"apply_all"`
	Categories     map[string][]string `yaml:"categories"`
	Intensities    []intensity         `yaml:"intensities"`
	Exclusion      []string            `yaml:"exclusion"`
	ReductionVerbs []string            `yaml:"reduction_verbs"`
}

var defaultRules = mustLoadRules()

func mustLoadRules() *ruleSet {
	var rules ruleSet
	if err := yaml.Unmarshal(rulesData, &rules); err != nil {
		panic(fmt.Sprintf("chat: embedded rules.yaml is invalid: %v", err))
	}
	return &rules
}

// percentPattern matches explicit reduction percentages like 「20%下げて」.
var percentPattern = regexp.MustCompile(`([1-9]\d?)\s*[%％]`)

// defaultReduceRatio applies when a category matched but the message carried
// no usable intensity: a mild 15% reduction, announced in the reply.
const defaultReduceRatio = 0.85

// minChangedDelta is the smallest person-day movement counted as a change.
const minChangedDelta = 0.05

type changeRecord struct {
	name      string
	beforePD  float64
	afterPD   float64
	beforeAmt float64
	afterAmt  float64
}

type ruleOutcome struct {
	estimates []estimate.Estimate
	note      string
	changed   bool
}

// applyRules interprets a free-text request against the keyword tables and
// applies the resulting transformation. When no category or apply-to-all
// phrase matches, the estimates come back unchanged with example instructions
// instead of a silent guess.
func (e *Engine) applyRules(ests []estimate.Estimate, message string) ruleOutcome {
	m := strings.ToLower(message)
	rules := defaultRules

	applyToAll := containsAny(m, rules.ApplyAll)
	var targets []string
	for _, kws := range rules.Categories {
		if containsAny(m, kws) {
			targets = append(targets, kws...)
		}
	}

	ratio, haveRatio := inferRatio(m, rules)
	fullRemove := containsAny(m, rules.Exclusion)

	var changed []changeRecord
	out := make([]estimate.Estimate, len(ests))
	for i, est := range ests {
		name := strings.ToLower(est.DeliverableName)
		hit := applyToAll || (len(targets) > 0 && containsAny(name, targets))
		if hit {
			switch {
			case fullRemove:
				changed = append(changed, changeRecord{est.DeliverableName, est.PersonDays, 0, est.Amount, 0})
				est.PersonDays = 0
				est.Amount = 0
			case haveRatio:
				newPD := round1(est.PersonDays * ratio)
				if math.Abs(newPD-est.PersonDays) >= minChangedDelta {
					newAmt := newPD * e.unitCost
					changed = append(changed, changeRecord{est.DeliverableName, est.PersonDays, newPD, est.Amount, newAmt})
					est.PersonDays = newPD
					est.Amount = newAmt
				}
			}
		}
		out[i] = est
	}

	switch {
	case len(changed) == 0 && len(targets) == 0:
		return ruleOutcome{out, e.bundle.T("messages.adjustment_no_match"), false}

	case len(changed) == 0 && !haveRatio && !fullRemove:
		// Category matched but the intensity was ambiguous.
		for i, est := range out {
			if !containsAny(strings.ToLower(est.DeliverableName), targets) {
				continue
			}
			newPD := round1(est.PersonDays * defaultReduceRatio)
			newAmt := newPD * e.unitCost
			changed = append(changed, changeRecord{est.DeliverableName, est.PersonDays, newPD, est.Amount, newAmt})
			out[i].PersonDays = newPD
			out[i].Amount = newAmt
		}
		note := e.bundle.T("messages.adjustment_default_applied", "percent", 15)
		if len(changed) > 0 {
			note += "\n" + e.changeLines(changed)
		}
		return ruleOutcome{out, note, len(changed) > 0}

	default:
		note := e.bundle.T("messages.adjustment_applied_header")
		if len(changed) > 0 {
			note += "\n" + e.changeLines(changed)
		}
		return ruleOutcome{out, note, len(changed) > 0}
	}
}

// inferRatio resolves the reduction factor: an explicit percentage paired with
// a reduction verb wins, otherwise the first matching intensity phrase.
func inferRatio(m string, rules *ruleSet) (float64, bool) {
	if match := percentPattern.FindStringSubmatch(m); match != nil && containsAny(m, rules.ReductionVerbs) {
		if p, err := strconv.ParseFloat(match[1], 64); err == nil && p > 0 && p < 100 {
			return math.Max(0.1, 1.0-p/100.0), true
		}
	}
	for _, in := range rules.Intensities {
		if containsAny(m, in.Phrases) {
			return in.Ratio, true
		}
	}
	return 0, false
}

func (e *Engine) changeLines(changed []changeRecord) string {
	lines := make([]string, 0, len(changed))
	for _, c := range changed {
		lines = append(lines, e.bundle.T("messages.adjustment_line",
			"name", c.name,
			"before_days", fmt.Sprintf("%.1f", c.beforePD),
			"after_days", fmt.Sprintf("%.1f", c.afterPD),
			"before_amount", groupDigits(c.beforeAmt),
			"after_amount", groupDigits(c.afterAmt),
		))
	}
	return strings.Join(lines, "\n")
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
