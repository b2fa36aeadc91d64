// Package risk implements the deterministic, side-effect-free scoring of
// plan steps and whole plans. Nothing in this package touches a store,
// clock, or network — every function is a pure transform of its inputs so
// the same step always scores the same way.
package risk

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/actionhost/agentgate/internal/domain"
)

// secretSuffixes are file extensions that suggest the file holds a secret.
var secretSuffixes = []string{".env", ".key", ".pem", ".p12", ".sqlite", ".db", ".secret", ".credentials"}

// shellProfilePaths are dotfiles whose modification can hijack a future
// shell session.
var shellProfilePaths = []string{"/.zshrc", "/.bashrc", "/.bash_profile", "/.profile", "/.ssh/config", "/.ssh/authorized_keys"}

var suspiciousTLDs = []string{".ru", ".cn", ".top", ".xyz", ".tk", ".pw", ".cc"}

var (
	curlPipeShRe = regexp.MustCompile(`curl.*\|.*sh`)
	wgetPipeShRe = regexp.MustCompile(`wget.*\|.*sh`)
	ipLiteralRe  = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+`)
	rmWordRe     = regexp.MustCompile(`\brm\b`)
)

// Scored is the result of scoring a single step: its score plus the
// machine-readable flags that contributed to it.
type Scored struct {
	Score int
	Flags []string
}

// ScoreStep implements the per-step base-score-plus-rules table. The score
// is clamped to [0, 100] after all rules are applied.
func ScoreStep(step domain.PlanStep) Scored {
	var score int
	var flags []string

	switch step.Type {
	case domain.StepFSList:
		score = 2

	case domain.StepFSRead:
		score = 5
		if path, ok := stringInput(step.Inputs, "path"); ok && hasAnySuffix(path, secretSuffixes) {
			score += 40
			flags = append(flags, "potential_secret_file")
		}

	case domain.StepFSMove:
		score = 25

	case domain.StepFSWrite:
		score = 20
		if path, ok := stringInput(step.Inputs, "path"); ok {
			if containsAny(path, shellProfilePaths) {
				score += 60
				flags = append(flags, "shell_profile_modification")
			}
			if hasDotSegment(path) {
				score += 15
				flags = append(flags, "dotfile_modification")
			}
		}

	case domain.StepFSDelete:
		score = 55
		if fileCount, ok := numberInput(step.Inputs, "fileCount"); ok && fileCount > 10 {
			score += 20
			flags = append(flags, "bulk_delete")
		}

	case domain.StepShellRun:
		score = 35
		score, flags = scoreShellRun(step, score, flags)

	case domain.StepNetAllow:
		score = 15
		score, flags = scoreNetAllow(step, score, flags)

	default:
		score = 0
	}

	return Scored{Score: clamp(score), Flags: flags}
}

func scoreShellRun(step domain.PlanStep, score int, flags []string) (int, []string) {
	command, _ := stringInput(step.Inputs, "command")
	args, _ := stringSliceInput(step.Inputs, "args")
	fullCmd := strings.ToLower(strings.TrimSpace(strings.Join(append([]string{command}, args...), " ")))

	if strings.Contains(fullCmd, "sudo") {
		score += 45
		flags = append(flags, "sudo")
	}
	if rmWordRe.MatchString(fullCmd) {
		score += 30
		flags = append(flags, "rm")
	}
	if strings.Contains(fullCmd, ">") || strings.Contains(fullCmd, ">>") {
		score += 15
		flags = append(flags, "redirection")
	}
	if strings.Contains(fullCmd, "|") {
		score += 15
		flags = append(flags, "pipe")
	}
	if curlPipeShRe.MatchString(fullCmd) || wgetPipeShRe.MatchString(fullCmd) {
		score += 50
		flags = append(flags, "curl_pipe_sh")
	}
	if strings.Contains(fullCmd, "chmod 777") {
		score += 40
		flags = append(flags, "chmod_risky")
	}
	return score, flags
}

func scoreNetAllow(step domain.PlanStep, score int, flags []string) (int, []string) {
	domains, ok := stringSliceInput(step.Inputs, "domains")
	if !ok {
		return score, flags
	}
	for _, d := range domains {
		if ipLiteralRe.MatchString(d) {
			score += 25
			flags = append(flags, "ip_literal")
		}
		if hasAnySuffix(d, suspiciousTLDs) {
			score += 20
			flags = append(flags, "suspicious_tld")
		}
	}
	return score, flags
}

// Summary is the plan-level aggregate risk view.
type Summary struct {
	TotalRiskScore int
	High           int
	Medium         int
	Low            int
	FlagsTop       []string
}

// Classification buckets for a single score.
const (
	ClassLow    = "low"
	ClassMedium = "medium"
	ClassHigh   = "high"
)

// Classify buckets a score into low (<30), medium ([30,70)), or high (>=70).
func Classify(score int) string {
	switch {
	case score < 30:
		return ClassLow
	case score < 70:
		return ClassMedium
	default:
		return ClassHigh
	}
}

// ScorePlan aggregates per-step scores into a plan-wide RiskSummary.
// totalRiskScore = round(0.6*max + 0.4*avg), +10 if any step carries a
// bulk_delete or curl_pipe_sh flag, clamped to [0,100].
//
// It trusts each step's RiskScore and RiskFlags rather than recomputing them
// with ScoreStep, since a step may carry a fixed override (path_denied,
// command_not_allowed) that the table must not overwrite — the caller is
// expected to have already run ScoreStep over every step that lacks one.
func ScorePlan(steps []domain.PlanStep) Summary {
	if len(steps) == 0 {
		return Summary{}
	}

	var (
		max           int
		sum           int
		hasBulkDelete bool
		hasCurlPipe   bool
		flagCount     = map[string]int{}
		flagOrder     = map[string]int{}
		high, medium, low int
	)

	for _, step := range steps {
		score := clamp(step.RiskScore)
		if score > max {
			max = score
		}
		sum += score
		switch Classify(score) {
		case ClassHigh:
			high++
		case ClassMedium:
			medium++
		default:
			low++
		}
		for _, f := range step.RiskFlags {
			if f == "bulk_delete" {
				hasBulkDelete = true
			}
			if f == "curl_pipe_sh" {
				hasCurlPipe = true
			}
			if _, seen := flagOrder[f]; !seen {
				flagOrder[f] = len(flagOrder)
			}
			flagCount[f]++
		}
	}

	avg := float64(sum) / float64(len(steps))
	total := int(math.Round(0.6*float64(max) + 0.4*avg))
	if hasBulkDelete || hasCurlPipe {
		total += 10
	}
	total = clamp(total)

	return Summary{
		TotalRiskScore: total,
		High:           high,
		Medium:         medium,
		Low:            low,
		FlagsTop:       topFlags(flagCount, flagOrder),
	}
}

// topFlags returns up to the five most frequent flags, ties broken by
// first appearance order across steps.
func topFlags(count, order map[string]int) []string {
	flags := make([]string, 0, len(count))
	for f := range count {
		flags = append(flags, f)
	}
	sort.Slice(flags, func(i, j int) bool {
		if count[flags[i]] != count[flags[j]] {
			return count[flags[i]] > count[flags[j]]
		}
		return order[flags[i]] < order[flags[j]]
	})
	if len(flags) > 5 {
		flags = flags[:5]
	}
	return flags
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func stringInput(inputs map[string]interface{}, key string) (string, bool) {
	v, ok := inputs[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func stringSliceInput(inputs map[string]interface{}, key string) ([]string, bool) {
	v, ok := inputs[key]
	if !ok {
		return nil, false
	}
	switch vv := v.(type) {
	case []string:
		return vv, true
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			out = append(out, fmt.Sprint(item))
		}
		return out, true
	default:
		return nil, false
	}
}

func numberInput(inputs map[string]interface{}, key string) (float64, bool) {
	v, ok := inputs[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func hasAnySuffix(s string, suffixes []string) bool {
	lower := strings.ToLower(s)
	for _, suf := range suffixes {
		if strings.HasSuffix(lower, suf) {
			return true
		}
	}
	return false
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasDotSegment(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		if strings.HasPrefix(seg, ".") && seg != "." && seg != ".." {
			return true
		}
	}
	return false
}
