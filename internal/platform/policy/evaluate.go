package policy

import (
	"fmt"
	"regexp"
	"strings"
)

// Context carries everything a rule may inspect. Action names use the
// audit vocabulary: production.start, production.finish,
// production.load, production.abort, lot.decode.
type Context struct {
	Action string            `json:"action"`
	Actor  ActorContext      `json:"actor"`
	Recipe RecipeContext     `json:"recipe"`
	Run    RunContext        `json:"run"`
	Labels map[string]string `json:"labels,omitempty"`
}

type ActorContext struct {
	Subject string   `json:"subject"`
	Email   string   `json:"email,omitempty"`
	Roles   []string `json:"roles,omitempty"`
}

type RecipeContext struct {
	RecipeID string `json:"recipe_id,omitempty"`
	Name     string `json:"name,omitempty"`
}

type RunContext struct {
	RunID  string `json:"run_id,omitempty"`
	Status string `json:"status,omitempty"`
}

type Decision struct {
	Effect      string `json:"effect"`
	RuleID      string `json:"rule_id,omitempty"`
	Description string `json:"description,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

func Evaluate(spec Spec, ctx Context) (Decision, error) {
	if err := spec.Validate(); err != nil {
		return Decision{}, err
	}
	for _, rule := range spec.Rules {
		if ruleMatches(rule, ctx) {
			return Decision{
				Effect:      normalizeEffect(rule.Effect),
				RuleID:      strings.TrimSpace(rule.ID),
				Description: strings.TrimSpace(rule.Description),
				Reason:      "rule_match",
			}, nil
		}
	}

	defaultEffect := normalizeEffect(spec.DefaultEffect)
	if defaultEffect == "" {
		defaultEffect = EffectDeny
	}
	return Decision{
		Effect: defaultEffect,
		Reason: "default",
	}, nil
}

// Allowed is the boundary-layer shortcut: evaluate and collapse the
// decision to a yes or no.
func Allowed(spec Spec, ctx Context) (bool, Decision, error) {
	decision, err := Evaluate(spec, ctx)
	if err != nil {
		return false, Decision{}, err
	}
	return decision.Effect == EffectAllow, decision, nil
}

func ruleMatches(rule Rule, ctx Context) bool {
	all := rule.When.All
	any := rule.When.Any

	if len(all) > 0 {
		for _, cond := range all {
			if !conditionMatches(cond, ctx) {
				return false
			}
		}
	}
	if len(any) > 0 {
		found := false
		for _, cond := range any {
			if conditionMatches(cond, ctx) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func conditionMatches(cond Condition, ctx Context) bool {
	field := strings.TrimSpace(cond.Field)
	value, ok := ctx.Field(field)
	if !ok {
		return false
	}
	op := strings.ToLower(strings.TrimSpace(cond.Op))
	switch op {
	case "exists":
		return ok
	case "eq":
		return compareEqual(value, cond.Value)
	case "neq":
		return !compareEqual(value, cond.Value)
	case "in":
		return compareIn(value, cond.Values)
	case "not_in":
		return !compareIn(value, cond.Values)
	case "contains":
		return compareContains(value, cond.Value)
	case "matches":
		return compareRegex(value, cond.Value)
	default:
		return false
	}
}

func (c Context) Field(name string) (any, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, false
	}
	switch key {
	case "action":
		return c.Action, strings.TrimSpace(c.Action) != ""
	case "actor.subject", "subject":
		return c.Actor.Subject, strings.TrimSpace(c.Actor.Subject) != ""
	case "actor.email", "email":
		return c.Actor.Email, strings.TrimSpace(c.Actor.Email) != ""
	case "actor.roles", "roles", "role":
		if len(c.Actor.Roles) == 0 {
			return c.Actor.Roles, false
		}
		return c.Actor.Roles, true
	case "recipe.id", "recipe.recipe_id", "recipe_id":
		return c.Recipe.RecipeID, strings.TrimSpace(c.Recipe.RecipeID) != ""
	case "recipe.name":
		return c.Recipe.Name, strings.TrimSpace(c.Recipe.Name) != ""
	case "run.id", "run.run_id", "run_id":
		return c.Run.RunID, strings.TrimSpace(c.Run.RunID) != ""
	case "run.status":
		return c.Run.Status, strings.TrimSpace(c.Run.Status) != ""
	}
	if strings.HasPrefix(key, "labels.") {
		if len(c.Labels) == 0 {
			return "", false
		}
		value, ok := c.Labels[strings.TrimPrefix(key, "labels.")]
		return value, ok
	}
	return nil, false
}

func compareEqual(value any, target string) bool {
	target = normalizeString(target)
	switch typed := value.(type) {
	case string:
		return normalizeString(typed) == target
	case []string:
		for _, item := range typed {
			if normalizeString(item) == target {
				return true
			}
		}
		return false
	default:
		return normalizeString(fmt.Sprint(value)) == target
	}
}

func compareIn(value any, targets []string) bool {
	normalized := make([]string, 0, len(targets))
	for _, t := range targets {
		val := normalizeString(t)
		if val != "" {
			normalized = append(normalized, val)
		}
	}
	if len(normalized) == 0 {
		return false
	}

	switch typed := value.(type) {
	case string:
		return sliceContains(normalized, normalizeString(typed))
	case []string:
		for _, item := range typed {
			if sliceContains(normalized, normalizeString(item)) {
				return true
			}
		}
		return false
	default:
		return sliceContains(normalized, normalizeString(fmt.Sprint(value)))
	}
}

func compareContains(value any, target string) bool {
	target = normalizeString(target)
	if target == "" {
		return false
	}
	switch typed := value.(type) {
	case string:
		return strings.Contains(normalizeString(typed), target)
	case []string:
		for _, item := range typed {
			if normalizeString(item) == target {
				return true
			}
		}
		return false
	default:
		return strings.Contains(normalizeString(fmt.Sprint(value)), target)
	}
}

func compareRegex(value any, pattern string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	switch typed := value.(type) {
	case string:
		return re.MatchString(typed)
	case []string:
		for _, item := range typed {
			if re.MatchString(item) {
				return true
			}
		}
		return false
	default:
		return re.MatchString(fmt.Sprint(value))
	}
}

func sliceContains(values []string, target string) bool {
	for _, item := range values {
		if item == target {
			return true
		}
	}
	return false
}

func normalizeEffect(effect string) string {
	effect = strings.ToLower(strings.TrimSpace(effect))
	switch effect {
	case EffectAllow, EffectDeny:
		return effect
	default:
		return ""
	}
}

func normalizeString(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
