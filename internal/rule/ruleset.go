package rule

import (
	"fmt"

	"hotdog/internal/logger"
	"hotdog/pkg/metrics"
)

// Rule pairs a matcher with the ordered actions to run when it hits.
type Rule struct {
	Name    string
	Matcher Matcher
	Actions []Action
}

// RuleSet owns the evaluation loop. It is immutable after Compile and safe
// for unsynchronized concurrent use by every connection worker.
type RuleSet struct {
	rules        []Rule
	defaultTopic string
	logger       logger.Logger
}

// Spec is the configuration-level shape of one rule, exactly one of
// JMESPath or Regex set.
type Spec struct {
	Name     string
	JMESPath string
	Regex    string
	Field    string
	Actions  []ActionSpec
}

// ActionSpec is the configuration-level shape of one action.
type ActionSpec struct {
	Type     string
	JSON     string
	Topic    string
	Template string
}

// Compile turns the configured rule list into a RuleSet, rejecting anything
// malformed so the process refuses to start with a partially valid set.
func Compile(specs []Spec, defaultTopic string, exp *Expander, log logger.Logger) (*RuleSet, error) {
	if defaultTopic == "" {
		return nil, fmt.Errorf("default topic is required")
	}
	if log == nil {
		log = logger.NopLogger()
	}

	rules := make([]Rule, 0, len(specs))
	for i, spec := range specs {
		r, err := compileRule(i, spec, exp)
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		rules = append(rules, r)
	}

	return &RuleSet{
		rules:        rules,
		defaultTopic: defaultTopic,
		logger:       log,
	}, nil
}

func compileRule(index int, spec Spec, exp *Expander) (Rule, error) {
	name := spec.Name
	if name == "" {
		name = fmt.Sprintf("rule-%d", index)
	}

	field := spec.Field
	if field == "" {
		field = "msg"
	}

	var (
		matcher Matcher
		err     error
	)
	switch {
	case spec.JMESPath != "" && spec.Regex != "":
		return Rule{}, fmt.Errorf("jmespath and regex are mutually exclusive")
	case spec.JMESPath != "":
		matcher, err = NewJMESPathMatcher(spec.JMESPath, field)
	case spec.Regex != "":
		matcher, err = NewRegexMatcher(spec.Regex, field)
	default:
		return Rule{}, fmt.Errorf("either jmespath or regex is required")
	}
	if err != nil {
		return Rule{}, err
	}

	if len(spec.Actions) == 0 {
		return Rule{}, fmt.Errorf("at least one action is required")
	}
	actions := make([]Action, 0, len(spec.Actions))
	for j, as := range spec.Actions {
		action, err := compileAction(as, exp)
		if err != nil {
			return Rule{}, fmt.Errorf("actions[%d]: %w", j, err)
		}
		actions = append(actions, action)
	}

	return Rule{Name: name, Matcher: matcher, Actions: actions}, nil
}

func compileAction(spec ActionSpec, exp *Expander) (Action, error) {
	switch spec.Type {
	case "merge":
		if spec.JSON == "" {
			return nil, fmt.Errorf("merge action requires a json fragment")
		}
		return NewMergeAction(spec.JSON, exp)
	case "stop":
		return StopAction{}, nil
	case "forward":
		return NewForwardAction(spec.Topic, exp)
	case "replace":
		return NewReplaceAction(spec.Template, exp)
	default:
		return nil, fmt.Errorf("unknown action type %q", spec.Type)
	}
}

// Len reports the number of compiled rules.
func (s *RuleSet) Len() int {
	return len(s.rules)
}

// DefaultTopic is the topic used when no forward action fires.
func (s *RuleSet) DefaultTopic() string {
	return s.defaultTopic
}

// Evaluate runs the record through the rule list in configured order and
// returns its destination topic. Matched and terminated are distinct: a rule
// may match and mutate without stopping, letting later rules add more data.
func (s *RuleSet) Evaluate(rec *Record) string {
	for i := range s.rules {
		if rec.Terminated {
			break
		}
		r := &s.rules[i]

		if !r.Matcher.Match(rec) {
			continue
		}
		metrics.RuleMatchesTotal.WithLabelValues(r.Name).Inc()

		for _, action := range r.Actions {
			if err := action.Apply(rec); err != nil {
				// Localized failure: the record keeps flowing, unmutated by
				// this action.
				metrics.ActionFailuresTotal.WithLabelValues(r.Name).Inc()
				s.logger.Warnw("Action failed",
					"rule", r.Name,
					"record_id", rec.ID,
					"error", err,
				)
			}
			if rec.Terminated {
				break
			}
		}
	}

	if rec.DestinationTopic != "" {
		return rec.DestinationTopic
	}
	return s.defaultTopic
}

// MatchingRules evaluates matchers only, in order, and returns the names of
// every rule that would hit. Used by the check command; actions never run.
func (s *RuleSet) MatchingRules(rec *Record) []string {
	var names []string
	for i := range s.rules {
		if s.rules[i].Matcher.Match(rec) {
			names = append(names, s.rules[i].Name)
		}
	}
	return names
}
