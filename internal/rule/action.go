package rule

import (
	"encoding/json"
	"fmt"

	"github.com/valyala/fasttemplate"
)

// Action is the effect half of a rule, applied in order once the rule's
// matcher hits. Actions mutate only the record they are given.
type Action interface {
	Apply(rec *Record) error
}

// MergeAction deep-merges a template-expanded JSON fragment into the
// record's structured view. Object keys unify recursively; scalar and array
// leaves are overwritten by the fragment's value, never appended.
type MergeAction struct {
	fragment string
	tpl      *fasttemplate.Template
	exp      *Expander
}

func NewMergeAction(fragment string, exp *Expander) (*MergeAction, error) {
	tpl, err := parseTemplate(fragment)
	if err != nil {
		return nil, fmt.Errorf("invalid merge template: %w", err)
	}

	a := &MergeAction{fragment: fragment, tpl: tpl, exp: exp}

	// Expand against an empty record once so a fragment that cannot produce
	// valid JSON is rejected at load time, not on the hot path.
	if _, err := a.expand(NewRecord(nil, nil)); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *MergeAction) expand(rec *Record) (map[string]interface{}, error) {
	expanded := a.exp.ExpandJSON(a.tpl, rec)

	var frag map[string]interface{}
	if err := json.Unmarshal([]byte(expanded), &frag); err != nil {
		return nil, fmt.Errorf("merge fragment is not a JSON object: %w", err)
	}
	return frag, nil
}

func (a *MergeAction) Apply(rec *Record) error {
	frag, err := a.expand(rec)
	if err != nil {
		return err
	}
	deepMerge(rec.ensureStructured(), frag)
	return nil
}

// StopAction halts further rule evaluation for the record. It is explicit
// rather than an implicit fall-through: a rule that merges without stopping
// lets later rules add more data.
type StopAction struct{}

func (StopAction) Apply(rec *Record) error {
	rec.Terminated = true
	return nil
}

// ForwardAction routes the record to a template-expanded topic, overriding
// the ruleset's default topic.
type ForwardAction struct {
	tpl *fasttemplate.Template
	exp *Expander
}

func NewForwardAction(topic string, exp *Expander) (*ForwardAction, error) {
	if topic == "" {
		return nil, fmt.Errorf("forward action requires a topic")
	}
	tpl, err := parseTemplate(topic)
	if err != nil {
		return nil, fmt.Errorf("invalid forward topic template: %w", err)
	}
	return &ForwardAction{tpl: tpl, exp: exp}, nil
}

func (a *ForwardAction) Apply(rec *Record) error {
	rec.DestinationTopic = a.exp.Expand(a.tpl, rec)
	return nil
}

// ReplaceAction swaps the record's output payload for a template-expanded
// string; capture groups from the matching regex are available as tokens.
type ReplaceAction struct {
	tpl *fasttemplate.Template
	exp *Expander
}

func NewReplaceAction(template string, exp *Expander) (*ReplaceAction, error) {
	tpl, err := parseTemplate(template)
	if err != nil {
		return nil, fmt.Errorf("invalid replace template: %w", err)
	}
	return &ReplaceAction{tpl: tpl, exp: exp}, nil
}

func (a *ReplaceAction) Apply(rec *Record) error {
	rec.output = []byte(a.exp.Expand(a.tpl, rec))
	return nil
}

// deepMerge folds src into dst. Nested objects merge recursively; any other
// value in src (scalars and arrays included) replaces the value in dst. The
// result does not depend on map iteration order.
func deepMerge(dst, src map[string]interface{}) {
	for key, sv := range src {
		if sm, ok := sv.(map[string]interface{}); ok {
			if dm, ok := dst[key].(map[string]interface{}); ok {
				deepMerge(dm, sm)
				continue
			}
		}
		dst[key] = sv
	}
}
