package rule

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Record is the unit of work flowing through the pipeline: one inbound log
// line plus whatever the rules derive from it. A Record is owned by exactly
// one connection worker and is never shared, so none of its state is
// synchronized.
type Record struct {
	ID     string
	Raw    []byte
	Fields map[string]string

	// Structured is the parsed view of the record, populated by the first
	// successful field parse (or created empty by a merge action). Nil until
	// then.
	Structured map[string]interface{}

	// DestinationTopic is empty until a forward action resolves it; the
	// ruleset falls back to its default topic.
	DestinationTopic string

	// Terminated stops all further rule evaluation once set.
	Terminated bool

	parsed   map[string]parseResult
	captures map[string]string
	output   []byte
}

type parseResult struct {
	tree map[string]interface{}
	ok   bool
}

func NewRecord(raw []byte, fields map[string]string) *Record {
	if fields == nil {
		fields = map[string]string{}
	}
	if _, ok := fields["msg"]; !ok {
		fields["msg"] = string(raw)
	}
	return &Record{
		ID:     uuid.NewString(),
		Raw:    raw,
		Fields: fields,
	}
}

// parseField parses the named field as a JSON object, memoized per field so
// several query matchers against the same field share one parse. Failure is
// memoized too and surfaces as "no tree", never as an error.
func (r *Record) parseField(field string) (map[string]interface{}, bool) {
	if res, ok := r.parsed[field]; ok {
		return res.tree, res.ok
	}
	if r.parsed == nil {
		r.parsed = make(map[string]parseResult, 1)
	}

	text, ok := r.Fields[field]
	if !ok {
		r.parsed[field] = parseResult{}
		return nil, false
	}

	var tree map[string]interface{}
	if err := json.Unmarshal([]byte(text), &tree); err != nil {
		r.parsed[field] = parseResult{}
		return nil, false
	}

	r.parsed[field] = parseResult{tree: tree, ok: true}
	if r.Structured == nil {
		r.Structured = tree
	}
	return tree, true
}

// ensureStructured materializes the structured view for a merge action:
// reuse the already-parsed view, else try the msg field, else start from an
// empty object.
func (r *Record) ensureStructured() map[string]interface{} {
	if r.Structured == nil {
		if tree, ok := r.parseField("msg"); ok {
			r.Structured = tree
		} else {
			r.Structured = map[string]interface{}{}
		}
	}
	return r.Structured
}

func (r *Record) setCapture(name, value string) {
	if r.captures == nil {
		r.captures = make(map[string]string, 4)
	}
	r.captures[name] = value
}

func (r *Record) capture(name string) (string, bool) {
	v, ok := r.captures[name]
	return v, ok
}

// Payload is the byte sequence handed to the dispatcher: a replaced output
// wins, then the serialized structured view, then the raw msg text.
func (r *Record) Payload() []byte {
	if r.output != nil {
		return r.output
	}
	if r.Structured != nil {
		// encoding/json sorts object keys, so the serialized form is
		// reproducible for a fixed record.
		if body, err := json.Marshal(r.Structured); err == nil {
			return body
		}
	}
	return []byte(r.Fields["msg"])
}
