package rule

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/valyala/fasttemplate"
)

const (
	tagStart = "{{"
	tagEnd   = "}}"
)

// Expander resolves the fixed set of placeholder tokens recognized inside
// action templates: {{version}}, {{timestamp}} (current UTC time, RFC 3339),
// {{msg}}, and any named capture group from the matching regex. Unknown
// tokens expand to the empty string.
type Expander struct {
	Version string
	Now     func() time.Time
}

func NewExpander(version string) *Expander {
	return &Expander{Version: version, Now: time.Now}
}

func parseTemplate(text string) (*fasttemplate.Template, error) {
	return fasttemplate.NewTemplate(text, tagStart, tagEnd)
}

func (e *Expander) resolve(tag string, rec *Record) (string, bool) {
	switch strings.TrimSpace(tag) {
	case "version":
		return e.Version, true
	case "timestamp":
		return e.Now().UTC().Format(time.RFC3339), true
	case "msg":
		return rec.Fields["msg"], true
	default:
		return rec.capture(strings.TrimSpace(tag))
	}
}

// Expand renders a template for plain-text use (topic names, replace
// payloads).
func (e *Expander) Expand(t *fasttemplate.Template, rec *Record) string {
	return t.ExecuteFuncString(func(w io.Writer, tag string) (int, error) {
		v, _ := e.resolve(tag, rec)
		return w.Write([]byte(v))
	})
}

// ExpandJSON renders a template that lives inside a JSON document. Resolved
// values are escaped as JSON string content so a capture containing quotes
// or backslashes cannot break the fragment.
func (e *Expander) ExpandJSON(t *fasttemplate.Template, rec *Record) string {
	return t.ExecuteFuncString(func(w io.Writer, tag string) (int, error) {
		v, _ := e.resolve(tag, rec)
		return w.Write(jsonEscape(v))
	})
}

func jsonEscape(s string) []byte {
	quoted, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	return quoted[1 : len(quoted)-1]
}
