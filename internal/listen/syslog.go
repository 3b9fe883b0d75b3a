package listen

import (
	"strconv"

	syslog "github.com/leodido/go-syslog/v4"
	"github.com/leodido/go-syslog/v4/rfc5424"

	"hotdog/pkg/metrics"
)

// parser turns one syslog frame into the record field mapping. Frames that
// do not parse as RFC 5424 still become records, with the whole line as the
// msg field; one malformed frame must not tear down the stream.
type parser struct {
	p syslog.Machine
}

func newParser() *parser {
	return &parser{p: rfc5424.NewParser(rfc5424.WithBestEffort())}
}

func (sp *parser) fields(line []byte) map[string]string {
	m, err := sp.p.Parse(line)
	if err != nil || m == nil {
		metrics.SyslogParseFailuresTotal.Inc()
		return map[string]string{"msg": string(line)}
	}

	sm, ok := m.(*rfc5424.SyslogMessage)
	if !ok {
		metrics.SyslogParseFailuresTotal.Inc()
		return map[string]string{"msg": string(line)}
	}

	fields := make(map[string]string, 8)
	if sm.Message != nil {
		fields["msg"] = *sm.Message
	} else {
		fields["msg"] = string(line)
	}
	if sm.Hostname != nil {
		fields["hostname"] = *sm.Hostname
	}
	if sm.Appname != nil {
		fields["appname"] = *sm.Appname
	}
	if sm.ProcID != nil {
		fields["procid"] = *sm.ProcID
	}
	if sm.MsgID != nil {
		fields["msgid"] = *sm.MsgID
	}
	if sm.Severity != nil {
		fields["severity"] = strconv.Itoa(int(*sm.Severity))
	}
	if sm.Facility != nil {
		fields["facility"] = strconv.Itoa(int(*sm.Facility))
	}

	return fields
}
