package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hotdog.yml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

const minimalRules = `
rules:
  - name: catch-all
    regex: ".*"
    actions:
      - type: stop
`

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
global:
  listen:
    address: 127.0.0.1
    port: 1514
  status:
    address: 127.0.0.1
    port: 8585
  kafka:
    buffer: 512
    topic: logs
    conf:
      bootstrap.servers: "kafka-1:9092,kafka-2:9092"
      batch.size: "100"
      required.acks: all
  metrics:
    statsd: "localhost:8125"
  logging:
    level: debug
rules:
  - name: enrich
    jmespath: "meta.topic"
    actions:
      - type: merge
        json:
          meta:
            hotdog:
              version: "{{version}}"
      - type: stop
  - name: catch-all
    regex: ".*"
    actions:
      - type: stop
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Global.Listen.Address)
	assert.Equal(t, 1514, cfg.Global.Listen.Port)
	assert.False(t, cfg.Global.Listen.TLS.Enabled())
	assert.Equal(t, 8585, cfg.Global.Status.Port)
	assert.Equal(t, 512, cfg.Global.Kafka.Buffer)
	assert.Equal(t, "logs", cfg.Global.Kafka.Topic)
	assert.Equal(t, "kafka-1:9092,kafka-2:9092", cfg.Global.Kafka.Conf["bootstrap.servers"])
	assert.Equal(t, "all", cfg.Global.Kafka.Conf["required.acks"])
	assert.Equal(t, "localhost:8125", cfg.Global.Metrics.Statsd)
	assert.Equal(t, "debug", cfg.Global.Logging.Level)
	require.Len(t, cfg.Rules, 2)
	assert.Equal(t, "enrich", cfg.Rules[0].Name)
	assert.Equal(t, "meta.topic", cfg.Rules[0].JMESPath)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
global:
  kafka:
    topic: logs
    conf:
      bootstrap.servers: "localhost:9092"
`+minimalRules)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Global.Listen.Address)
	assert.Equal(t, 1514, cfg.Global.Listen.Port)
	assert.Equal(t, "0.0.0.0", cfg.Global.Status.Address)
	assert.Equal(t, 8585, cfg.Global.Status.Port)
	assert.Equal(t, 1024, cfg.Global.Kafka.Buffer)
	assert.Equal(t, "info", cfg.Global.Logging.Level)
	assert.Empty(t, cfg.Global.Metrics.Statsd)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}

func TestLoadValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing default topic",
			yaml: `
global:
  kafka:
    conf:
      bootstrap.servers: "localhost:9092"
` + minimalRules,
		},
		{
			name: "missing bootstrap servers",
			yaml: `
global:
  kafka:
    topic: logs
` + minimalRules,
		},
		{
			name: "listen port out of range",
			yaml: `
global:
  listen:
    port: 99999
  kafka:
    topic: logs
    conf:
      bootstrap.servers: "localhost:9092"
` + minimalRules,
		},
		{
			name: "negative buffer",
			yaml: `
global:
  kafka:
    buffer: -1
    topic: logs
    conf:
      bootstrap.servers: "localhost:9092"
` + minimalRules,
		},
		{
			name: "no rules",
			yaml: `
global:
  kafka:
    topic: logs
    conf:
      bootstrap.servers: "localhost:9092"
rules: []
`,
		},
		{
			name: "tls cert without key",
			yaml: `
global:
  listen:
    tls:
      cert: /etc/hotdog/cert.pem
  kafka:
    topic: logs
    conf:
      bootstrap.servers: "localhost:9092"
` + minimalRules,
		},
		{
			name: "tls cert unreadable",
			yaml: `
global:
  listen:
    tls:
      cert: /nonexistent/cert.pem
      key: /nonexistent/key.pem
  kafka:
    topic: logs
    conf:
      bootstrap.servers: "localhost:9092"
` + minimalRules,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HOTDOG_LISTEN_PORT", "2514")
	t.Setenv("HOTDOG_LOGGING_LEVEL", "warn")

	path := writeConfig(t, `
global:
  kafka:
    topic: logs
    conf:
      bootstrap.servers: "localhost:9092"
`+minimalRules)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2514, cfg.Global.Listen.Port)
	assert.Equal(t, "warn", cfg.Global.Logging.Level)
}

func TestRuleSpecsSerializesMergeFragments(t *testing.T) {
	cfg := &Config{
		Rules: []RuleConfig{
			{
				Name:     "enrich",
				JMESPath: "meta.topic",
				Actions: []ActionConfig{
					{
						Type: "merge",
						JSON: map[string]interface{}{
							"meta": map[string]interface{}{
								"version": "{{version}}",
							},
						},
					},
					{Type: "stop"},
				},
			},
			{
				Name:  "route",
				Regex: "app=(?P<app>\\w+)",
				Field: "msg",
				Actions: []ActionConfig{
					{Type: "forward", Topic: "logs-{{app}}"},
				},
			},
		},
	}

	specs, err := cfg.RuleSpecs()
	require.NoError(t, err)
	require.Len(t, specs, 2)

	assert.Equal(t, "enrich", specs[0].Name)
	assert.JSONEq(t, `{"meta":{"version":"{{version}}"}}`, specs[0].Actions[0].JSON)
	assert.Equal(t, "stop", specs[0].Actions[1].Type)

	assert.Equal(t, "logs-{{app}}", specs[1].Actions[0].Topic)
	assert.Empty(t, specs[1].Actions[0].JSON)
}
