package config

import (
	"encoding/json"
	"fmt"

	"hotdog/internal/rule"
)

type Config struct {
	Global GlobalConfig `mapstructure:"global"`
	Rules  []RuleConfig `mapstructure:"rules"`
}

type GlobalConfig struct {
	Listen  ListenConfig  `mapstructure:"listen"`
	Status  StatusConfig  `mapstructure:"status"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type ListenConfig struct {
	Address string    `mapstructure:"address"`
	Port    int       `mapstructure:"port"`
	TLS     TLSConfig `mapstructure:"tls"`
}

type TLSConfig struct {
	Cert string `mapstructure:"cert"`
	Key  string `mapstructure:"key"`
}

// Enabled reports whether transport security material was configured;
// absence implies plaintext listening.
func (c TLSConfig) Enabled() bool {
	return c.Cert != "" || c.Key != ""
}

type StatusConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
}

type KafkaConfig struct {
	// Buffer is the dispatcher's maximum buffered-envelope count, a hard cap.
	Buffer int `mapstructure:"buffer"`
	// Conf is the opaque sink client settings map, passed through to the
	// producer.
	Conf map[string]string `mapstructure:"conf"`
	// Topic is the default destination for records no forward action claims.
	Topic string `mapstructure:"topic"`
}

type MetricsConfig struct {
	Statsd string `mapstructure:"statsd"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type RuleConfig struct {
	Name     string         `mapstructure:"name"`
	JMESPath string         `mapstructure:"jmespath"`
	Regex    string         `mapstructure:"regex"`
	Field    string         `mapstructure:"field"`
	Actions  []ActionConfig `mapstructure:"actions"`
}

type ActionConfig struct {
	Type     string                 `mapstructure:"type"`
	JSON     map[string]interface{} `mapstructure:"json"`
	Topic    string                 `mapstructure:"topic"`
	Template string                 `mapstructure:"template"`
}

// RuleSpecs converts the configured rule list into the rule package's
// compile input. Merge fragments are re-serialized to JSON here; placeholder
// tokens inside string values survive serialization untouched.
func (c *Config) RuleSpecs() ([]rule.Spec, error) {
	specs := make([]rule.Spec, 0, len(c.Rules))
	for i, rc := range c.Rules {
		spec := rule.Spec{
			Name:     rc.Name,
			JMESPath: rc.JMESPath,
			Regex:    rc.Regex,
			Field:    rc.Field,
		}
		for j, ac := range rc.Actions {
			as := rule.ActionSpec{
				Type:     ac.Type,
				Topic:    ac.Topic,
				Template: ac.Template,
			}
			if ac.JSON != nil {
				fragment, err := json.Marshal(ac.JSON)
				if err != nil {
					return nil, fmt.Errorf("rules[%d].actions[%d]: invalid json fragment: %w", i, j, err)
				}
				as.JSON = string(fragment)
			}
			spec.Actions = append(spec.Actions, as)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
