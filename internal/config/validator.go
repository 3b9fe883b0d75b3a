package config

import (
	"fmt"
	"os"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateStatic checks everything that must hold before the daemon starts.
// Rule contents are checked separately, at compile time, by the rule
// package; a failure either way refuses startup.
func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateListen(cfg.Global.Listen); err != nil {
		errors = append(errors, err)
	}

	if err := validateStatus(cfg.Global.Status); err != nil {
		errors = append(errors, err)
	}

	if err := validateKafka(cfg.Global.Kafka); err != nil {
		errors = append(errors, err)
	}

	if len(cfg.Rules) == 0 {
		errors = append(errors, &ValidationError{
			Field:   "rules",
			Message: "at least one rule is required",
		})
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateListen(cfg ListenConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "global.listen.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.TLS.Enabled() {
		if cfg.TLS.Cert == "" || cfg.TLS.Key == "" {
			return &ValidationError{
				Field:   "global.listen.tls",
				Message: "cert and key must both be set",
			}
		}
		for _, path := range []string{cfg.TLS.Cert, cfg.TLS.Key} {
			if _, err := os.Stat(path); err != nil {
				return &ValidationError{
					Field:   "global.listen.tls",
					Message: fmt.Sprintf("cannot read %s: %v", path, err),
				}
			}
		}
	}

	return nil
}

func validateStatus(cfg StatusConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "global.status.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}
	return nil
}

func validateKafka(cfg KafkaConfig) error {
	if cfg.Buffer < 1 {
		return &ValidationError{
			Field:   "global.kafka.buffer",
			Message: fmt.Sprintf("buffer must be at least 1, got %d", cfg.Buffer),
		}
	}

	if cfg.Topic == "" {
		return &ValidationError{
			Field:   "global.kafka.topic",
			Message: "default topic is required",
		}
	}

	if cfg.Conf["bootstrap.servers"] == "" {
		return &ValidationError{
			Field:   "global.kafka.conf",
			Message: "bootstrap.servers is required",
		}
	}

	return nil
}
