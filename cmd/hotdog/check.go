package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hotdog/internal/config"
	"hotdog/internal/logger"
	"hotdog/internal/rule"
)

// checkCmd runs a log file through the configured rules and reports which
// rules each line matches, without touching Kafka. Handy for validating a
// ruleset before deploying it.
func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE",
		Short: "Test a log file against the configured rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}

			specs, err := cfg.RuleSpecs()
			if err != nil {
				return err
			}
			rules, err := rule.Compile(specs, cfg.Global.Kafka.Topic, rule.NewExpander(version), logger.NopLogger())
			if err != nil {
				return fmt.Errorf("failed to compile rules: %w", err)
			}

			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer file.Close()

			out := cmd.OutOrStdout()
			scanner := bufio.NewScanner(file)
			number := 0
			for scanner.Scan() {
				number++
				line := scanner.Text()
				if line == "" {
					continue
				}

				rec := rule.NewRecord([]byte(line), nil)
				matches := rules.MatchingRules(rec)
				if len(matches) == 0 {
					continue
				}

				fmt.Fprintf(out, "Line %d matches on:\n", number)
				for _, name := range matches {
					fmt.Fprintf(out, "\t- %s\n", name)
				}
			}
			return scanner.Err()
		},
	}
}
