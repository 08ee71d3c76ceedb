package sqlite

import (
	"encoding/json"
	"fmt"

	"github.com/garyjia/flow-forge/internal/domain/workflow"
)

// Sets are stored as JSON arrays in TEXT columns.

func encodeRule(rule workflow.Rule) (dests, approvers string, err error) {
	d, err := json.Marshal(nonNil(rule.Destinations))
	if err != nil {
		return "", "", fmt.Errorf("failed to encode destinations: %w", err)
	}
	a, err := json.Marshal(nonNil(rule.Approvers))
	if err != nil {
		return "", "", fmt.Errorf("failed to encode approvers: %w", err)
	}
	return string(d), string(a), nil
}

func decodeRule(dests, approvers string) (workflow.Rule, error) {
	var rule workflow.Rule
	if err := json.Unmarshal([]byte(dests), &rule.Destinations); err != nil {
		return rule, fmt.Errorf("failed to decode destinations: %w", err)
	}
	if err := json.Unmarshal([]byte(approvers), &rule.Approvers); err != nil {
		return rule, fmt.Errorf("failed to decode approvers: %w", err)
	}
	return rule, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
