package orchestrator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"filestorm/internal/protocol"
)

// LoadMatrix reads a YAML plan file describing the scenario dimensions.
// Dimensions absent from the file keep their defaults, so a plan can narrow
// a single axis:
//
//	modes: [shared]
//	volumes: [1048576]
func LoadMatrix(path string) (Matrix, error) {
	m := DefaultMatrix()

	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("read plan: %w", err)
	}

	var plan Matrix
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return m, fmt.Errorf("parse plan: %w", err)
	}

	if len(plan.Modes) > 0 {
		m.Modes = plan.Modes
	}
	if len(plan.Operations) > 0 {
		m.Operations = plan.Operations
	}
	if len(plan.Volumes) > 0 {
		m.Volumes = plan.Volumes
	}
	if len(plan.ClientPools) > 0 {
		m.ClientPools = plan.ClientPools
	}
	if len(plan.ServerPools) > 0 {
		m.ServerPools = plan.ServerPools
	}

	return m, validateMatrix(m)
}

func validateMatrix(m Matrix) error {
	for _, mode := range m.Modes {
		if mode != "shared" && mode != "isolated" {
			return fmt.Errorf("plan: unknown mode %q", mode)
		}
	}
	for _, op := range m.Operations {
		switch op {
		case protocol.OpList, protocol.OpGet, protocol.OpUpload:
		default:
			return fmt.Errorf("plan: operation %q not in the load matrix", op)
		}
	}
	for _, v := range m.Volumes {
		if v <= 0 {
			return fmt.Errorf("plan: volume must be positive, got %d", v)
		}
	}
	for _, p := range append(append([]int(nil), m.ClientPools...), m.ServerPools...) {
		if p < 1 {
			return fmt.Errorf("plan: pool size must be at least 1, got %d", p)
		}
	}
	return nil
}
