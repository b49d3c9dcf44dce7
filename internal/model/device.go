package model

import (
	"fmt"
	"strings"
)

const (
	CPU  = "cpu"
	CUDA = "cuda"
	Auto = "auto"
)

// NormalizeDevice maps a user supplied device name onto auto, cpu or cuda.
func NormalizeDevice(name string) (string, error) {
	device := strings.ToLower(strings.TrimSpace(name))
	if device == "" {
		return Auto, nil
	}
	switch device {
	case CPU, CUDA, Auto:
		return device, nil
	default:
		return "", fmt.Errorf("unknown device %q (expected auto, cpu, or cuda)", device)
	}
}
