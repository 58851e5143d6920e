//go:build windows

package conformance

import "os/exec"

func setConformanceProcessAttrs(cmd *exec.Cmd) {}
