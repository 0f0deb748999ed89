//go:build !unix

package sidecar

import "os/exec"

func configureProcAttr(*exec.Cmd) {}

func killGroup(*exec.Cmd) {}
