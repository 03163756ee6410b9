//go:build !unix

package execx

import "os/exec"

func configureProcessGroup(cmd *exec.Cmd) {}
