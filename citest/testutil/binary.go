package testutil

import (
	"os/exec"

	. "github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega/gexec"
)

const binaryPackage = "github.com/opencode-ai/tails/cmd/tails"

// BuildBinary compiles the tails binary and returns its path. Callers
// remove it with gexec.CleanupBuildArtifacts.
func BuildBinary() (string, error) {
	return gexec.Build(binaryPackage)
}

// Start runs the tails binary in the project directory with the project's
// environment. The demo application is addressed as "demo".
func (p *Project) Start(binary string, args ...string) (*gexec.Session, error) {
	cmd := exec.Command(binary, args...)
	cmd.Dir = p.Path
	cmd.Env = p.Environ()
	return gexec.Start(cmd, GinkgoWriter, GinkgoWriter)
}
