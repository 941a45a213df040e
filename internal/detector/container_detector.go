package detector

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultCLI is the container manager executable used when none is configured.
const DefaultCLI = "docker"

// ContainerNameDetector asks the container manager CLI whether a running
// container carries exactly Name.
type ContainerNameDetector struct {
	CLI  string
	Name string
}

func (d ContainerNameDetector) cli() string {
	if strings.TrimSpace(d.CLI) == "" {
		return DefaultCLI
	}
	return d.CLI
}

func (d ContainerNameDetector) Alive(ctx context.Context) (bool, error) {
	// #nosec G204
	cmd := exec.CommandContext(ctx, d.cli(), "ps",
		"--filter", "name="+d.Name,
		"--filter", "status=running",
		"--format", "{{.Names}}")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("%s ps: %w: %s", d.cli(), err, strings.TrimSpace(stderr.String()))
	}
	// name filters match substrings; only an exact line counts
	s := bufio.NewScanner(bytes.NewReader(out))
	for s.Scan() {
		if strings.TrimSpace(s.Text()) == d.Name {
			return true, nil
		}
	}
	return false, nil
}

func (d ContainerNameDetector) Describe() string { return "container:" + d.Name }
