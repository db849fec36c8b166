package testutil

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Project is a temporary application directory with its own isolated
// config and state homes.
type Project struct {
	Path string
	Home string
}

// NewProject creates a project directory.
func NewProject() (*Project, error) {
	home, err := os.MkdirTemp("", "tails-home-*")
	if err != nil {
		return nil, err
	}
	path, err := os.MkdirTemp("", "tails-project-*")
	if err != nil {
		os.RemoveAll(home)
		return nil, err
	}
	return &Project{Path: path, Home: home}, nil
}

// WriteFile writes a file relative to the project directory.
func (p *Project) WriteFile(name, content string) error {
	path := filepath.Join(p.Path, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}

// ReadPid reads a pid a child wrote to a file in the project directory.
func (p *Project) ReadPid(name string) (int, error) {
	data, err := os.ReadFile(filepath.Join(p.Path, name))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// Environ returns the environment a tails process runs with in this
// project: the caller's environment with config and state homes isolated.
func (p *Project) Environ() []string {
	env := make([]string, 0, len(os.Environ())+4)
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "TAILS_") {
			continue
		}
		env = append(env, kv)
	}
	return append(env,
		"HOME="+p.Home,
		"XDG_CONFIG_HOME="+filepath.Join(p.Home, ".config"),
		"XDG_STATE_HOME="+filepath.Join(p.Home, ".state"),
	)
}

// Cleanup removes the project and its homes.
func (p *Project) Cleanup() {
	os.RemoveAll(p.Path)
	os.RemoveAll(p.Home)
}

// FindAvailablePort returns a TCP port that was free a moment ago.
func FindAvailablePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// PortFree reports whether port can be bound again.
func PortFree(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}

// Healthy reports whether the demo application answers on port.
func Healthy(port int) bool {
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
