package scenario

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Endpoint identifies one agent service. Identity is (Host, Port); the launch
// command may be empty for agents managed outside this process.
type Endpoint struct {
	Role string
	Host string
	Port int
	Cmd  string
}

// URL returns the base URL used for wire requests and health probes.
func (e Endpoint) URL() string {
	return fmt.Sprintf("http://%s:%d", e.Host, e.Port)
}

// Addr returns the host:port pair.
func (e Endpoint) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// Scenario is the parsed scenario file: one green (evaluator) agent, an
// ordered list of participants, and free-form evaluation config.
type Scenario struct {
	GreenAgent   Endpoint
	Participants []Endpoint
	Config       map[string]any
}

// ConfigError marks a bad or missing scenario file. It is fatal before any
// process is launched.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("scenario %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// scenarioFile mirrors the TOML layout on disk.
type scenarioFile struct {
	GreenAgent   agentEntry     `toml:"green_agent"`
	Participants []agentEntry   `toml:"participants"`
	Config       map[string]any `toml:"config"`
}

type agentEntry struct {
	Role     string `toml:"role"`
	Endpoint string `toml:"endpoint"`
	Cmd      string `toml:"cmd"`
}

// Load reads and validates a scenario TOML file. All failures are reported as
// *ConfigError.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	var file scenarioFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	sc, err := fromFile(file)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return sc, nil
}

func fromFile(file scenarioFile) (*Scenario, error) {
	host, port, err := ParseEndpoint(file.GreenAgent.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("green_agent: %w", err)
	}
	sc := &Scenario{
		GreenAgent: Endpoint{
			Role: "green",
			Host: host,
			Port: port,
			Cmd:  file.GreenAgent.Cmd,
		},
		Config: file.Config,
	}
	if sc.Config == nil {
		sc.Config = map[string]any{}
	}
	for i, p := range file.Participants {
		host, port, err := ParseEndpoint(p.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("participants[%d]: %w", i, err)
		}
		sc.Participants = append(sc.Participants, Endpoint{
			Role: p.Role,
			Host: host,
			Port: port,
			Cmd:  p.Cmd,
		})
	}
	return sc, nil
}

// ParseEndpoint extracts host and port from an endpoint string, tolerating an
// optional http(s) scheme and a path suffix.
func ParseEndpoint(raw string) (string, int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", 0, errors.New("endpoint is required")
	}
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "https://")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	host, portStr, err := splitHostPort(s)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("endpoint %q: invalid port %q", raw, portStr)
	}
	return host, port, nil
}

func splitHostPort(s string) (string, string, error) {
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return "", "", fmt.Errorf("endpoint %q: missing port", s)
	}
	host := s[:i]
	if host == "" {
		return "", "", fmt.Errorf("endpoint %q: missing host", s)
	}
	if _, err := url.Parse("http://" + s); err != nil {
		return "", "", fmt.Errorf("endpoint %q: %w", s, err)
	}
	return host, s[i+1:], nil
}

// Roles returns the participant role → URL mapping used to build an
// evaluation request.
func (s *Scenario) Roles() map[string]string {
	roles := make(map[string]string, len(s.Participants))
	for _, p := range s.Participants {
		roles[p.Role] = p.URL()
	}
	return roles
}

// ConfigString returns a string-valued config key, or def when absent.
func (s *Scenario) ConfigString(key, def string) string {
	if v, ok := s.Config[key].(string); ok {
		return v
	}
	return def
}

// ConfigInt returns an integer-valued config key, or def when absent. TOML
// integers decode as int64.
func (s *Scenario) ConfigInt(key string, def int) int {
	switch v := s.Config[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}
