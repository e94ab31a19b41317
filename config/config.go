package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
)

// Scan modes. Home mode walks discovered ~/.ssh directories; full mode walks
// the start paths and filters regular files by size.
const (
	ModeHome = "home"
	ModeFull = "full"
)

type Config struct {
	Mode            string        `json:"mode"`
	StartPaths      []string      `json:"start_paths"`
	ScanKeys        bool          `json:"scan_keys"`
	ScanAgents      bool          `json:"scan_agents"`
	ScanAuthorized  bool          `json:"scan_authorized_keys"`
	SizeMin         int64         `json:"size_min"`
	SizeMax         int64         `json:"size_max"`
	ExcludePatterns []string      `json:"exclude_patterns"`
	OutputFormat    string        `json:"output_format"`
	OutputFileName  string        `json:"output_file_name"`
	Concurrency     int           `json:"concurrency"`
	NiceLevel       string        `json:"nice_level"`
	LogLevel        string        `json:"log_level"`
	MaxIOPerSecond  int           `json:"max_io_per_second"`
	ToolTimeout     time.Duration `json:"tool_timeout"`
	UseKeygen       bool          `json:"use_ssh_keygen"`
	KeygenPath      string        `json:"ssh_keygen_path"`
	SSHDConfigPath  string        `json:"sshd_config_path"`
	PasswdPath      string        `json:"passwd_path"`
	AgentGlobs      []string      `json:"agent_socket_globs"`
	ConfigFile      string        `json:"config_file"`
	ConcurrencySet  bool          `json:"-"`
}

func LoadConfig() (*Config, error) {
	cfg := defaults()

	mode := flag.String("mode", cfg.Mode, fmt.Sprintf("Scan mode: home or full (default: %s).", cfg.Mode))
	paths := flag.String("path", strings.Join(cfg.StartPaths, ","), "Comma-separated start paths for full mode (default: /).")
	scanKeys := flag.Bool("scan-keys", cfg.ScanKeys, fmt.Sprintf("Scan for private key files (default: %t).", cfg.ScanKeys))
	scanAgents := flag.Bool("scan-agents", cfg.ScanAgents, fmt.Sprintf("Query discovered SSH agent sockets (default: %t).", cfg.ScanAgents))
	scanAuthorized := flag.Bool("scan-authorized-keys", cfg.ScanAuthorized, fmt.Sprintf("Collect authorized_keys entries (default: %t).", cfg.ScanAuthorized))
	sizeMin := flag.Int64("size-min", cfg.SizeMin, fmt.Sprintf("Minimum file size in bytes considered in full mode (default: %d).", cfg.SizeMin))
	sizeMax := flag.Int64("size-max", cfg.SizeMax, fmt.Sprintf("Maximum file size in bytes considered in full mode (default: %d).", cfg.SizeMax))
	excludes := flag.String("exclude", "", "Comma-separated exclude patterns, glob or regex (default: none).")
	format := flag.String("format", cfg.OutputFormat, fmt.Sprintf("Output format: lines or ndjson (default: %s).", cfg.OutputFormat))
	output := flag.String("output", cfg.OutputFileName, "Output file name, - for stdout (default: -).")
	concurrency := flag.Int("concurrency", cfg.Concurrency, fmt.Sprintf("Worker pool size (default: %d).", cfg.Concurrency))
	nice := flag.String("nice", cfg.NiceLevel, fmt.Sprintf("Nice level: high, medium, or low (default: %s).", cfg.NiceLevel))
	logLevel := flag.String("log-level", cfg.LogLevel, fmt.Sprintf("Log level: debug, info, warn, error, fatal, or panic (default: %s).", cfg.LogLevel))
	maxIO := flag.Int("max-io-per-second", cfg.MaxIOPerSecond, fmt.Sprintf("Maximum file dispatches per second, 0 for unlimited (default: %d).", cfg.MaxIOPerSecond))
	toolTimeout := flag.Duration("tool-timeout", cfg.ToolTimeout, "Timeout for key tool invocations (default: 10s).")
	useKeygen := flag.Bool("use-ssh-keygen", cfg.UseKeygen, fmt.Sprintf("Derive and fingerprint keys with the ssh-keygen binary instead of in-process parsing (default: %t).", cfg.UseKeygen))
	keygenPath := flag.String("ssh-keygen-path", cfg.KeygenPath, fmt.Sprintf("Path to the ssh-keygen binary (default: %s).", cfg.KeygenPath))
	sshdConfig := flag.String("sshd-config", cfg.SSHDConfigPath, fmt.Sprintf("Path to sshd_config for AuthorizedKeysFile resolution (default: %s).", cfg.SSHDConfigPath))
	passwdPath := flag.String("passwd", cfg.PasswdPath, fmt.Sprintf("Path to the passwd database (default: %s).", cfg.PasswdPath))
	agentGlobs := flag.String("agent-globs", strings.Join(cfg.AgentGlobs, ","), "Comma-separated globs for agent socket discovery.")
	configFile := flag.String("config", "", "Path to JSON configuration file (default: none).")

	flag.Parse()

	if *configFile != "" {
		cfg.ConfigFile = *configFile
		if err := cfg.loadFromFile(*configFile); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Mode = strings.ToLower(*mode)
		case "path":
			cfg.StartPaths = parseCommaSeparated(*paths)
		case "scan-keys":
			cfg.ScanKeys = *scanKeys
		case "scan-agents":
			cfg.ScanAgents = *scanAgents
		case "scan-authorized-keys":
			cfg.ScanAuthorized = *scanAuthorized
		case "size-min":
			cfg.SizeMin = *sizeMin
		case "size-max":
			cfg.SizeMax = *sizeMax
		case "exclude":
			cfg.ExcludePatterns = parseCommaSeparated(*excludes)
		case "format":
			cfg.OutputFormat = strings.ToLower(*format)
		case "output":
			cfg.OutputFileName = *output
		case "concurrency":
			cfg.Concurrency = *concurrency
			cfg.ConcurrencySet = true
		case "nice":
			cfg.NiceLevel = *nice
		case "log-level":
			cfg.LogLevel = *logLevel
		case "max-io-per-second":
			cfg.MaxIOPerSecond = *maxIO
		case "tool-timeout":
			cfg.ToolTimeout = *toolTimeout
		case "use-ssh-keygen":
			cfg.UseKeygen = *useKeygen
		case "ssh-keygen-path":
			cfg.KeygenPath = *keygenPath
		case "sshd-config":
			cfg.SSHDConfigPath = *sshdConfig
		case "passwd":
			cfg.PasswdPath = *passwdPath
		case "agent-globs":
			cfg.AgentGlobs = parseCommaSeparated(*agentGlobs)
		}
	})

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Mode:           ModeHome,
		StartPaths:     []string{"/"},
		ScanKeys:       true,
		ScanAgents:     true,
		ScanAuthorized: true,
		SizeMin:        200,
		SizeMax:        14000,
		OutputFormat:   "lines",
		OutputFileName: "-",
		Concurrency:    runtime.NumCPU(),
		NiceLevel:      "medium",
		LogLevel:       "info",
		MaxIOPerSecond: 0,
		ToolTimeout:    10 * time.Second,
		UseKeygen:      false,
		KeygenPath:     "ssh-keygen",
		SSHDConfigPath: "/etc/ssh/sshd_config",
		PasswdPath:     "/etc/passwd",
		AgentGlobs:     []string{"/tmp/ssh-*/agent.*"},
	}
}

func (cfg *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

func (cfg *Config) validate() error {
	switch cfg.Mode {
	case ModeHome, ModeFull:
	default:
		return fmt.Errorf("invalid mode %q: must be %s or %s", cfg.Mode, ModeHome, ModeFull)
	}
	switch cfg.OutputFormat {
	case "lines", "ndjson":
	default:
		return fmt.Errorf("invalid output format %q: must be lines or ndjson", cfg.OutputFormat)
	}
	switch cfg.NiceLevel {
	case "high", "medium", "low":
	default:
		return fmt.Errorf("invalid nice level %q", cfg.NiceLevel)
	}
	if cfg.SizeMin < 0 || cfg.SizeMax < 0 {
		return fmt.Errorf("size bounds must be non-negative")
	}
	if cfg.SizeMax > 0 && cfg.SizeMin > cfg.SizeMax {
		return fmt.Errorf("size-min %d exceeds size-max %d", cfg.SizeMin, cfg.SizeMax)
	}
	if cfg.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", cfg.Concurrency)
	}
	if cfg.ToolTimeout <= 0 {
		return fmt.Errorf("tool timeout must be positive")
	}
	if cfg.Mode == ModeFull && len(cfg.StartPaths) == 0 {
		return fmt.Errorf("full mode requires at least one start path")
	}
	return nil
}

func parseCommaSeparated(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
