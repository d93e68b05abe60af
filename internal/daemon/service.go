package daemon

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// ServiceLabel identifies the background agent to launchd and systemd
const ServiceLabel = "com.playkeeper.daemon"

// ServiceKind is the init system a background agent is installed into
type ServiceKind int

const (
	ServiceUnsupported ServiceKind = iota
	ServiceLaunchd
	ServiceSystemd
)

func (k ServiceKind) String() string {
	switch k {
	case ServiceLaunchd:
		return "launchd"
	case ServiceSystemd:
		return "systemd"
	default:
		return "unsupported"
	}
}

// ServiceKindFor returns the agent kind used on goos
func ServiceKindFor(goos string) ServiceKind {
	switch goos {
	case "darwin":
		return ServiceLaunchd
	case "linux":
		return ServiceSystemd
	default:
		return ServiceUnsupported
	}
}

const plistTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>{{.Label}}</string>
	<key>ProgramArguments</key>
	<array>
		<string>{{.BinaryPath}}</string>
		<string>run</string>
	</array>
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<true/>
	<key>StandardOutPath</key>
	<string>{{.LogPath}}/playkeeper.log</string>
	<key>StandardErrorPath</key>
	<string>{{.LogPath}}/playkeeper.err</string>
	<key>WorkingDirectory</key>
	<string>{{.WorkingDirectory}}</string>
	<key>EnvironmentVariables</key>
	<dict>
		<key>PATH</key>
		<string>/usr/local/bin:/usr/bin:/bin:/usr/sbin:/sbin</string>
	</dict>
</dict>
</plist>
`

const systemdTemplate = `[Unit]
Description=playkeeper playback keeper
After=graphical-session.target

[Service]
Type=simple
ExecStart={{.BinaryPath}} run --log-file {{.LogPath}}/playkeeper.log
WorkingDirectory={{.WorkingDirectory}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`

// ServiceConfig holds the values substituted into an agent definition
type ServiceConfig struct {
	BinaryPath       string
	LogPath          string
	WorkingDirectory string
}

// GenerateService renders the agent definition for kind
func GenerateService(kind ServiceKind, config ServiceConfig) (string, error) {
	var src string
	switch kind {
	case ServiceLaunchd:
		src = plistTemplate
	case ServiceSystemd:
		src = systemdTemplate
	default:
		return "", fmt.Errorf("no background agent support for %s", kind)
	}

	tmpl, err := template.New(kind.String()).Parse(src)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template: %w", kind, err)
	}

	data := struct {
		ServiceConfig
		Label string
	}{config, ServiceLabel}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", kind, err)
	}

	return buf.String(), nil
}

// GetServicePath returns where the agent definition for kind is installed
func GetServicePath(kind ServiceKind) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	switch kind {
	case ServiceLaunchd:
		return filepath.Join(home, "Library", "LaunchAgents", ServiceLabel+".plist"), nil
	case ServiceSystemd:
		return filepath.Join(home, ".config", "systemd", "user", "playkeeper.service"), nil
	default:
		return "", fmt.Errorf("no background agent support for %s", kind)
	}
}

// GetDefaultLogPath returns the default path for daemon logs
func GetDefaultLogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ".local", "share", "playkeeper", "logs"), nil
}
