package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/jfmyers9/playkeeper/internal/daemon"
	"github.com/spf13/cobra"
)

// installCmd represents the install command
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the playkeeper daemon as a login agent",
	Long: `Install the playkeeper daemon as an agent that runs automatically on login.

On macOS this will:
  - Generate a launchd plist file for the daemon
  - Install it to ~/Library/LaunchAgents/
  - Load the agent with launchctl

On Linux this will:
  - Generate a systemd user unit for the daemon
  - Install it to ~/.config/systemd/user/
  - Enable and start it with systemctl --user

The daemon attaches to the browser configured in browser.control_url.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := daemon.ServiceKindFor(runtime.GOOS)
		if kind == daemon.ServiceUnsupported {
			return fmt.Errorf("install is not supported on %s", runtime.GOOS)
		}

		// Get the path to the current executable
		binaryPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}

		// Resolve symlinks to get the actual binary path
		binaryPath, err = filepath.EvalSymlinks(binaryPath)
		if err != nil {
			return fmt.Errorf("failed to resolve executable path: %w", err)
		}

		// Get the log path
		logPath, err := daemon.GetDefaultLogPath()
		if err != nil {
			return fmt.Errorf("failed to get log path: %w", err)
		}

		// Create log directory if it doesn't exist
		if err := os.MkdirAll(logPath, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		// Get home directory for working directory
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		content, err := daemon.GenerateService(kind, daemon.ServiceConfig{
			BinaryPath:       binaryPath,
			LogPath:          logPath,
			WorkingDirectory: home,
		})
		if err != nil {
			return fmt.Errorf("failed to generate %s agent: %w", kind, err)
		}

		servicePath, err := daemon.GetServicePath(kind)
		if err != nil {
			return fmt.Errorf("failed to get agent path: %w", err)
		}

		if err := os.MkdirAll(filepath.Dir(servicePath), 0755); err != nil {
			return fmt.Errorf("failed to create agent directory: %w", err)
		}

		// Check if the agent already exists
		if _, err := os.Stat(servicePath); err == nil {
			fmt.Println("Daemon is already installed. Uninstalling first...")
			if err := unloadDaemon(kind); err != nil {
				fmt.Printf("Warning: failed to unload existing daemon: %v\n", err)
			}
		}

		if err := os.WriteFile(servicePath, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write agent file: %w", err)
		}

		fmt.Printf("✓ Installed %s agent to %s\n", kind, servicePath)

		if err := loadDaemon(kind, servicePath); err != nil {
			return fmt.Errorf("failed to load daemon: %w", err)
		}

		fmt.Println("✓ Daemon loaded and started successfully")
		fmt.Printf("✓ Logs will be written to %s\n", logPath)
		fmt.Println("\nThe playkeeper daemon is now running and will start automatically on login.")
		fmt.Println("\nYou can check the daemon status with:")
		fmt.Printf("  %s\n", statusHint(kind))
		fmt.Println("\nTo uninstall, run:")
		fmt.Println("  playkeeper uninstall")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}

func statusHint(kind daemon.ServiceKind) string {
	if kind == daemon.ServiceSystemd {
		return "systemctl --user status playkeeper"
	}
	return "launchctl list | grep playkeeper"
}

// loadDaemon registers and starts the agent
func loadDaemon(kind daemon.ServiceKind, servicePath string) error {
	if kind == daemon.ServiceSystemd {
		if err := runQuiet("systemctl", "--user", "daemon-reload"); err != nil {
			return err
		}
		return runQuiet("systemctl", "--user", "enable", "--now", filepath.Base(servicePath))
	}

	domain, err := launchdDomain()
	if err != nil {
		return err
	}
	// Use launchctl bootstrap to load the agent
	return runQuiet("launchctl", "bootstrap", domain, servicePath)
}

// unloadDaemon stops the agent. A missing agent is only a warning.
func unloadDaemon(kind daemon.ServiceKind) error {
	if kind == daemon.ServiceSystemd {
		if err := runQuiet("systemctl", "--user", "disable", "--now", "playkeeper.service"); err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
		return nil
	}

	domain, err := launchdDomain()
	if err != nil {
		return err
	}
	// Bootout fails when the agent is not loaded, which is OK
	if err := runQuiet("launchctl", "bootout", domain+"/"+daemon.ServiceLabel); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}
	return nil
}

// launchdDomain returns the gui/<uid> domain of the current user
func launchdDomain() (string, error) {
	out, err := exec.Command("id", "-u").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get user ID: %w", err)
	}
	return "gui/" + strings.TrimSpace(string(out)), nil
}

// runQuiet runs a command and folds its output into the error
func runQuiet(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(output)); msg != "" {
			return fmt.Errorf("%s %s failed: %s", name, args[0], msg)
		}
		return fmt.Errorf("failed to run %s %s: %w", name, args[0], err)
	}
	return nil
}
