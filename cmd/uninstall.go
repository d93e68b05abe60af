package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/jfmyers9/playkeeper/internal/daemon"
	"github.com/spf13/cobra"
)

// uninstallCmd represents the uninstall command
var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall the playkeeper login agent",
	Long: `Uninstall the playkeeper daemon agent and stop it from running automatically.

This command will:
  - Stop the running daemon (if any)
  - Unload it from launchd or systemd
  - Remove the agent file

After uninstalling, the daemon will no longer run automatically on login.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := daemon.ServiceKindFor(runtime.GOOS)
		if kind == daemon.ServiceUnsupported {
			return fmt.Errorf("uninstall is not supported on %s", runtime.GOOS)
		}

		servicePath, err := daemon.GetServicePath(kind)
		if err != nil {
			return fmt.Errorf("failed to get agent path: %w", err)
		}

		// Check if the agent exists
		if _, err := os.Stat(servicePath); os.IsNotExist(err) {
			fmt.Println("Daemon is not installed (agent file not found)")
			return nil
		}

		fmt.Println("Stopping daemon...")
		if err := unloadDaemon(kind); err != nil {
			fmt.Printf("Warning: failed to unload daemon: %v\n", err)
			fmt.Println("Continuing with agent removal...")
		} else {
			fmt.Println("✓ Daemon stopped")
		}

		if err := os.Remove(servicePath); err != nil {
			return fmt.Errorf("failed to remove agent file: %w", err)
		}

		fmt.Printf("✓ Removed %s\n", servicePath)
		fmt.Println("\nThe playkeeper daemon has been uninstalled successfully.")
		fmt.Println("It will no longer run automatically on login.")
		fmt.Println("\nTo reinstall, run:")
		fmt.Println("  playkeeper install")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
