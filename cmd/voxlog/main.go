package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	voxlog "github.com/voxlog-ai/voxlog/pkg"
	pkgdb "github.com/voxlog-ai/voxlog/pkg/db"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:     "voxlog",
	Short:   "A voice diary: speak, and get back structured, searchable entries.",
	Long:    ``,
	Version: fmt.Sprintf("v%s", voxlog.Version),
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var completionShells = []string{"bash", "zsh", "fish", "powershell"}

var completionCmd = &cobra.Command{
	Use:   fmt.Sprintf("completion %s", strings.Join(completionShells, "|")),
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for voxlog.

The command prints a completion script to stdout. You can source it in your shell
or install it to the appropriate location for your shell to enable completions permanently.

Examples:

  Bash (current shell):
    $ source <(voxlog completion bash)

  Bash (persist):
    $ voxlog completion bash > /etc/bash_completion.d/voxlog

  Zsh:
    $ voxlog completion zsh > "${fpath[1]}/_voxlog"

  Fish:
    $ voxlog completion fish | source
    $ voxlog completion fish > ~/.config/fish/completions/voxlog.fish

  PowerShell:
    PS> voxlog completion powershell | Out-String | Invoke-Expression`,
	DisableFlagsInUseLine: true,
	ValidArgs:             completionShells,
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(cmd.OutOrStdout())
		case "zsh":
			return rootCmd.GenZshCompletion(cmd.OutOrStdout())
		case "fish":
			return rootCmd.GenFishCompletion(cmd.OutOrStdout(), true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(cmd.OutOrStdout())
		default:
			return fmt.Errorf("unsupported shell: %s", args[0])
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of voxlog",
	Long:  `All software has versions. This is voxlog's`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(voxlog.Version)
	},
}

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the Voxlog database",
	Long:  `Provides commands for managing the Voxlog SQLite database, including schema upgrades.`,
}

var dbUpgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Upgrade the Voxlog database schema to the latest version for the diariesdb component",
	Long: `Connects to the SQLite database at the specified path (via --dbpath) and applies any necessary
schema migrations to bring the diariesdb component up to the current application schema version.
If the database does not exist or is uninitialized for this component, it will be created
and initialized with the latest schema for the diariesdb component.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		walEnabled, _ := cmd.Flags().GetBool("wal")
		syncMode, _ := cmd.Flags().GetString("sync")

		if dbPath == "" {
			return fmt.Errorf("database path must be set using the --dbpath flag")
		}

		fmt.Printf("Attempting to upgrade diariesdb component in database at: %s (WAL: %t, Sync: %s)\n", dbPath, walEnabled, syncMode)

		dbConn, err := pkgdb.OpenDBConnection(dbPath, walEnabled, syncMode)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		if err := pkgdb.UpgradeDB(dbConn, dbPath, pkgdb.TargetSchemaVersion); err != nil {
			return err
		}
		return nil
	},
}

func initCmd() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "dbpath", "", "Path to the Voxlog SQLite database file (e.g., ./diary.db)")

	dbUpgradeCmd.Flags().Bool("wal", true, "Enable SQLite WAL (Write-Ahead Logging) mode.")
	dbUpgradeCmd.Flags().String("sync", "NORMAL", "SQLite synchronous pragma (OFF, NORMAL, FULL, EXTRA).")
	dbCmd.AddCommand(dbUpgradeCmd)

	entriesCmd.AddCommand(entryListCmd, entrySearchCmd, entryGetCmd, entryDeleteCmd)

	rootCmd.AddCommand(completionCmd, versionCmd, dbCmd, entriesCmd, serveCmd, mcpCmd)
}

func main() {
	initCmd()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
