package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the state store session",
	Long: `Resolve credentials and connect to the configured project.
Prints the project, the credential strategy that was selected and whether
the realtime database is available. Useful to check a deployment's
credential setup without writing anything.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var initCredentials string

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initCredentials, "credentials", "", "service account file (takes priority over all other credential sources)")
}

func runInit(cmd *cobra.Command, args []string) error {
	mgr := newManager()
	defer mgr.Close()

	if err := mgr.Initialize(cmd.Context(), initCredentials); err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}

	realtime, err := mgr.Realtime(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to open realtime database: %w", err)
	}
	strategy, _ := mgr.Strategy()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "State store initialized successfully!")
	fmt.Fprintf(out, "Project:     %s\n", mgr.ProjectID())
	fmt.Fprintf(out, "Credentials: %s\n", strategy)
	fmt.Fprintf(out, "Backend:     %s\n", mgr.Config().Store.Backend)
	if realtime != nil {
		fmt.Fprintf(out, "Realtime:    %s\n", mgr.Config().Firebase.DatabaseURL)
	} else {
		fmt.Fprintln(out, "Realtime:    disabled (firebase.database_url not set)")
	}
	return nil
}
