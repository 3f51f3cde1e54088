package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moltagent/moltagent/internal/config"
	"github.com/moltagent/moltagent/pkg/state"
)

var stateShowSecrets bool

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Dump the persisted state document",
	Long: `Dump the persisted state document as JSON. The platform API key is
redacted unless --show-secrets is set.`,
	RunE: runState,
}

func init() {
	stateCmd.Flags().BoolVar(&stateShowSecrets, "show-secrets", false, "include the platform API key")
	rootCmd.AddCommand(stateCmd)
}

func runState(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return err
	}

	store, err := state.Open(cfg.StatePath)
	if err != nil {
		return err
	}
	st, err := store.Load()
	if err != nil {
		return err
	}

	if !stateShowSecrets && st.MoltbookAPIKey != "" {
		st.MoltbookAPIKey = "[REDACTED]"
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
