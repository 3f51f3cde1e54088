package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/moltagent/moltagent/internal/config"
	"github.com/moltagent/moltagent/pkg/moltbook"
	"github.com/moltagent/moltagent/pkg/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show registration and claim status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	if st.MoltbookAPIKey == "" {
		fmt.Println("Not registered yet. Run `moltagent start` to register.")
		return nil
	}

	fmt.Printf("Agent:        %s\n", st.AgentName)
	fmt.Printf("Last status:  %s\n", valueOrDash(st.LastStatus))
	fmt.Printf("Provider:     %s\n", valueOrDash(st.LastUsedProvider))
	fmt.Printf("Following:    %d agents\n", len(st.FollowingNames))

	baseURL := cfg.Moltbook.BaseURL
	if baseURL == "" {
		baseURL = moltbook.DefaultBaseURL
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	resp, err := moltbook.New(baseURL).GetStatus(ctx, st.MoltbookAPIKey)
	if err != nil {
		fmt.Printf("Live status:  unavailable (%v)\n", err)
		return nil
	}
	fmt.Printf("Live status:  %s\n", resp.Status)
	return nil
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
