package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/riftlabs/rift-host/internal/config"
	"github.com/riftlabs/rift-host/internal/rpc"
	"github.com/riftlabs/rift-host/pkg/types"
)

var agentsBackend string

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List agent types the backend offers",
	RunE:  runAgents,
}

func init() {
	agentsCmd.Flags().StringVar(&agentsBackend, "backend", "", "Backend address, host:port (default from config)")
}

func runAgents(cmd *cobra.Command, args []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if agentsBackend != "" {
		cfg.BackendAddr = agentsBackend
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := rpc.NewClient(rpc.Config{Addr: cfg.BackendAddr})
	defer client.Close()
	if err := client.Connect(ctx); err != nil {
		return err
	}

	var agents []types.AgentDescriptor
	if err := client.Call(ctx, "morph/listAgents", nil, &agents); err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tNAME\tDESCRIPTION")
	for _, a := range agents {
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.AgentType, a.DisplayName, a.Description)
	}
	return w.Flush()
}
