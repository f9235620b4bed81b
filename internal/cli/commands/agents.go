// gantry agents — manage the remote build agent registry.
package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	v1 "github.com/gantry-build/gantry/api/v1"
	"github.com/gantry-build/gantry/internal/preflight"
	"github.com/gantry-build/gantry/pkg/netutil"
	"github.com/gantry-build/gantry/pkg/pprint"
)

func NewAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Manage remote build agents",
		Long:  "Add, remove, list, inspect, and probe remote build agents in the gantry registry.",
	}

	cmd.AddCommand(
		newAgentsAddCmd(),
		newAgentsRmCmd(),
		newAgentsLsCmd(),
		newAgentsInfoCmd(),
		newAgentsTestCmd(),
	)
	return cmd
}

func newAgentsAddCmd() *cobra.Command {
	var keyPath string
	var port int

	cmd := &cobra.Command{
		Use:   "add <name> <user@host>",
		Short: "Register a remote build agent",
		Args:  cobra.ExactArgs(2),
		Example: `  gantry agents add builder deploy@192.168.1.10
  gantry agents add winbox builder@win.example.com --key ~/.ssh/id_ed25519`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())
			name := args[0]

			if !netutil.IsValidAgentName(name) {
				return fmt.Errorf("invalid agent name: %q (want a lowercase DNS label)", name)
			}
			if !netutil.IsValidPort(port) {
				return fmt.Errorf("invalid port %d", port)
			}

			user, host := parseUserAtHost(args[1])
			if keyPath == "" {
				homeDir, _ := os.UserHomeDir()
				keyPath = filepath.Join(homeDir, ".ssh", "id_ed25519")
			}

			info := v1.AgentInfo{
				Spec: v1.AgentSpec{
					Name: name,
					Host: host,
					Port: port,
					User: user,
					Key:  keyPath,
				},
				Status: v1.AgentUnknown,
			}
			if err := rt.State.PutAgent(info); err != nil {
				return err
			}

			pprint.Success("Agent %q registered (%s@%s:%d)", name, user, host, port)
			pprint.Info("Run 'gantry agents test %s' to verify connectivity", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&keyPath, "key", "", "Path to SSH private key")
	cmd.Flags().IntVar(&port, "port", 22, "SSH port")
	return cmd
}

func newAgentsRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Remove an agent from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())
			info, err := rt.State.GetAgent(args[0])
			if err != nil {
				return err
			}
			if info == nil {
				return fmt.Errorf("agent %q not found", args[0])
			}
			if err := rt.State.DeleteAgent(args[0]); err != nil {
				return err
			}
			pprint.Success("Agent %q removed", args[0])
			return nil
		},
	}
}

func newAgentsLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List registered agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())
			agents, err := rt.State.ListAgents()
			if err != nil {
				return err
			}

			if rt.Flags.JSONOutput {
				return printJSON(agents)
			}

			if len(agents) == 0 {
				pprint.Info("No agents registered. Run 'gantry agents add' to register one.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "NAME\tHOST\tUSER\tSTATUS\tLAST SEEN\tFAILURES")
			for _, a := range agents {
				lastSeen := "never"
				if !a.LastSeen.IsZero() {
					lastSeen = agentAge(time.Since(a.LastSeen)) + " ago"
				}
				fmt.Fprintf(w, "%s\t%s:%d\t%s\t%s\t%s\t%d\n",
					a.Spec.Name, a.Spec.Host, a.Spec.Port, a.Spec.User,
					agentIcon(a.Status)+string(a.Status),
					lastSeen, a.FailCount,
				)
			}
			return w.Flush()
		},
	}
}

func newAgentsInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "Show the full record for an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())
			info, err := rt.State.GetAgent(args[0])
			if err != nil {
				return err
			}
			if info == nil {
				return fmt.Errorf("agent %q not found", args[0])
			}
			data, _ := json.MarshalIndent(info, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	}
}

func newAgentsTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <name>",
		Short: "Probe an agent and record the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())
			info, err := rt.State.GetAgent(args[0])
			if err != nil {
				return err
			}
			if info == nil {
				return fmt.Errorf("agent %q not found", args[0])
			}

			fmt.Printf("◉ Probing %s (%s@%s:%d)...\n",
				info.Spec.Name, info.Spec.User, info.Spec.Host, info.Spec.Port)

			// With a key the probe includes an SSH echo round-trip.
			probe := preflight.CheckAgent
			if info.Spec.Key != "" {
				probe = preflight.CheckAgentSSH
			}
			probeErr := probe(cmd.Context(), info.Spec, preflight.DefaultProbeTimeout)

			if probeErr != nil {
				if err := rt.State.UpdateAgentStatus(args[0], v1.AgentUnreachable, info.FailCount+1); err != nil {
					rt.Log.Warn("agent.status_update.failed", "agent", args[0], "err", err)
				}
				pprint.Error("Agent %q unreachable: %v", args[0], probeErr)
				return probeErr
			}

			if err := rt.State.UpdateAgentStatus(args[0], v1.AgentReady, 0); err != nil {
				rt.Log.Warn("agent.status_update.failed", "agent", args[0], "err", err)
			}
			pprint.Success("Agent %q is ready", args[0])
			return nil
		},
	}
}

// parseUserAtHost splits "user@host" into its parts.
func parseUserAtHost(s string) (user, host string) {
	for i, c := range s {
		if c == '@' {
			return s[:i], s[i+1:]
		}
	}
	return "root", s
}

func agentIcon(s v1.AgentStatus) string {
	switch s {
	case v1.AgentReady:
		return "● "
	case v1.AgentUnreachable:
		return "○ "
	default:
		return "? "
	}
}

func agentAge(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}
