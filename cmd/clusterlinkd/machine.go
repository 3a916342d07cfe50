package main

import (
	"fmt"
	"time"

	"clusterlink"
	"clusterlink/cmd/clusterlinkd/ui"
	"clusterlink/infra/sqlite"

	"github.com/spf13/cobra"
)

func machineCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "machine",
		Short: "Inspect and edit machine cluster bindings",
	}
	cmd.AddCommand(machineListCmd(g))
	cmd.AddCommand(machineGetCmd(g))
	cmd.AddCommand(machineBindCmd(g))
	cmd.AddCommand(machineUnbindCmd(g))
	cmd.AddCommand(machineSetNetworkKeyCmd(g))
	return cmd
}

// withStore opens the metadata store from the config for the duration of fn.
func withStore(g *globals, fn func(*sqlite.MetadataStore) error) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	store, err := sqlite.Open(cfg.DBPath())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func machineListCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List machines with stored metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(g, func(store *sqlite.MetadataStore) error {
				machines, err := store.Machines(cmd.Context())
				if err != nil {
					return err
				}
				if len(machines) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), ui.WarnMsg("No machines found."))
					return nil
				}

				rows := make([][]string, 0, len(machines))
				for _, m := range machines {
					cluster, _, err := store.Metadata(cmd.Context(), m, clusterlink.MetaClusterID)
					if err != nil {
						return err
					}
					key, _, err := store.Metadata(cmd.Context(), m, clusterlink.MetaNetworkKey)
					if err != nil {
						return err
					}
					rows = append(rows, []string{m, orNone(cluster), orNone(key)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), ui.Table([]string{"MACHINE", "CLUSTER", "NETWORK KEY"}, rows))
				return nil
			})
		},
	}
}

func machineGetCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "get <machine>",
		Short: "Show the stored metadata of a machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(g, func(store *sqlite.MetadataStore) error {
				entries, err := store.List(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), ui.WarnMsg("Machine %s has no metadata.", args[0]))
					return nil
				}
				pairs := make([]ui.Pair, 0, len(entries))
				for _, e := range entries {
					pairs = append(pairs, ui.KV(e.Key, e.Value+" "+ui.Muted(e.UpdatedAt.Format(time.RFC3339))))
				}
				fmt.Fprint(cmd.OutOrStdout(), ui.KeyValues("  ", pairs...))
				return nil
			})
		},
	}
}

func machineBindCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "bind <machine> <cluster-id>",
		Short: "Bind a machine to a cluster",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(g, func(store *sqlite.MetadataStore) error {
				if err := store.SetMetadata(cmd.Context(), args[0], clusterlink.MetaClusterID, args[1]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessMsg("Bound %s to cluster %s.", args[0], args[1]))
				return nil
			})
		},
	}
}

func machineUnbindCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "unbind <machine>",
		Short: "Forget a machine's cluster binding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(g, func(store *sqlite.MetadataStore) error {
				if err := store.DeleteMetadata(cmd.Context(), args[0], clusterlink.MetaClusterID); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessMsg("Unbound %s.", args[0]))
				return nil
			})
		},
	}
}

func machineSetNetworkKeyCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "set-network-key <machine> <key>",
		Short: "Record the local network key of a machine",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(g, func(store *sqlite.MetadataStore) error {
				if err := store.SetMetadata(cmd.Context(), args[0], clusterlink.MetaNetworkKey, args[1]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessMsg("Network key of %s set to %s.", args[0], args[1]))
				return nil
			})
		},
	}
}

func orNone(s string) string {
	if s == "" {
		return ui.Muted("-")
	}
	return s
}
