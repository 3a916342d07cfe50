package main

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"clusterlink"
	"clusterlink/cmd/clusterlinkd/ui"
	"clusterlink/infra/cloudapi"

	"github.com/spf13/cobra"
)

func clustersCmd(g *globals) *cobra.Command {
	var onlineOnly bool

	cmd := &cobra.Command{
		Use:   "clusters",
		Short: "List the clusters of the logged-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if !cfg.LoggedIn() {
				return errors.New("not logged in: set api.token in " + g.configPath)
			}

			client, err := cloudapi.NewClient(cfg.API.BaseURL,
				cloudapi.WithToken(cfg.API.Token),
				cloudapi.WithTimeout(cfg.API.Timeout),
			)
			if err != nil {
				return err
			}

			records, err := client.ListClusters(cmd.Context())
			if err != nil {
				var apiErr *clusterlink.APIError
				if errors.As(err, &apiErr) {
					return fmt.Errorf("list clusters: %s", apiErr.Message())
				}
				return fmt.Errorf("list clusters: %w", err)
			}

			slices.SortFunc(records, func(a, b clusterlink.ClusterRecord) int {
				return cmp.Compare(a.ClusterID, b.ClusterID)
			})
			rows := make([][]string, 0, len(records))
			for _, r := range records {
				if onlineOnly && !r.IsOnline {
					continue
				}
				rows = append(rows, []string{r.ClusterID, r.HostName, ui.Online(r.IsOnline), r.HostVersion, r.Status})
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), ui.WarnMsg("No clusters found."))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Table([]string{"CLUSTER", "HOST", "STATE", "VERSION", "STATUS"}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&onlineOnly, "online", false, "Only list online clusters")
	return cmd
}
