package cloudapi

import (
	"context"
	"encoding/json"
	"net/url"

	"clusterlink"
)

type clusterResponse struct {
	ClusterID   string `json:"cluster_id"`
	HostGUID    string `json:"host_guid"`
	HostName    string `json:"host_name"`
	HostVersion string `json:"host_version"`
	IsOnline    bool   `json:"is_online"`
	Status      string `json:"status"`
}

type printerResponse struct {
	UUID         string `json:"uuid"`
	FriendlyName string `json:"friendly_name"`
	Status       string `json:"status"`
}

type clusterStatusResponse struct {
	Printers  []printerResponse `json:"printers"`
	PrintJobs []json.RawMessage `json:"print_jobs"`
}

// ListClusters returns every cluster visible to the logged-in user.
func (c *Client) ListClusters(ctx context.Context) ([]clusterlink.ClusterRecord, error) {
	var data []clusterResponse
	if err := c.get(ctx, "ListClusters", "/connect/v1/clusters", &data); err != nil {
		return nil, err
	}

	records := make([]clusterlink.ClusterRecord, 0, len(data))
	for _, d := range data {
		if d.ClusterID == "" {
			continue
		}
		records = append(records, clusterlink.ClusterRecord{
			ClusterID:   d.ClusterID,
			HostName:    d.HostName,
			IsOnline:    d.IsOnline,
			HostGUID:    d.HostGUID,
			HostVersion: d.HostVersion,
			Status:      d.Status,
		})
	}
	return records, nil
}

// ClusterStatus returns the printers and queued jobs of one cluster.
func (c *Client) ClusterStatus(ctx context.Context, clusterID string) (clusterlink.ClusterStatus, error) {
	var data clusterStatusResponse
	if err := c.get(ctx, "ClusterStatus", "/connect/v1/clusters/"+url.PathEscape(clusterID)+"/status", &data); err != nil {
		return clusterlink.ClusterStatus{}, err
	}

	status := clusterlink.ClusterStatus{
		ClusterID: clusterID,
		Printers:  make([]clusterlink.PrinterStatus, 0, len(data.Printers)),
		Jobs:      len(data.PrintJobs),
	}
	for _, p := range data.Printers {
		status.Printers = append(status.Printers, clusterlink.PrinterStatus{
			UUID:   p.UUID,
			Name:   p.FriendlyName,
			Status: p.Status,
		})
	}
	return status, nil
}
