package commissioner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/meshcop/commissioner-go/pkg/dataset"
)

// NetworkData bundles the four datasets for persistence. Absent fields
// are omitted from the JSON document and stay absent after a reload.
type NetworkData struct {
	ActiveDataset       dataset.ActiveOperationalDataset  `json:"ActiveDataset"`
	PendingDataset      dataset.PendingOperationalDataset `json:"PendingDataset"`
	CommissionerDataset dataset.CommissionerDataset       `json:"CommissionerDataset"`
	BbrDataset          dataset.BbrDataset                `json:"BbrDataset"`
}

// PullNetworkData refreshes every dataset cache from the network with
// all-bits flags. The BBR dataset is pulled only in CCM mode.
func (c *Commissioner) PullNetworkData(ctx context.Context) error {
	commDataset, err := c.GetCommissionerDataset(ctx, 0xFFFF)
	if err != nil {
		return err
	}
	if c.IsCcmMode() {
		if _, err := c.GetBbrDataset(ctx, 0xFFFF); err != nil {
			return err
		}
	}
	if _, err := c.GetActiveDataset(ctx, 0xFFFF); err != nil {
		return err
	}
	if _, err := c.GetPendingDataset(ctx, 0xFFFF); err != nil {
		return err
	}

	c.mu.Lock()
	c.commDataset.Merge(commDataset)
	c.mu.Unlock()
	return nil
}

// NetworkData snapshots the current dataset caches.
func (c *Commissioner) NetworkData() NetworkData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return NetworkData{
		ActiveDataset:       c.activeDataset,
		PendingDataset:      c.pendingDataset,
		CommissionerDataset: c.commDataset,
		BbrDataset:          c.bbrDataset,
	}
}

// SaveNetworkData writes the dataset caches to a JSON file.
func (c *Commissioner) SaveNetworkData(path string) error {
	data, err := json.MarshalIndent(c.NetworkData(), "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding network data: %v", ErrIO, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrIO, path, err)
	}
	return nil
}

// LoadNetworkData reads a saved network-data file.
func LoadNetworkData(path string) (NetworkData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return NetworkData{}, fmt.Errorf("%w: reading %s: %v", ErrIO, path, err)
	}
	var nd NetworkData
	if err := json.Unmarshal(data, &nd); err != nil {
		return NetworkData{}, fmt.Errorf("%w: parsing %s: %v", ErrInvalidArgs, path, err)
	}
	return nd, nil
}
