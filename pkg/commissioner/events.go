package commissioner

import (
	"context"
	"time"

	"github.com/apex/log"
)

// datasetRefetchTimeout bounds the re-fetch a DatasetChanged
// notification triggers.
const datasetRefetchTimeout = 10 * time.Second

// eventHandlers wires the transport's unsolicited messages into the
// engine. The handlers run on the transport's receive loop; anything
// that issues follow-up requests is moved onto its own goroutine so the
// loop can keep reading, and every cache write takes the engine mutex.
func (c *Commissioner) eventHandlers() EventHandlers {
	return EventHandlers{
		OnDatasetChanged: c.handleDatasetChanged,
		OnPanIdConflict:  c.handlePanIdConflict,
		OnEnergyReport:   c.handleEnergyReport,
		OnJoinerInfo:     c.JoinerInfoFor,
		OnJoinerFinalize: c.handleJoinerFinalize,
	}
}

// handleDatasetChanged re-fetches the Active and Pending datasets with
// all-bits flags and merges them. Transient failures are only logged;
// the next change notification re-triggers the fetch.
func (c *Commissioner) handleDatasetChanged() {
	c.logger.Info("operational dataset changed; re-fetching")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), datasetRefetchTimeout)
		defer cancel()

		if _, err := c.GetActiveDataset(ctx, 0xFFFF); err != nil {
			c.logger.WithError(err).Warn("re-fetching active dataset")
		}
		if _, err := c.GetPendingDataset(ctx, 0xFFFF); err != nil {
			c.logger.WithError(err).Warn("re-fetching pending dataset")
		}
	}()
}

// handlePanIdConflict records a MGMT_PANID_CONFLICT answer.
func (c *Commissioner) handlePanIdConflict(peerAddr string, channelMask uint32, panId uint16) {
	c.logger.WithFields(log.Fields{
		"peer":   peerAddr,
		"pan_id": panId,
	}).Info("pan id conflict reported")

	c.mu.Lock()
	c.panIdConflicts[panId] = channelMask
	c.mu.Unlock()
}

// handleEnergyReport records a MGMT_ED_REPORT answer.
func (c *Commissioner) handleEnergyReport(peerAddr string, channelMask uint32, energyList []byte) {
	c.logger.WithField("peer", peerAddr).Info("energy report received")

	c.mu.Lock()
	c.energyReports[peerAddr] = EnergyReport{ChannelMask: channelMask, EnergyList: energyList}
	c.mu.Unlock()
}

// handleJoinerFinalize runs the commissioning handler for a joiner's
// JOIN_FIN.req and tracks acceptance in the registry.
func (c *Commissioner) handleJoinerFinalize(joinerType JoinerType, joinerId []byte, vendorName, vendorModel,
	vendorSwVersion string, vendorStackVersion []byte, provisioningUrl string, vendorData []byte) bool {

	c.mu.Lock()
	joiner := c.joiners.find(joinerType, joinerId)
	handler := c.commissioningHandler
	c.mu.Unlock()

	if joiner == nil {
		c.logger.WithField("type", joinerType.String()).Warn("finalize from unknown joiner")
		return false
	}

	accepted := handler(*joiner, vendorName, vendorModel, vendorSwVersion, vendorStackVersion, provisioningUrl, vendorData)
	if accepted {
		c.mu.Lock()
		joiner.IsCommissioned = true
		c.mu.Unlock()
	}
	return accepted
}
