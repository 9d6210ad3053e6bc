package commissioner

import (
	"context"
	"fmt"

	"github.com/meshcop/commissioner-go/pkg/dataset"
)

// Joiner admission operations. Every steering-data mutation follows the
// same transactional shape: build a Commissioner Dataset delta from the
// cache, send it to the Leader, and advance the in-memory registry only
// after the network accepts.

// EnableJoiner admits one joiner of the given type. For MeshCoP joiners
// the EUI-64 keys the entry and the PSKd is the joiner credential.
func (c *Commissioner) EnableJoiner(ctx context.Context, joinerType JoinerType, eui64 uint64, pskd, provisioningUrl string) error {
	if err := checkEui64(eui64); err != nil {
		return err
	}

	joinerId := ComputeJoinerId(eui64)
	key := joinerKey{Type: joinerType, Id: string(joinerId)}

	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return fmt.Errorf("%w: the commissioner is not active", ErrInvalidState)
	}
	if _, exists := c.joiners[key]; exists {
		c.mu.Unlock()
		return fmt.Errorf("%w: joiner (type=%s, eui64=%X) is already enabled", ErrAlreadyExists, joinerType, eui64)
	}
	ds := c.commDataset
	c.mu.Unlock()

	if err := c.applySteering(&ds, joinerType, func(steering []byte) []byte {
		return AddJoiner(steering, joinerId)
	}); err != nil {
		return err
	}
	if err := c.SetCommissionerDataset(ctx, ds); err != nil {
		return err
	}

	c.mu.Lock()
	c.joiners[key] = &JoinerInfo{
		Type:            joinerType,
		Eui64:           eui64,
		PSKd:            pskd,
		ProvisioningUrl: provisioningUrl,
	}
	c.mu.Unlock()
	return nil
}

// DisableJoiner withdraws one joiner. The bloom filter cannot forget a
// member, so the steering data is rebuilt from scratch over the
// surviving entries.
func (c *Commissioner) DisableJoiner(ctx context.Context, joinerType JoinerType, eui64 uint64) error {
	if err := checkEui64(eui64); err != nil {
		return err
	}

	joinerId := ComputeJoinerId(eui64)
	key := joinerKey{Type: joinerType, Id: string(joinerId)}

	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return fmt.Errorf("%w: the commissioner is not active", ErrInvalidState)
	}
	if _, exists := c.joiners[key]; !exists {
		c.mu.Unlock()
		return fmt.Errorf("%w: joiner (type=%s, eui64=%X) is not enabled", ErrNotFound, joinerType, eui64)
	}
	ds := c.commDataset
	rebuilt := []byte{0x00}
	for entryKey, joiner := range c.joiners {
		if entryKey.Type != joinerType || entryKey == key {
			continue
		}
		rebuilt = AddJoiner(rebuilt, ComputeJoinerId(joiner.Eui64))
	}
	c.mu.Unlock()

	if err := c.applySteering(&ds, joinerType, func([]byte) []byte {
		return rebuilt
	}); err != nil {
		return err
	}
	if err := c.SetCommissionerDataset(ctx, ds); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.joiners, key)
	c.mu.Unlock()
	return nil
}

// EnableAllJoiners opens the network to every joiner of the type: the
// steering data becomes all-ones and a single wildcard entry carries
// the shared credential.
func (c *Commissioner) EnableAllJoiners(ctx context.Context, joinerType JoinerType, pskd, provisioningUrl string) error {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return fmt.Errorf("%w: the commissioner is not active", ErrInvalidState)
	}
	ds := c.commDataset
	c.mu.Unlock()

	if err := c.applySteering(&ds, joinerType, func([]byte) []byte {
		return []byte{0xFF}
	}); err != nil {
		return err
	}
	if err := c.SetCommissionerDataset(ctx, ds); err != nil {
		return err
	}

	c.mu.Lock()
	c.joiners.eraseAll(joinerType)
	wildcard := ComputeJoinerId(0)
	c.joiners[joinerKey{Type: joinerType, Id: string(wildcard)}] = &JoinerInfo{
		Type:            joinerType,
		Eui64:           0,
		PSKd:            pskd,
		ProvisioningUrl: provisioningUrl,
	}
	c.mu.Unlock()
	return nil
}

// DisableAllJoiners closes the network to the joiner type: the steering
// data becomes all-zero and every entry of the type is dropped.
func (c *Commissioner) DisableAllJoiners(ctx context.Context, joinerType JoinerType) error {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return fmt.Errorf("%w: the commissioner is not active", ErrInvalidState)
	}
	ds := c.commDataset
	c.mu.Unlock()

	if err := c.applySteering(&ds, joinerType, func([]byte) []byte {
		return []byte{0x00}
	}); err != nil {
		return err
	}
	if err := c.SetCommissionerDataset(ctx, ds); err != nil {
		return err
	}

	c.mu.Lock()
	c.joiners.eraseAll(joinerType)
	c.mu.Unlock()
	return nil
}

// applySteering rewrites the type's steering field of a dataset delta
// through fn and marks it present.
func (c *Commissioner) applySteering(ds *dataset.CommissionerDataset, joinerType JoinerType, fn func([]byte) []byte) error {
	flag, err := steeringFlag(joinerType)
	if err != nil {
		return err
	}
	switch joinerType {
	case JoinerTypeAE:
		ds.AeSteeringData = fn(ds.AeSteeringData)
	case JoinerTypeNMKP:
		ds.NmkpSteeringData = fn(ds.NmkpSteeringData)
	default:
		ds.SteeringData = fn(ds.SteeringData)
	}
	ds.PresentFlags |= flag
	return nil
}

// IsJoinerCommissioned reports whether the joiner finished
// commissioning, that is whether its finalization was accepted.
func (c *Commissioner) IsJoinerCommissioned(joinerType JoinerType, eui64 uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	joiner, ok := c.joiners[joinerKey{Type: joinerType, Id: string(ComputeJoinerId(eui64))}]
	return ok && joiner.IsCommissioned
}

// JoinerInfoFor resolves the credential of a candidate joiner: the
// exact entry wins, then the wildcard entry of the type.
func (c *Commissioner) JoinerInfoFor(joinerType JoinerType, joinerId []byte) (JoinerInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if joiner := c.joiners.find(joinerType, joinerId); joiner != nil {
		return *joiner, true
	}
	return JoinerInfo{}, false
}
