package commissioner_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshcop/commissioner-go/pkg/commissioner"
	"github.com/meshcop/commissioner-go/pkg/dataset"
	"github.com/meshcop/commissioner-go/pkg/meshcop"
)

// activeGetResponse builds a MGMT_ACTIVE_GET.rsp carrying ds.
func activeGetResponse(ds dataset.ActiveOperationalDataset) meshcop.TlvSet {
	return append(acceptResponse(), ds.ToTlvs()...)
}

func TestSetChannel_GoesThroughPendingDataset(t *testing.T) {
	transport := newFakeTransport()
	comm := newActiveCommissioner(t, transport)

	require.NoError(t, comm.SetChannel(context.Background(), dataset.Channel{Page: 0, Number: 15}, 30*time.Second))

	sets := transport.requestsTo(meshcop.UriPendingSet)
	require.Len(t, sets, 1)
	assert.True(t, sets[0].Payload.Contains(meshcop.TlvChannel))

	delayTlv, ok := sets[0].Payload.Get(meshcop.TlvDelayTimer)
	require.True(t, ok)
	delay, err := delayTlv.AsUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(30000), delay)
}

func TestSetChannel_ZeroDelayStillCarriesDelayTimer(t *testing.T) {
	transport := newFakeTransport()
	comm := newActiveCommissioner(t, transport)

	require.NoError(t, comm.SetChannel(context.Background(), dataset.Channel{Number: 11}, 0))

	sets := transport.requestsTo(meshcop.UriPendingSet)
	require.Len(t, sets, 1)
	delayTlv, ok := sets[0].Payload.Get(meshcop.TlvDelayTimer)
	require.True(t, ok)
	delay, err := delayTlv.AsUint32()
	require.NoError(t, err)
	assert.Zero(t, delay)
}

func TestSetPendingDataset_RequiresDelayTimer(t *testing.T) {
	transport := newFakeTransport()
	comm := newActiveCommissioner(t, transport)

	var ds dataset.PendingOperationalDataset
	ds.PanId = 0x1234
	ds.PresentFlags = dataset.FlagPanId

	err := comm.SetPendingDataset(context.Background(), ds)
	assert.ErrorIs(t, err, commissioner.ErrInvalidArgs)
	assert.Empty(t, transport.requestsTo(meshcop.UriPendingSet))
}

func TestGetChannel_AlwaysConsultsLeader(t *testing.T) {
	transport := newFakeTransport()
	comm := newActiveCommissioner(t, transport)
	ctx := context.Background()

	current := dataset.ActiveOperationalDataset{
		Channel:      dataset.Channel{Page: 0, Number: 11},
		PresentFlags: dataset.FlagChannel,
	}
	transport.respond(meshcop.UriActiveGet, activeGetResponse(current))

	channel, err := comm.GetChannel(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(11), channel.Number)

	// A staged pending change does not show up in reads...
	require.NoError(t, comm.SetChannel(ctx, dataset.Channel{Number: 15}, 30*time.Second))
	channel, err = comm.GetChannel(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(11), channel.Number)

	// ...until the Leader commits it.
	committed := dataset.ActiveOperationalDataset{
		Channel:      dataset.Channel{Page: 0, Number: 15},
		PresentFlags: dataset.FlagChannel,
	}
	transport.respond(meshcop.UriActiveGet, activeGetResponse(committed))

	channel, err = comm.GetChannel(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(15), channel.Number)
}

func TestGetNetworkName_AbsentAfterOmittedResponse(t *testing.T) {
	transport := newFakeTransport()
	comm := newActiveCommissioner(t, transport)

	// The server answers without the Network Name TLV.
	transport.respond(meshcop.UriActiveGet, acceptResponse())

	_, err := comm.GetNetworkName(context.Background())
	assert.ErrorIs(t, err, commissioner.ErrNotFound)
}

func TestGetNetworkName_ServedFromCacheOnceFetched(t *testing.T) {
	transport := newFakeTransport()
	comm := newActiveCommissioner(t, transport)
	ctx := context.Background()

	transport.respond(meshcop.UriActiveGet, activeGetResponse(dataset.ActiveOperationalDataset{
		NetworkName:  "openthread",
		PresentFlags: dataset.FlagNetworkName,
	}))

	name, err := comm.GetNetworkName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "openthread", name)

	before := len(transport.requestsTo(meshcop.UriActiveGet))
	name, err = comm.GetNetworkName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "openthread", name)
	// Cached: no extra GET.
	assert.Len(t, transport.requestsTo(meshcop.UriActiveGet), before)
}

func TestSetNetworkName_RejectionKeepsCache(t *testing.T) {
	transport := newFakeTransport()
	comm := newActiveCommissioner(t, transport)
	ctx := context.Background()

	transport.respond(meshcop.UriActiveGet, activeGetResponse(dataset.ActiveOperationalDataset{
		NetworkName:  "before",
		PresentFlags: dataset.FlagNetworkName,
	}))
	_, err := comm.GetNetworkName(ctx)
	require.NoError(t, err)

	transport.respond(meshcop.UriActiveSet, rejectResponse())
	err = comm.SetNetworkName(ctx, "after")
	assert.ErrorIs(t, err, commissioner.ErrRejected)

	name, err := comm.GetNetworkName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "before", name)
}

func TestSetNetworkName_TooLong(t *testing.T) {
	transport := newFakeTransport()
	comm := newActiveCommissioner(t, transport)

	err := comm.SetNetworkName(context.Background(), "name-longer-than-sixteen")
	assert.ErrorIs(t, err, commissioner.ErrInvalidArgs)
}

func TestBbrOperations_GatedOnCcmMode(t *testing.T) {
	transport := newFakeTransport()
	comm := newActiveCommissioner(t, transport)
	ctx := context.Background()

	_, err := comm.GetBbrDataset(ctx, 0xFFFF)
	assert.ErrorIs(t, err, commissioner.ErrInvalidState)

	err = comm.SetTriHostname(ctx, "tri.example.com")
	assert.ErrorIs(t, err, commissioner.ErrInvalidState)

	err = comm.Reenroll(ctx, "fd00::2")
	assert.ErrorIs(t, err, commissioner.ErrInvalidState)

	err = comm.DomainReset(ctx, "fd00::2")
	assert.ErrorIs(t, err, commissioner.ErrInvalidState)

	err = comm.Migrate(ctx, "fd00::2", "other-net")
	assert.ErrorIs(t, err, commissioner.ErrInvalidState)
}

func TestPullNetworkData_CommissionerMergeSemantics(t *testing.T) {
	transport := newFakeTransport()

	// First pull: both steering fields present.
	transport.respond(meshcop.UriCommissionerGet, commissionerGetResponse(dataset.CommissionerDataset{
		SessionId:      7,
		SteeringData:   []byte{0xFF},
		AeSteeringData: []byte{0x0F},
		PresentFlags:   dataset.FlagSessionId | dataset.FlagSteeringData | dataset.FlagAeSteeringData,
	}))
	comm := newActiveCommissioner(t, transport)
	ctx := context.Background()

	steering, err := comm.GetSteeringData(commissioner.JoinerTypeAE)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0F}, steering)

	// Second pull omits AE steering data while reassigning the session:
	// the omission clears the local field, the session id updates.
	transport.respond(meshcop.UriCommissionerGet, commissionerGetResponse(dataset.CommissionerDataset{
		SessionId:    42,
		SteeringData: []byte{0xFF},
		PresentFlags: dataset.FlagSessionId | dataset.FlagSteeringData,
	}))
	require.NoError(t, comm.PullNetworkData(ctx))

	_, err = comm.GetSteeringData(commissioner.JoinerTypeAE)
	assert.ErrorIs(t, err, commissioner.ErrNotFound)

	nd := comm.NetworkData()
	assert.Equal(t, uint16(42), nd.CommissionerDataset.SessionId)
	assert.NotZero(t, nd.CommissionerDataset.PresentFlags&dataset.FlagSessionId)
}

func TestSaveNetworkData_RoundTrip(t *testing.T) {
	transport := newFakeTransport()
	transport.respond(meshcop.UriActiveGet, activeGetResponse(dataset.ActiveOperationalDataset{
		Channel:      dataset.Channel{Page: 0, Number: 17},
		NetworkName:  "openthread",
		PanId:        0xFACE,
		PresentFlags: dataset.FlagChannel | dataset.FlagNetworkName | dataset.FlagPanId,
	}))
	transport.respond(meshcop.UriCommissionerGet, commissionerGetResponse(dataset.CommissionerDataset{
		SessionId:    42,
		SteeringData: []byte{0xAB},
		PresentFlags: dataset.FlagSessionId | dataset.FlagSteeringData,
	}))
	comm := newActiveCommissioner(t, transport)

	path := filepath.Join(t.TempDir(), "network.json")
	require.NoError(t, comm.SaveNetworkData(path))

	loaded, err := commissioner.LoadNetworkData(path)
	require.NoError(t, err)
	assert.Equal(t, comm.NetworkData(), loaded)
}

func TestRegisterMulticastListener_RejectedStatusSurfaces(t *testing.T) {
	transport := newFakeTransport()
	transport.respond(meshcop.UriActiveGet, activeGetResponse(dataset.ActiveOperationalDataset{
		MeshLocalPrefix: []byte{0xFD, 0x00, 0x0D, 0xB8, 0x00, 0x00, 0x00, 0x00},
		PresentFlags:    dataset.FlagMeshLocalPrefix,
	}))
	comm := newActiveCommissioner(t, transport)

	transport.respond(meshcop.UriMlr, meshcop.TlvSet{meshcop.NewUint8(meshcop.ThreadTlvStatus, 2)})

	err := comm.RegisterMulticastListener(context.Background(), []string{"ff04::123"}, time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, commissioner.ErrRejected)
	status, ok := commissioner.StatusOf(err)
	require.True(t, ok)
	assert.Equal(t, uint8(2), status)
}

func TestRegisterMulticastListener_TargetsPrimaryBbr(t *testing.T) {
	transport := newFakeTransport()
	transport.respond(meshcop.UriActiveGet, activeGetResponse(dataset.ActiveOperationalDataset{
		MeshLocalPrefix: []byte{0xFD, 0x00, 0x0D, 0xB8, 0x00, 0x00, 0x00, 0x00},
		PresentFlags:    dataset.FlagMeshLocalPrefix,
	}))
	comm := newActiveCommissioner(t, transport)

	transport.respond(meshcop.UriMlr, meshcop.TlvSet{meshcop.NewUint8(meshcop.ThreadTlvStatus, 0)})
	require.NoError(t, comm.RegisterMulticastListener(context.Background(), []string{"ff04::123"}, time.Minute))

	mlrs := transport.requestsTo(meshcop.UriMlr)
	require.Len(t, mlrs, 1)
	assert.Equal(t, "fd00:db8::ff:fe00:fc38", mlrs[0].DstAddr)
	assert.True(t, mlrs[0].Payload.Contains(meshcop.ThreadTlvIpv6Addresses))
	assert.True(t, mlrs[0].Payload.Contains(meshcop.ThreadTlvTimeout))
}

func TestRegisterMulticastListener_InvalidAddress(t *testing.T) {
	transport := newFakeTransport()
	comm := newActiveCommissioner(t, transport)

	err := comm.RegisterMulticastListener(context.Background(), []string{"192.0.2.1"}, time.Minute)
	assert.ErrorIs(t, err, commissioner.ErrInvalidArgs)
}

func TestEnergyScan_AbortReturnsCancelled(t *testing.T) {
	transport := newFakeTransport()
	comm := newActiveCommissioner(t, transport)
	transport.block(meshcop.UriEnergyScan)

	errCh := make(chan error, 1)
	go func() {
		errCh <- comm.EnergyScan(context.Background(), 0x07FFF800, 1, 100, 50, "fd00::2")
	}()

	time.Sleep(50 * time.Millisecond)
	comm.AbortRequests()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, commissioner.ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("aborted scan did not return")
	}

	// No report sneaked in.
	assert.Empty(t, comm.GetAllEnergyReports())
	assert.True(t, comm.IsActive())
}

func TestAnnounceBegin_EncodesParameters(t *testing.T) {
	transport := newFakeTransport()
	comm := newActiveCommissioner(t, transport)

	require.NoError(t, comm.AnnounceBegin(context.Background(), 0x07FFF800, 3, 250*time.Millisecond, "ff03::1"))

	reqs := transport.requestsTo(meshcop.UriAnnounceBegin)
	require.Len(t, reqs, 1)
	assert.Equal(t, "ff03::1", reqs[0].DstAddr)
	assert.True(t, reqs[0].Payload.Contains(meshcop.TlvChannelMask))

	countTlv, ok := reqs[0].Payload.Get(meshcop.TlvCount)
	require.True(t, ok)
	count, err := countTlv.AsUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(3), count)
}

func TestMeshLocalAddr(t *testing.T) {
	prefix := []byte{0xFD, 0x00, 0x0D, 0xB8, 0x00, 0x00, 0x00, 0x00}
	addr, err := commissioner.MeshLocalAddr(prefix, 0xFC38)
	require.NoError(t, err)
	assert.Equal(t, "fd00:db8::ff:fe00:fc38", addr)

	_, err = commissioner.MeshLocalAddr([]byte{1, 2}, 0xFC38)
	assert.ErrorIs(t, err, commissioner.ErrInvalidArgs)
}
