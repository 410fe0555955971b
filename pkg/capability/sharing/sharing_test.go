/*
 * Copyright 2025 Quay Labs, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sharing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaylabs/peripheral/pkg/capability"
	"github.com/quaylabs/peripheral/pkg/logger"
	"github.com/quaylabs/peripheral/pkg/models"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TransferTimeout = models.Duration(time.Second)
	cfg.DiscoveryTimeout = models.Duration(time.Second)

	return cfg
}

func activated(t *testing.T, cfg Config) *Capability {
	t.Helper()

	c, err := New(cfg, logger.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, c.Activate(context.Background()))

	t.Cleanup(func() { _ = c.Deactivate(context.Background()) })

	return c
}

func discoverOne(t *testing.T, c *Capability) models.Peer {
	t.Helper()

	peers, err := c.DiscoverPeers(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, peers)

	return peers[0]
}

func TestOperationsRequireAvailable(t *testing.T) {
	t.Parallel()

	c, err := New(testConfig(), logger.NewTestLogger())
	require.NoError(t, err)

	_, err = c.SendFile(context.Background(), "peer", "a.txt", 10)
	assert.ErrorIs(t, err, capability.ErrNotAvailable)

	_, err = c.DiscoverPeers(context.Background())
	assert.ErrorIs(t, err, capability.ErrNotAvailable)
}

func TestSendFileHappyPath(t *testing.T) {
	t.Parallel()

	c := activated(t, testConfig())
	peer := discoverOne(t, c)

	tr, err := c.SendFile(context.Background(), peer.PeerID, "photo.heic", 1<<20)
	require.NoError(t, err)
	assert.Equal(t, models.TransferStatusActive, tr.Status)
	assert.Equal(t, models.TransferDirectionOutgoing, tr.Direction)
	assert.NotEmpty(t, tr.TransferID)

	active, err := c.ActiveTransfers()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, tr.TransferID, active[0].TransferID)

	done, err := c.CompleteTransfer(tr.TransferID)
	require.NoError(t, err)
	assert.Equal(t, models.TransferStatusCompleted, done.Status)
	assert.Equal(t, done.SizeBytes, done.SentBytes)
	require.NotNil(t, done.FinishedAt)

	hist, err := c.History()
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, models.TransferStatusCompleted, hist[0].Status)
}

func TestSendFileUnknownPeer(t *testing.T) {
	t.Parallel()

	c := activated(t, testConfig())

	_, err := c.SendFile(context.Background(), "nobody", "a.txt", 10)
	assert.ErrorIs(t, err, capability.ErrNotFound)
}

func TestSendFileSizeLimits(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxFileSizeBytes = 100
	cfg.ChunkSizeBytes = 10

	c := activated(t, cfg)
	peer := discoverOne(t, c)

	_, err := c.SendFile(context.Background(), peer.PeerID, "big.bin", 101)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = c.SendFile(context.Background(), peer.PeerID, "empty.bin", 0)
	assert.ErrorIs(t, err, ErrInvalidFileSize)
}

func TestSendFileConcurrencyLimit(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxConcurrentTransfers = 1

	c := activated(t, cfg)
	peer := discoverOne(t, c)

	first, err := c.SendFile(context.Background(), peer.PeerID, "one.txt", 10)
	require.NoError(t, err)

	_, err = c.SendFile(context.Background(), peer.PeerID, "two.txt", 10)
	require.Error(t, err)

	limitErr, ok := capability.AsLimitError(err)
	require.True(t, ok, "expected a limit error, got %v", err)
	assert.Equal(t, 1, limitErr.Limit)
	assert.Contains(t, err.Error(), "too many active transfers")

	// Finishing the first transfer frees the slot.
	_, err = c.CompleteTransfer(first.TransferID)
	require.NoError(t, err)

	_, err = c.SendFile(context.Background(), peer.PeerID, "two.txt", 10)
	require.NoError(t, err)
}

func TestSendFileDisabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Enabled = false

	c := activated(t, cfg)

	_, err := c.SendFile(context.Background(), "peer", "a.txt", 10)
	assert.ErrorIs(t, err, capability.ErrFeatureDisabled)
}

func TestTransferTimeoutEnforced(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.TransferTimeout = models.Duration(25 * time.Millisecond)

	c := activated(t, cfg)
	peer := discoverOne(t, c)

	tr, err := c.SendFile(context.Background(), peer.PeerID, "slow.bin", 1<<20)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, gerr := c.Transfer(tr.TransferID)
		return gerr == nil && got.Status == models.TransferStatusTimedOut
	}, time.Second, 5*time.Millisecond)

	// A timed-out transfer admits no further transitions.
	_, err = c.CancelTransfer(tr.TransferID)
	assert.ErrorIs(t, err, ErrTransferFinished)

	hist, err := c.History()
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, models.TransferStatusTimedOut, hist[0].Status)

	m, err := c.Metrics()
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.FailureCount)
}

func TestCompletionDisarmsTimeout(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.TransferTimeout = models.Duration(30 * time.Millisecond)

	c := activated(t, cfg)
	peer := discoverOne(t, c)

	tr, err := c.SendFile(context.Background(), peer.PeerID, "fast.bin", 10)
	require.NoError(t, err)

	_, err = c.CompleteTransfer(tr.TransferID)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	got, err := c.Transfer(tr.TransferID)
	require.NoError(t, err)
	assert.Equal(t, models.TransferStatusCompleted, got.Status)
}

func TestUpdateProgress(t *testing.T) {
	t.Parallel()

	c := activated(t, testConfig())
	peer := discoverOne(t, c)

	tr, err := c.SendFile(context.Background(), peer.PeerID, "doc.pdf", 100)
	require.NoError(t, err)

	got, err := c.UpdateProgress(tr.TransferID, 40)
	require.NoError(t, err)
	assert.Equal(t, int64(40), got.SentBytes)
	assert.Equal(t, models.TransferStatusActive, got.Status)

	// Progress never moves backwards.
	got, err = c.UpdateProgress(tr.TransferID, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(40), got.SentBytes)

	got, err = c.UpdateProgress(tr.TransferID, 100)
	require.NoError(t, err)
	assert.Equal(t, models.TransferStatusCompleted, got.Status)
}

func TestCancelTransfer(t *testing.T) {
	t.Parallel()

	c := activated(t, testConfig())
	peer := discoverOne(t, c)

	tr, err := c.SendFile(context.Background(), peer.PeerID, "a.txt", 10)
	require.NoError(t, err)

	got, err := c.CancelTransfer(tr.TransferID)
	require.NoError(t, err)
	assert.Equal(t, models.TransferStatusCanceled, got.Status)

	_, err = c.CancelTransfer(tr.TransferID)
	assert.ErrorIs(t, err, ErrTransferFinished)

	_, err = c.CancelTransfer("missing")
	assert.ErrorIs(t, err, capability.ErrNotFound)
}

func TestTransferEvents(t *testing.T) {
	t.Parallel()

	c := activated(t, testConfig())
	peer := discoverOne(t, c)

	bus, err := c.Events()
	require.NoError(t, err)

	ch, err := bus.Subscribe("test", 8)
	require.NoError(t, err)

	tr, err := c.SendFile(context.Background(), peer.PeerID, "a.txt", 10)
	require.NoError(t, err)

	_, err = c.CompleteTransfer(tr.TransferID)
	require.NoError(t, err)

	var kinds []string

	for len(kinds) < 2 {
		select {
		case ev := <-ch:
			assert.Equal(t, CapabilityName, ev.Capability)
			kinds = append(kinds, ev.Kind)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for events, got %v", kinds)
		}
	}

	assert.Equal(t, []string{"transfer.started", "transfer.completed"}, kinds)
}

func TestDiscoverPeersFailureRecorded(t *testing.T) {
	t.Parallel()

	res, err := NewResource(testConfig(), logger.NewTestLogger())
	require.NoError(t, err)

	res.SetDiscoverFunc(func(context.Context) ([]models.Peer, error) {
		return nil, context.DeadlineExceeded
	})

	require.NoError(t, res.Allocate(context.Background()))

	t.Cleanup(func() { _ = res.Release(context.Background()) })

	_, err = res.DiscoverPeers(context.Background())
	require.Error(t, err)

	m := res.Metrics()
	assert.Equal(t, int64(1), m.FailureCount)
}

func TestReleaseCancelsInFlight(t *testing.T) {
	t.Parallel()

	res, err := NewResource(testConfig(), logger.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, res.Allocate(context.Background()))

	_, err = res.DiscoverPeers(context.Background())
	require.NoError(t, err)

	tr, err := res.SendFile(context.Background(), "peer-macbook-pro", "a.txt", 10)
	require.NoError(t, err)
	require.Equal(t, models.TransferStatusActive, tr.Status)

	require.NoError(t, res.Release(context.Background()))

	// Idempotent.
	require.NoError(t, res.Release(context.Background()))
}

func TestReleaseDuringDiscoveryRejectsResult(t *testing.T) {
	t.Parallel()

	res, err := NewResource(testConfig(), logger.NewTestLogger())
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})

	res.SetDiscoverFunc(func(context.Context) ([]models.Peer, error) {
		close(entered)
		<-release

		return []models.Peer{{PeerID: "peer-late", Name: "Late Peer"}}, nil
	})

	require.NoError(t, res.Allocate(context.Background()))

	done := make(chan error, 1)

	go func() {
		_, err := res.DiscoverPeers(context.Background())
		done <- err
	}()

	<-entered

	require.NoError(t, res.Release(context.Background()))

	close(release)

	require.ErrorIs(t, <-done, errResourceNotStarted)

	// The late result must not resurrect the peer set.
	_, err = res.SendFile(context.Background(), "peer-late", "a.txt", 10)
	assert.ErrorIs(t, err, errResourceNotStarted)
}
