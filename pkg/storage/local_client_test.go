package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalClientRoundTrip(t *testing.T) {
	client := NewLocalClient(t.TempDir())
	ctx := context.Background()

	require.NoError(t, client.Upload(ctx, "exports", "payouts/2026-05.csv", strings.NewReader("agent,amount\n"), "text/csv"))

	rc, err := client.Download(ctx, "exports", "payouts/2026-05.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "agent,amount\n", string(data))

	require.NoError(t, client.Delete(ctx, "exports", "payouts/2026-05.csv"))
	_, err = client.Download(ctx, "exports", "payouts/2026-05.csv")
	assert.Error(t, err)
}

func TestLocalClientRejectsTraversal(t *testing.T) {
	client := NewLocalClient(t.TempDir())
	err := client.Upload(context.Background(), "exports", "../../etc/passwd", strings.NewReader("x"), "")
	assert.ErrorContains(t, err, "escapes storage root")
}

func TestLocalClientNoPresign(t *testing.T) {
	var client Client = NewLocalClient(t.TempDir())
	_, err := client.GetPresignedURL(context.Background(), "b", "k", time.Minute)
	assert.ErrorIs(t, err, ErrNoPresign)
}
