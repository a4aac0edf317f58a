package analytics

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorderNeverErrors(t *testing.T) {
	n := NoopRecorder{Log: zerolog.Nop()}
	require.NoError(t, n.RecordView(context.Background(), 1, 2, "127.0.0.1"))
	require.NoError(t, n.RecordPlaytime(context.Background(), 1, 2, 3, 42))
}
