package grpcapi

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	apiv1 "github.com/fyrsmithlabs/vectord/pkg/api/v1"
)

func TestCompressors_Registered(t *testing.T) {
	for _, name := range []string{CompressorZstd, CompressorLZ4} {
		c := encoding.GetCompressor(name)
		require.NotNil(t, c, name)
		assert.Equal(t, name, c.Name())
	}
}

func TestCompressors_RoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat(`{"float_data":[0.5,0.25,0.125]}`, 512))

	for _, name := range []string{CompressorZstd, CompressorLZ4} {
		t.Run(name, func(t *testing.T) {
			c := encoding.GetCompressor(name)

			// Twice, so the second pass runs on pooled coders.
			for i := 0; i < 2; i++ {
				var buf bytes.Buffer
				w, err := c.Compress(&buf)
				require.NoError(t, err)
				_, err = w.Write(payload)
				require.NoError(t, err)
				require.NoError(t, w.Close())
				assert.Less(t, buf.Len(), len(payload))

				r, err := c.Decompress(&buf)
				require.NoError(t, err)
				got, err := io.ReadAll(r)
				require.NoError(t, err)
				assert.Equal(t, payload, got)
			}
		})
	}
}

func TestCompressors_OverGRPC(t *testing.T) {
	ts := newTestServer(t)
	seedBooks(t, ts, 3)

	for _, name := range []string{CompressorZstd, CompressorLZ4} {
		t.Run(name, func(t *testing.T) {
			res, err := ts.client.Search(context.Background(), searchParam("books",
				`{"bool":{"must":[{"vector":"ph"}]}}`,
				`{"ph":{"embedding":{"topk":3}}}`, []float32{0, 0}),
				grpc.UseCompressor(name))
			require.NoError(t, err)
			require.True(t, res.Status.OK(), res.Status.Reason)
			assert.Equal(t, []int64{0, 1, 2}, res.Entities.IDs)
		})
	}

	count, err := ts.client.CountCollection(context.Background(), &apiv1.CollectionName{CollectionName: "books"},
		grpc.UseCompressor(CompressorZstd))
	require.NoError(t, err)
	assert.Equal(t, int64(3), count.CollectionRowCount)
}
