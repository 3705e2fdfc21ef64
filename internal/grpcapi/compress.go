package grpcapi

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"google.golang.org/grpc/encoding"
)

// Message compressors offered to clients in addition to gzip. A client
// selects one with grpc.UseCompressor(name).
const (
	CompressorZstd = "zstd"
	CompressorLZ4  = "lz4"
)

func init() {
	encoding.RegisterCompressor(newZstdCompressor())
	encoding.RegisterCompressor(newLZ4Compressor())
}

// zstdCompressor pools encoders and decoders; both are expensive to
// allocate relative to a typical message.
type zstdCompressor struct {
	encoders sync.Pool
	decoders sync.Pool
}

func newZstdCompressor() *zstdCompressor {
	c := &zstdCompressor{}
	c.encoders.New = func() any {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
		return &zstdWriter{Encoder: enc, pool: &c.encoders}
	}
	return c
}

func (c *zstdCompressor) Name() string { return CompressorZstd }

func (c *zstdCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	zw := c.encoders.Get().(*zstdWriter)
	zw.Encoder.Reset(w)
	return zw, nil
}

func (c *zstdCompressor) Decompress(r io.Reader) (io.Reader, error) {
	zr, ok := c.decoders.Get().(*zstdReader)
	if !ok {
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return &zstdReader{Decoder: dec, pool: &c.decoders}, nil
	}
	if err := zr.Decoder.Reset(r); err != nil {
		c.decoders.Put(zr)
		return nil, err
	}
	return zr, nil
}

type zstdWriter struct {
	*zstd.Encoder
	pool *sync.Pool
}

func (w *zstdWriter) Close() error {
	defer w.pool.Put(w)
	return w.Encoder.Close()
}

// zstdReader returns its decoder to the pool once the message is drained.
type zstdReader struct {
	*zstd.Decoder
	pool *sync.Pool
}

func (r *zstdReader) Read(p []byte) (int, error) {
	n, err := r.Decoder.Read(p)
	if err == io.EOF {
		r.pool.Put(r)
	}
	return n, err
}

type lz4Compressor struct {
	writers sync.Pool
	readers sync.Pool
}

func newLZ4Compressor() *lz4Compressor {
	c := &lz4Compressor{}
	c.writers.New = func() any {
		return &lz4Writer{Writer: lz4.NewWriter(nil), pool: &c.writers}
	}
	c.readers.New = func() any {
		return &lz4Reader{Reader: lz4.NewReader(nil), pool: &c.readers}
	}
	return c
}

func (c *lz4Compressor) Name() string { return CompressorLZ4 }

func (c *lz4Compressor) Compress(w io.Writer) (io.WriteCloser, error) {
	lw := c.writers.Get().(*lz4Writer)
	lw.Writer.Reset(w)
	return lw, nil
}

func (c *lz4Compressor) Decompress(r io.Reader) (io.Reader, error) {
	lr := c.readers.Get().(*lz4Reader)
	lr.Reader.Reset(r)
	return lr, nil
}

type lz4Writer struct {
	*lz4.Writer
	pool *sync.Pool
}

func (w *lz4Writer) Close() error {
	defer w.pool.Put(w)
	return w.Writer.Close()
}

type lz4Reader struct {
	*lz4.Reader
	pool *sync.Pool
}

func (r *lz4Reader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	if err == io.EOF {
		r.pool.Put(r)
	}
	return n, err
}
