package transform_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/eiostore"
	"github.com/sagarc03/eiostore/objtest"
	"github.com/sagarc03/eiostore/transform"
)

func readAll(t *testing.T, rc io.ReadCloser) []byte {
	t.Helper()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	return b
}

func apply(t *testing.T, f eiostore.TransformFactory, data []byte) []byte {
	t.Helper()
	rc, err := f()(io.NopCloser(bytes.NewReader(data)))
	require.NoError(t, err)
	return readAll(t, rc)
}

func TestGzip_RoundTrip(t *testing.T) {
	fwd, rev := transform.GzipPair()
	plain := []byte(strings.Repeat("compressible ", 1000))

	packed := apply(t, fwd, plain)
	assert.Less(t, len(packed), len(plain))
	assert.Equal(t, []byte{0x1f, 0x8b}, packed[:2], "gzip magic")

	assert.Equal(t, plain, apply(t, rev, packed))
}

func TestGzip_EmptyInput(t *testing.T) {
	fwd, rev := transform.GzipPair()
	assert.Empty(t, apply(t, rev, apply(t, fwd, nil)))
}

func TestGunzip_InvalidInput(t *testing.T) {
	rc, err := transform.Gunzip()()(io.NopCloser(strings.NewReader("not gzip")))
	require.NoError(t, err, "header errors surface on read")

	_, err = io.ReadAll(rc)
	assert.Error(t, err)
	assert.NoError(t, rc.Close())
}

func TestGzip_CloseStopsEncoder(t *testing.T) {
	pr, pw := io.Pipe()
	rc, err := transform.Gzip()()(pr)
	require.NoError(t, err)

	require.NoError(t, rc.Close())
	_, err = pw.Write([]byte("x"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestEncrypt_RoundTrip(t *testing.T) {
	fwd, rev := transform.EncryptPair("passphrase")
	plain := []byte("attack at dawn")

	sealed := apply(t, fwd, plain)
	assert.Len(t, sealed, 24+len(plain), "nonce is prepended")
	assert.NotContains(t, string(sealed), string(plain))

	assert.Equal(t, plain, apply(t, rev, sealed))
}

func TestEncrypt_FreshNoncePerStage(t *testing.T) {
	fwd, _ := transform.EncryptPair("passphrase")
	plain := []byte("same input")

	assert.NotEqual(t, apply(t, fwd, plain), apply(t, fwd, plain))
}

func TestDecrypt_WrongKey(t *testing.T) {
	fwd, _ := transform.EncryptPair("right")
	_, rev := transform.EncryptPair("wrong")
	plain := []byte("secret data")

	assert.NotEqual(t, plain, apply(t, rev, apply(t, fwd, plain)))
}

func TestDecrypt_TruncatedNonce(t *testing.T) {
	_, rev := transform.EncryptPair("passphrase")
	rc, err := rev()(io.NopCloser(strings.NewReader("short")))
	require.NoError(t, err)

	_, err = io.ReadAll(rc)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestCipher_InvalidKeySize(t *testing.T) {
	src := io.NopCloser(strings.NewReader("x"))

	_, err := transform.Encrypt([]byte("short"))()(src)
	assert.Error(t, err)

	_, err = transform.Decrypt([]byte("short"))()(src)
	assert.Error(t, err)
}

func TestDeriveKey(t *testing.T) {
	a, err := transform.DeriveKey("one")
	require.NoError(t, err)
	b, err := transform.DeriveKey("one")
	require.NoError(t, err)
	c, err := transform.DeriveKey("two")
	require.NoError(t, err)

	assert.Len(t, a, transform.KeySize)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestPipeline_GzipThenEncryptOnTheWire(t *testing.T) {
	srv := objtest.NewServer()
	defer srv.Close()

	key, err := transform.DeriveKey("passphrase")
	require.NoError(t, err)

	client, err := eiostore.New(srv.URL, eiostore.WithCredentials(eiostore.Token("t")))
	require.NoError(t, err)
	client.Use(transform.GzipPair())
	client.Use(transform.Encrypt(key), transform.Decrypt(key))

	plain := []byte(strings.Repeat("payload ", 200))
	ctx := context.Background()

	info, err := client.Post(ctx, eiostore.BytesBody(plain), eiostore.WriteOptions{})
	require.NoError(t, err)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	wire := reqs[0].Body

	// Undo the stages by hand, outermost first.
	decrypted := apply(t, transform.Decrypt(key), wire)
	assert.Equal(t, plain, apply(t, transform.Gunzip(), decrypted))

	got, _, err := client.GetBytes(ctx, info.ObjectID, eiostore.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}
