package transform

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"

	"github.com/sagarc03/eiostore"
)

// KeySize is the length of an encryption key in bytes.
const KeySize = chacha20.KeySize

const keyInfo = "eiostore stream key v1"

// DeriveKey stretches a passphrase into an encryption key using HKDF-SHA256.
func DeriveKey(passphrase string) ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(passphrase), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// Encrypt returns an XChaCha20 encrypting stage factory. Every stage draws a
// random nonce and writes it ahead of the ciphertext.
//
// The cipher provides confidentiality only; it does not detect tampering.
func Encrypt(key []byte) eiostore.TransformFactory {
	return func() eiostore.Transform {
		return func(src io.ReadCloser) (io.ReadCloser, error) {
			nonce := make([]byte, chacha20.NonceSizeX)
			if _, err := rand.Read(nonce); err != nil {
				return nil, fmt.Errorf("generate nonce: %w", err)
			}
			c, err := chacha20.NewUnauthenticatedCipher(key, nonce)
			if err != nil {
				return nil, fmt.Errorf("new cipher: %w", err)
			}
			return &cipherReader{src: src, header: nonce, stream: c}, nil
		}
	}
}

// Decrypt returns the stage factory reversing Encrypt.
func Decrypt(key []byte) eiostore.TransformFactory {
	return func() eiostore.Transform {
		return func(src io.ReadCloser) (io.ReadCloser, error) {
			if len(key) != KeySize {
				return nil, fmt.Errorf("new cipher: key must be %d bytes", KeySize)
			}
			return &cipherReader{src: src, key: key}, nil
		}
	}
}

// EncryptPair derives a key from passphrase and returns the encrypt and
// decrypt factories. It panics if key derivation fails.
func EncryptPair(passphrase string) (forward, reverse eiostore.TransformFactory) {
	key, err := DeriveKey(passphrase)
	if err != nil {
		panic(err)
	}
	return Encrypt(key), Decrypt(key)
}

// cipherReader XORs src with a key stream. When encrypting, header holds the
// nonce still to be emitted. When decrypting, stream is nil until the nonce
// has been read from src.
type cipherReader struct {
	src    io.ReadCloser
	key    []byte
	header []byte
	stream *chacha20.Cipher
}

func (c *cipherReader) Read(p []byte) (int, error) {
	if len(c.header) > 0 {
		n := copy(p, c.header)
		c.header = c.header[n:]
		return n, nil
	}

	if c.stream == nil {
		nonce := make([]byte, chacha20.NonceSizeX)
		if _, err := io.ReadFull(c.src, nonce); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, fmt.Errorf("read nonce: %w", err)
		}
		s, err := chacha20.NewUnauthenticatedCipher(c.key, nonce)
		if err != nil {
			return 0, fmt.Errorf("new cipher: %w", err)
		}
		c.stream = s
	}

	n, err := c.src.Read(p)
	c.stream.XORKeyStream(p[:n], p[:n])
	return n, err
}

func (c *cipherReader) Close() error {
	return c.src.Close()
}
