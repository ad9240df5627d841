package pav

import "io"

// Encryptor protects database backups at rest. Decryption is an operator
// task performed off-device with the age tooling, so only the encrypting
// half lives here.
type Encryptor interface {
	// Setup generates and stores the key material, protecting the private
	// half with the passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// IsConfigured returns true if key material is in place.
	IsConfigured() bool
}
