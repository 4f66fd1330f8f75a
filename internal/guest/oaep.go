package guest

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io"
	"math/big"

	"golang.org/x/crypto/chacha20"
)

// OAEPSeed is the fixed seed of the padding randomness. Execution inside the
// prover must be deterministic, so encryption is bit-exact reproducible and
// verification re-encrypts and compares.
const OAEPSeed uint64 = 42

var errMessageTooLong = errors.New("message too long for RSA key size")

// seededStream is a ChaCha20 keystream used as a deterministic io.Reader.
type seededStream struct {
	c *chacha20.Cipher
}

// newSeededStream keys ChaCha20 with the little-endian seed in the first
// eight key bytes and a zero nonce.
func newSeededStream(seed uint64) *seededStream {
	var key [chacha20.KeySize]byte
	binary.LittleEndian.PutUint64(key[:8], seed)
	var nonce [chacha20.NonceSize]byte
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		// key and nonce sizes are fixed above
		panic(err)
	}
	return &seededStream{c: c}
}

// Read fills p with keystream bytes. It never fails.
func (s *seededStream) Read(p []byte) (int, error) {
	clear(p)
	s.c.XORKeyStream(p, p)
	return len(p), nil
}

// encryptOAEP implements RSAES-OAEP-ENCRYPT (RFC 8017 §7.1.1) with SHA-256,
// MGF1-SHA-256 and an empty label, drawing the seed from random.
func encryptOAEP(pub *rsa.PublicKey, msg []byte, random io.Reader) ([]byte, error) {
	hLen := sha256.Size
	k := (pub.N.BitLen() + 7) / 8
	if len(msg) > k-2*hLen-2 {
		return nil, errMessageTooLong
	}

	lHash := sha256.Sum256(nil)
	em := make([]byte, k)
	seed := em[1 : 1+hLen]
	db := em[1+hLen:]

	copy(db, lHash[:])
	db[len(db)-len(msg)-1] = 0x01
	copy(db[len(db)-len(msg):], msg)

	if _, err := io.ReadFull(random, seed); err != nil {
		return nil, err
	}

	mgf1XOR(db, seed)
	mgf1XOR(seed, db)

	m := new(big.Int).SetBytes(em)
	c := new(big.Int).Exp(m, big.NewInt(int64(pub.E)), pub.N)
	return c.FillBytes(make([]byte, k)), nil
}

// mgf1XOR XORs out with the MGF1-SHA-256 mask generated from seed.
func mgf1XOR(out, seed []byte) {
	var counter [4]byte
	done := 0
	for done < len(out) {
		h := sha256.New()
		h.Write(seed)
		h.Write(counter[:])
		digest := h.Sum(nil)
		for i := 0; i < len(digest) && done < len(out); i++ {
			out[done] ^= digest[i]
			done++
		}
		binary.BigEndian.PutUint32(counter[:], binary.BigEndian.Uint32(counter[:])+1)
	}
}
