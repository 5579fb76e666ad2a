package crypto

import (
	"fmt"
	"math/big"

	"github.com/truesightdao/tokenops/internal/domain"
)

// ASN.1 DER tag bytes used by RSA public key structures.
const (
	tagInteger   = 0x02
	tagBitString = 0x03
	tagSequence  = 0x30
)

// RSAPublicKey holds the two parsed fields of an RSA public key.
type RSAPublicKey struct {
	N *big.Int // modulus
	E *big.Int // public exponent
}

// Size returns the modulus length in bytes.
func (k *RSAPublicKey) Size() int {
	return (k.N.BitLen() + 7) / 8
}

// ParseRSAPublicKey extracts modulus and exponent from DER-encoded key bytes.
// Both the SubjectPublicKeyInfo wrapping (SEQUENCE { AlgorithmIdentifier,
// BIT STRING { RSAPublicKey } }) and a bare PKCS#1 RSAPublicKey
// (SEQUENCE { INTEGER n, INTEGER e }) are accepted. The exponent is parsed,
// not assumed.
func ParseRSAPublicKey(der []byte) (*RSAPublicKey, error) {
	rd := derReader{buf: der}

	body, err := rd.readElement(tagSequence)
	if err != nil {
		return nil, fmt.Errorf("crypto: outer sequence: %w", err)
	}

	inner := derReader{buf: body}
	switch {
	case inner.peekTag() == tagSequence:
		// SubjectPublicKeyInfo: skip the AlgorithmIdentifier, unwrap the
		// BIT STRING, then parse the embedded RSAPublicKey sequence.
		if _, err := inner.readElement(tagSequence); err != nil {
			return nil, fmt.Errorf("crypto: algorithm identifier: %w", err)
		}
		bits, err := inner.readElement(tagBitString)
		if err != nil {
			return nil, fmt.Errorf("crypto: subject public key: %w", err)
		}
		if len(bits) < 1 || bits[0] != 0x00 {
			return nil, fmt.Errorf("crypto: subject public key: %w", domain.ErrDecode)
		}
		keyRd := derReader{buf: bits[1:]}
		keyBody, err := keyRd.readElement(tagSequence)
		if err != nil {
			return nil, fmt.Errorf("crypto: rsa key sequence: %w", err)
		}
		inner = derReader{buf: keyBody}
	case inner.peekTag() == tagInteger:
		// Bare PKCS#1 RSAPublicKey; inner already positioned at the modulus.
	default:
		return nil, fmt.Errorf("crypto: unrecognised key structure: %w", domain.ErrDecode)
	}

	n, err := inner.readInteger()
	if err != nil {
		return nil, fmt.Errorf("crypto: modulus: %w", err)
	}
	e, err := inner.readInteger()
	if err != nil {
		return nil, fmt.Errorf("crypto: exponent: %w", err)
	}

	if n.Sign() <= 0 {
		return nil, fmt.Errorf("crypto: non-positive modulus: %w", domain.ErrDecode)
	}
	if e.Sign() <= 0 {
		return nil, fmt.Errorf("crypto: non-positive exponent: %w", domain.ErrDecode)
	}

	return &RSAPublicKey{N: n, E: e}, nil
}

// derReader is a minimal sequential reader over DER-encoded bytes. It
// understands only definite-length encodings, which is all DER permits.
type derReader struct {
	buf []byte
	off int
}

// peekTag returns the tag byte at the current offset, or 0 at end of input.
func (r *derReader) peekTag() byte {
	if r.off >= len(r.buf) {
		return 0
	}
	return r.buf[r.off]
}

// readElement consumes one TLV element with the expected tag and returns its
// value bytes.
func (r *derReader) readElement(tag byte) ([]byte, error) {
	if r.off >= len(r.buf) {
		return nil, fmt.Errorf("truncated element: %w", domain.ErrDecode)
	}
	if r.buf[r.off] != tag {
		return nil, fmt.Errorf("expected tag 0x%02x, found 0x%02x: %w", tag, r.buf[r.off], domain.ErrDecode)
	}
	r.off++

	length, err := r.readLength()
	if err != nil {
		return nil, err
	}
	if r.off+length > len(r.buf) {
		return nil, fmt.Errorf("element length %d exceeds input: %w", length, domain.ErrDecode)
	}

	val := r.buf[r.off : r.off+length]
	r.off += length
	return val, nil
}

// readLength decodes a DER definite length (short or long form).
func (r *derReader) readLength() (int, error) {
	if r.off >= len(r.buf) {
		return 0, fmt.Errorf("truncated length: %w", domain.ErrDecode)
	}
	b := r.buf[r.off]
	r.off++

	if b < 0x80 {
		return int(b), nil
	}

	numBytes := int(b & 0x7f)
	if numBytes == 0 || numBytes > 4 {
		return 0, fmt.Errorf("unsupported length encoding 0x%02x: %w", b, domain.ErrDecode)
	}
	if r.off+numBytes > len(r.buf) {
		return 0, fmt.Errorf("truncated long-form length: %w", domain.ErrDecode)
	}

	length := 0
	for i := 0; i < numBytes; i++ {
		length = length<<8 | int(r.buf[r.off+i])
	}
	r.off += numBytes
	return length, nil
}

// readInteger consumes an INTEGER element and returns it as an unsigned
// big-endian big.Int. Leading zero padding bytes are preserved by SetBytes.
func (r *derReader) readInteger() (*big.Int, error) {
	val, err := r.readElement(tagInteger)
	if err != nil {
		return nil, err
	}
	if len(val) == 0 {
		return nil, fmt.Errorf("empty integer: %w", domain.ErrDecode)
	}
	return new(big.Int).SetBytes(val), nil
}
