package ss58

import (
	"errors"

	"github.com/btcsuite/btcutil/base58"
	"golang.org/x/crypto/blake2b"
)

// CanonicalPrefix is the network prefix every address is re-encoded under
// before comparison. 42 is the generic substrate prefix.
const CanonicalPrefix uint16 = 42

const AccountIdLength = 32

var ErrInvalidAddressFormat = errors.New("invalid address format")

var checksumPreimage = []byte("SS58PRE")

func Encode(raw []byte, prefix uint16) (string, error) {
	if len(raw) != AccountIdLength {
		return "", ErrInvalidAddressFormat
	}
	if prefix > 0x3fff {
		return "", ErrInvalidAddressFormat
	}

	var data []byte
	if prefix < 64 {
		data = append(data, byte(prefix))
	} else {
		// two byte prefix form, low 6 bits of the ident go into the first byte
		first := byte(((prefix & 0b0000_0000_1111_1100) >> 2) | 0b0100_0000)
		second := byte((prefix >> 8) | ((prefix & 0b0000_0000_0000_0011) << 6))
		data = append(data, first, second)
	}
	data = append(data, raw...)

	checksum := checksumOf(data)
	data = append(data, checksum[:2]...)

	return base58.Encode(data), nil
}

func Decode(address string) ([]byte, uint16, error) {
	data := base58.Decode(address)
	if len(data) < 3 {
		return nil, 0, ErrInvalidAddressFormat
	}

	var prefix uint16
	var offset int
	switch {
	case data[0] < 64:
		prefix = uint16(data[0])
		offset = 1
	case data[0] < 128:
		if len(data) < 4 {
			return nil, 0, ErrInvalidAddressFormat
		}
		lower := (data[0] << 2) | (data[1] >> 6)
		upper := data[1] & 0b0011_1111
		prefix = uint16(lower) | uint16(upper)<<8
		offset = 2
	default:
		return nil, 0, ErrInvalidAddressFormat
	}

	if len(data)-offset-2 != AccountIdLength {
		return nil, 0, ErrInvalidAddressFormat
	}

	body := data[:len(data)-2]
	checksum := checksumOf(body)
	if checksum[0] != data[len(data)-2] || checksum[1] != data[len(data)-1] {
		return nil, 0, ErrInvalidAddressFormat
	}

	raw := make([]byte, AccountIdLength)
	copy(raw, data[offset:len(data)-2])

	return raw, prefix, nil
}

// Normalize re-encodes an address under the canonical prefix so two textual
// representations of the same account compare equal.
func Normalize(address string) (string, error) {
	raw, _, err := Decode(address)
	if err != nil {
		return "", err
	}
	return Encode(raw, CanonicalPrefix)
}

func checksumOf(data []byte) [64]byte {
	preimage := make([]byte, 0, len(checksumPreimage)+len(data))
	preimage = append(preimage, checksumPreimage...)
	preimage = append(preimage, data...)
	return blake2b.Sum512(preimage)
}
