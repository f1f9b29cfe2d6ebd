package audit

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/secure-app-framework/saf-broker/domain/ports"
	"github.com/zeebo/blake3"
)

// xxhashSeed is the fixed initial chain value of the XXHash64 strategy.
const xxhashSeed uint64 = 0x9E3779B97F4A7C15

// blake3KeySize is the key length BLAKE3 keyed mode requires.
const blake3KeySize = 32

// defaultBlake3Key is used when no key is configured: the ASCII domain name
// zero-padded to 32 bytes. It gives domain separation, not secrecy.
var defaultBlake3Key = [blake3KeySize]byte{
	's', 'a', 'f', '.', 'a', 'u', 'd', 'i', 't', '.', 'c', 'h', 'a', 'i', 'n', 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// xxhashAccumulator is the placeholder fold: fast, non-cryptographic.
// It detects accidental corruption only, not deliberate forgery.
type xxhashAccumulator struct{}

// XXHash64 returns the placeholder accumulator. Upgrade to Blake3 before
// relying on the chain against an adversary.
func XXHash64() ports.Accumulator {
	return xxhashAccumulator{}
}

func (xxhashAccumulator) Name() string { return "xxhash64" }

func (xxhashAccumulator) Size() int { return 8 }

func (xxhashAccumulator) Seed() []byte {
	return binary.BigEndian.AppendUint64(nil, xxhashSeed)
}

func (xxhashAccumulator) Fold(prev, message []byte) []byte {
	d := xxhash.New()
	_, _ = d.Write(prev)
	_, _ = d.Write(message)
	return binary.BigEndian.AppendUint64(nil, d.Sum64())
}

// blake3Accumulator chains entries with keyed BLAKE3 over the previous
// digest and the literal message bytes.
type blake3Accumulator struct {
	key []byte
}

// Blake3 returns a keyed BLAKE3 accumulator. A nil key selects the built-in
// domain key; otherwise the key must be exactly 32 bytes.
func Blake3(key []byte) (ports.Accumulator, error) {
	if key == nil {
		key = defaultBlake3Key[:]
	}
	if len(key) != blake3KeySize {
		return nil, fmt.Errorf("blake3 key must be %d bytes, got %d", blake3KeySize, len(key))
	}
	return &blake3Accumulator{key: append([]byte(nil), key...)}, nil
}

func (a *blake3Accumulator) Name() string { return "blake3" }

func (a *blake3Accumulator) Size() int { return 32 }

func (a *blake3Accumulator) Seed() []byte {
	return make([]byte, 32)
}

func (a *blake3Accumulator) Fold(prev, message []byte) []byte {
	hasher, err := blake3.NewKeyed(a.key)
	if err != nil {
		// Unreachable: the key length is checked in Blake3.
		panic(fmt.Sprintf("blake3: %v", err))
	}
	_, _ = hasher.Write(prev)
	_, _ = hasher.Write(message)
	return hasher.Sum(nil)
}

// AccumulatorByName builds a strategy from its configured name.
// key is only used by "blake3".
func AccumulatorByName(name string, key []byte) (ports.Accumulator, error) {
	switch name {
	case "", "xxhash64", "xxhash":
		return XXHash64(), nil
	case "blake3":
		return Blake3(key)
	default:
		return nil, fmt.Errorf("unknown audit accumulator %q", name)
	}
}
