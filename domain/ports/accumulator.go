package ports

// Accumulator is the one-way fold used to chain audit entries. Swapping the
// strategy does not change the on-disk framing of the log.
type Accumulator interface {
	// Name identifies the strategy (e.g. "xxhash64", "blake3").
	Name() string

	// Size is the length in bytes of every value the accumulator produces.
	Size() int

	// Seed returns the fixed initial chain value.
	Seed() []byte

	// Fold derives the next chain value from the previous value and the
	// literal bytes of the next message. It must be deterministic.
	Fold(prev []byte, message []byte) []byte
}
