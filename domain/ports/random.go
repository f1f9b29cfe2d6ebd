package ports

// RandomSource fills byte slices for the rand.fill import. Whether the
// source is deterministic (seeded) or backed by OS entropy is an explicit
// configuration choice of the embedding application.
type RandomSource interface {
	// Fill writes len(p) random bytes into p.
	Fill(p []byte) error

	// Deterministic reports whether the source replays the same sequence for
	// the same configuration.
	Deterministic() bool
}
