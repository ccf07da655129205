package crypto

// Zero overwrites a byte slice in memory with zeros. Derived keys are
// zeroed as soon as a seal/open completes; the master key itself lives in
// a guarded enclave (internal/secure) and is not handled here.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
