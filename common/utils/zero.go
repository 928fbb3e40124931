package utils

// Zero overwrites b with zeros. Used to drop secrets from memory.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
