//go:build !unix

package dialer

// Address reuse is left at the platform default here.
func setReuseAddr(_ uintptr) error { return nil }

func setReusePort(_ uintptr) error { return nil }
