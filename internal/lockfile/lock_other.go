//go:build !unix && !windows

package lockfile

import "os"

// flockExclusive is a no-op on platforms without advisory locks.
func flockExclusive(f *os.File) error {
	return nil
}

// flockUnlock is a no-op on platforms without advisory locks.
func flockUnlock(f *os.File) error {
	return nil
}
