//go:build unix

package warehouse

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// lockStore takes an exclusive, non-blocking flock on path+".lock" so only
// one process writes the store at a time.
func lockStore(path string) (func() error, error) {
	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("warehouse: open lock file: %w", err)
	}
	fd := int(f.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrStoreLocked, path)
		}
		return nil, fmt.Errorf("warehouse: flock: %w", err)
	}
	return func() error {
		_ = unix.Flock(fd, unix.LOCK_UN)
		return f.Close()
	}, nil
}
