package pipeline

import (
	"fmt"
	"os"

	"github.com/gofrs/flock"

	"klyppr/internal/services"
)

// outputLock is an advisory lock on <output>.lock held while a job writes.
type outputLock struct {
	lock *flock.Flock
	path string
}

func acquireOutputLock(output string) (*outputLock, error) {
	path := output + ".lock"
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrLocked, "", "lock output", path, err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrLocked, "", "lock output", fmt.Sprintf("another job is writing %s", output), nil)
	}
	return &outputLock{lock: lock, path: path}, nil
}

func (l *outputLock) release() {
	if l == nil {
		return
	}
	_ = l.lock.Unlock()
	_ = os.Remove(l.path)
}
