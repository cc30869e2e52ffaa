package service

import (
	"errors"
	"sync"
)

// Syncher hands the outcome of an asynchronous step to its waiters.
type Syncher interface {
	SetError(err error)
	Wait() error
}

// Sync provides a Syncher completed by the given wait group.
func Sync(wg *sync.WaitGroup) Syncher {
	return &syncher{
		wait: wg,
	}
}

type syncher struct {
	lock sync.Mutex
	wait *sync.WaitGroup
	err  []error
}

func (s *syncher) SetError(err error) {
	if err != nil {
		s.lock.Lock()
		defer s.lock.Unlock()
		s.err = append(s.err, err)
	}
}

func (s *syncher) Wait() error {
	s.wait.Wait()
	s.lock.Lock()
	defer s.lock.Unlock()
	return errors.Join(s.err...)
}
