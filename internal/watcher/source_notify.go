package watcher

import (
	"sync"

	"github.com/rjeczalik/notify"
)

// notifySource uses the native recursive watch of rjeczalik/notify.
type notifySource struct {
	raw    chan notify.EventInfo
	events chan rawEvent
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func newNotifySource(root string) (*notifySource, error) {
	s := &notifySource{
		raw:    make(chan notify.EventInfo, sourceBufferSize),
		events: make(chan rawEvent, sourceBufferSize),
		errors: make(chan error),
		done:   make(chan struct{}),
	}

	recursivePath := root + "/..."
	if err := notify.Watch(recursivePath, s.raw, notify.Create, notify.Write, notify.Remove, notify.Rename); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.run()
	return s, nil
}

func (s *notifySource) Events() <-chan rawEvent { return s.events }
func (s *notifySource) Errors() <-chan error    { return s.errors }

func (s *notifySource) Close() error {
	s.once.Do(func() {
		notify.Stop(s.raw)
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

func (s *notifySource) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case ei := <-s.raw:
			var op rawOp
			switch ei.Event() {
			case notify.Create:
				op = opCreate
			case notify.Remove:
				op = opRemove
			case notify.Rename:
				op = opRename
			default:
				op = opWrite
			}
			select {
			case s.events <- rawEvent{Path: ei.Path(), Op: op}:
			case <-s.done:
				return
			}
		}
	}
}
