package engine

import "sync"

// Invoker spawns goroutines the event loop does not wait on directly
// (the reader task, forwarder tasks) but still wants to be able to
// reap at shutdown. Modeled on the teacher repository's core.Invoker.
type Invoker interface {
	Spawn(f func())
	Wait()
}

type waitGroupInvoker struct {
	wg sync.WaitGroup
}

// NewInvoker returns the default Invoker: every Spawn is tracked by a
// sync.WaitGroup that Wait blocks on.
func NewInvoker() Invoker {
	return &waitGroupInvoker{}
}

func (w *waitGroupInvoker) Spawn(f func()) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		f()
	}()
}

func (w *waitGroupInvoker) Wait() {
	w.wg.Wait()
}
