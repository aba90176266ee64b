package session

import "context"

// Task is a side effect running in its own goroutine whose outcome can be
// observed. The zero value is not usable; tasks come from startTask.
type Task[T any] struct {
	name  string
	done  chan struct{}
	value T
	err   error
}

func startTask[T any](name string, fn func() (T, error)) *Task[T] {
	t := &Task[T]{name: name, done: make(chan struct{})}
	go func() {
		defer close(t.done)
		t.value, t.err = fn()
	}()
	return t
}

// Name identifies the task ("persist", "upload").
func (t *Task[T]) Name() string { return t.name }

// Done is closed when the task has finished.
func (t *Task[T]) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes or ctx ends.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the outcome without blocking; finished is false while the
// task is still running.
func (t *Task[T]) Result() (value T, finished bool, err error) {
	select {
	case <-t.done:
		return t.value, true, t.err
	default:
		return value, false, nil
	}
}
