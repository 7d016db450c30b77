package driver

import (
	"context"
	"errors"
)

// ErrStopped is returned by Submit when the foreground loop is not running.
var ErrStopped = errors.New("driver: foreground loop stopped")

// Job is foreground work submitted from another goroutine. It runs on the
// goroutine executing Run and may use every Driver method.
type Job func(ctx context.Context, d *Driver) error

type job struct {
	ctx  context.Context
	fn   Job
	done chan error
}

// Submit hands fn to the foreground loop and waits for its result. fn sees a
// context that ends with either ctx or the loop.
func (d *Driver) Submit(ctx context.Context, fn Job) error {
	j := job{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case d.jobs <- j:
	case <-d.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the foreground loop: it dispatches scan codes, runs submitted
// jobs, drains every decoded byte into emit and otherwise idles one
// microsecond of bus time per iteration. It returns when ctx is done; a
// Driver runs at most one loop in its lifetime.
func (d *Driver) Run(ctx context.Context, emit func(b byte)) error {
	defer d.stop.Do(func() { close(d.stopped) })
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		select {
		case j := <-d.jobs:
			j.done <- d.runJob(ctx, j)
		default:
		}

		handled, err := d.Poll(ctx)
		if err != nil {
			return err
		}
		for {
			b, ok := d.out.Pop()
			if !ok {
				break
			}
			if emit != nil {
				emit(b)
			}
		}
		if !handled {
			d.Idle(1)
		}
	}
}

func (d *Driver) runJob(loop context.Context, j job) error {
	ctx, cancel := context.WithCancel(j.ctx)
	defer cancel()
	stop := context.AfterFunc(loop, cancel)
	defer stop()
	return j.fn(ctx, d)
}
