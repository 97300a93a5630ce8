package media

import "context"

// Pending is the future of a running composition.
type Pending struct {
	outputPath string
	done       chan struct{}
	err        error
}

func newPending(outputPath string) *Pending {
	return &Pending{outputPath: outputPath, done: make(chan struct{})}
}

// Settled returns an already resolved Pending. Useful for Processor fakes.
func Settled(outputPath string, err error) *Pending {
	p := newPending(outputPath)
	p.resolve(err)
	return p
}

func (p *Pending) resolve(err error) {
	p.err = err
	close(p.done)
}

// OutputPath is the file the composition writes to.
func (p *Pending) OutputPath() string {
	return p.outputPath
}

// Done is closed once the composition has finished.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the composition finishes or ctx is done.
// Giving up on ctx does not stop the subprocess.
func (p *Pending) Wait(ctx context.Context) (string, error) {
	select {
	case <-p.done:
		if p.err != nil {
			return "", p.err
		}
		return p.outputPath, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
