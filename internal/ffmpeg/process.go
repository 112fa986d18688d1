package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"video-rewrite/internal/logging"
)

// tailBuffer keeps the last n bytes written to it. ffmpeg reports failures
// at the end of stderr.
type tailBuffer struct {
	mu  sync.Mutex
	n   int
	buf []byte
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{n: n}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.n; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}

// suffix formats the captured output for appending to an error message.
func (t *tailBuffer) suffix() string {
	if s := t.String(); s != "" {
		return " - " + s
	}
	return ""
}

// process is a running ffmpeg child. Its exit status is collected by a
// goroutine so that done can be selected on.
type process struct {
	name   string
	cmd    *exec.Cmd
	stderr *tailBuffer
	done   chan struct{}
	err    error
}

type processSpec struct {
	name   string
	args   []string
	stdin  *os.File
	stdout *os.File
	extra  []*os.File
}

// start launches spec and registers the process for Cleanup. The caller
// still owns the files in spec and must close its copies.
func (b *Backend) start(spec processSpec) (*process, error) {
	cmd := exec.Command(b.config.FFmpegPath, spec.args...)
	p := &process{
		name:   spec.name,
		cmd:    cmd,
		stderr: newTailBuffer(4096),
		done:   make(chan struct{}),
	}
	if spec.stdin != nil {
		cmd.Stdin = spec.stdin
	}
	if spec.stdout != nil {
		cmd.Stdout = spec.stdout
	}
	cmd.ExtraFiles = spec.extra
	cmd.Stderr = p.stderr

	logging.Debug("Starting %s: %s %s", spec.name, b.config.FFmpegPath, strings.Join(spec.args, " "))
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", spec.name, err)
	}

	b.track(p)
	go func() {
		if err := cmd.Wait(); err != nil {
			p.err = fmt.Errorf("%s: %w%s", p.name, err, p.stderr.suffix())
		}
		b.untrack(p)
		close(p.done)
	}()
	return p, nil
}

// wait blocks until the process exits or ctx ends.
func (p *process) wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// kill stops the process and waits for it to be reaped.
func (p *process) kill() {
	if p == nil {
		return
	}
	if !p.exited() && p.cmd.Process != nil {
		if err := p.cmd.Process.Kill(); err != nil && !p.exited() {
			logging.Warn("failed to kill %s: %v", p.name, err)
		}
	}
	<-p.done
}

func (b *Backend) track(p *process) {
	b.processMu.Lock()
	defer b.processMu.Unlock()
	b.processes[p] = struct{}{}
}

func (b *Backend) untrack(p *process) {
	b.processMu.Lock()
	defer b.processMu.Unlock()
	delete(b.processes, p)
}

// Active returns the number of running ffmpeg processes.
func (b *Backend) Active() int {
	b.processMu.Lock()
	defer b.processMu.Unlock()
	return len(b.processes)
}

// Cleanup stops all running ffmpeg processes.
func (b *Backend) Cleanup() {
	b.processMu.Lock()
	procs := make([]*process, 0, len(b.processes))
	for p := range b.processes {
		procs = append(procs, p)
	}
	b.processMu.Unlock()

	for _, p := range procs {
		logging.Info("Killing %s process (pid %d)", p.name, p.cmd.Process.Pid)
		p.kill()
	}
}
