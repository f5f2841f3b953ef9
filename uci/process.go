package uci

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

// quitGrace bounds how long Close waits for the engine to exit on its own.
var quitGrace = 3 * time.Second

// Conn is a line-oriented connection to an engine.
type Conn interface {
	Send(cmd string) error
	ReadLine() (string, error)
	Close() error
}

// Process wraps a UCI chess engine running as a child process.
type Process struct {
	cmd    *exec.Cmd
	mu     sync.Mutex
	pipe   io.WriteCloser
	stdin  *bufio.Writer
	stdout *bufio.Scanner

	// drained is closed once stdout has hit EOF or a read error.
	drained   chan struct{}
	drainOnce sync.Once
}

// Start launches the engine binary at path.
func Start(path string, args ...string) (*Process, error) {
	cmd := exec.Command(path, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", path, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return &Process{
		cmd:     cmd,
		pipe:    stdin,
		stdin:   bufio.NewWriter(stdin),
		stdout:  scanner,
		drained: make(chan struct{}),
	}, nil
}

// Send writes one command line and flushes it.
func (p *Process) Send(cmd string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.stdin.WriteString(cmd + "\n"); err != nil {
		return err
	}
	return p.stdin.Flush()
}

// ReadLine blocks for the next output line. It returns io.EOF once the
// engine has exited.
func (p *Process) ReadLine() (string, error) {
	if p.stdout.Scan() {
		return p.stdout.Text(), nil
	}
	p.drainOnce.Do(func() { close(p.drained) })
	if err := p.stdout.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// Close asks the engine to quit, lets the reader consume the remaining
// output and then reaps the process. An engine that ignores quit is killed
// after quitGrace.
func (p *Process) Close() error {
	_ = p.Send(CmdQuit)

	p.mu.Lock()
	_ = p.pipe.Close()
	p.mu.Unlock()

	select {
	case <-p.drained:
	case <-time.After(quitGrace):
		_ = p.cmd.Process.Kill()
		select {
		case <-p.drained:
		case <-time.After(quitGrace):
		}
	}
	return p.cmd.Wait()
}
