package engine

import (
	"io"
	"strings"
	"sync"
)

// scriptedConn is an in-memory engine. respond is called for every command
// the session sends and may queue output lines.
type scriptedConn struct {
	mu      sync.Mutex
	sent    []string
	out     chan string
	done    chan struct{}
	once    sync.Once
	respond func(cmd string) []string
}

func newScriptedConn(respond func(cmd string) []string) *scriptedConn {
	return &scriptedConn{
		out:     make(chan string, 1024),
		done:    make(chan struct{}),
		respond: respond,
	}
}

// autoReady answers every isready with readyok.
func autoReady(extra func(cmd string) []string) func(string) []string {
	return func(cmd string) []string {
		if cmd == "isready" {
			return []string{"readyok"}
		}
		if extra != nil {
			return extra(cmd)
		}
		return nil
	}
}

func (c *scriptedConn) Send(cmd string) error {
	c.mu.Lock()
	c.sent = append(c.sent, cmd)
	respond := c.respond
	c.mu.Unlock()

	if respond != nil {
		c.push(respond(cmd)...)
	}
	return nil
}

func (c *scriptedConn) push(lines ...string) {
	for _, l := range lines {
		c.out <- l
	}
}

func (c *scriptedConn) ReadLine() (string, error) {
	select {
	case l := <-c.out:
		return l, nil
	case <-c.done:
		return "", io.EOF
	}
}

func (c *scriptedConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *scriptedConn) commands() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func (c *scriptedConn) count(prefix string) int {
	n := 0
	for _, cmd := range c.commands() {
		if strings.HasPrefix(cmd, prefix) {
			n++
		}
	}
	return n
}
