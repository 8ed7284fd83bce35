package command

import (
	"bufio"
	"fmt"
	"os"
	"time"
)

// maxConsoleLine is the maximum single line the console transport
// reads (spec §4.E: "up to 511 bytes").
const maxConsoleLine = 511

// ConsoleTransport serves the command protocol over standard input,
// with allow_debug always set. A background goroutine reads lines
// into a channel the event loop drains, matching UDPTransport's
// reader/channel split.
type ConsoleTransport struct {
	lines chan string
}

// NewConsoleTransport starts reading stdin. startupBanner, when true,
// reproduces the original's "Press Enter for help." grace period: a
// one-second sleep (to let earlier log output flush) before printing
// the banner. Daemon mode and explicit stdin-disable skip this
// transport entirely; callers should not construct one in that case.
func NewConsoleTransport(startupBanner bool) *ConsoleTransport {
	t := &ConsoleTransport{lines: make(chan string, 4)}
	go t.readLoop(startupBanner)
	return t
}

func (t *ConsoleTransport) readLoop(startupBanner bool) {
	if startupBanner {
		time.Sleep(time.Second)
		fmt.Println("Press Enter for help.")
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, maxConsoleLine+1), maxConsoleLine+1)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) > maxConsoleLine {
			line = line[:maxConsoleLine]
		}
		t.lines <- line
	}
	close(t.lines)
}

// Lines exposes the channel the event loop selects on.
func (t *ConsoleTransport) Lines() <-chan string {
	return t.lines
}

// Reply writes the reply body to stdout (success) or stderr
// (failure); the status byte itself is consumed by this transport
// rather than shown, per spec §4.E.
func (t *ConsoleTransport) Reply(reply *Reply) {
	if reply.Failed() {
		fmt.Fprint(os.Stderr, reply.Body())
		return
	}
	fmt.Fprint(os.Stdout, reply.Body())
}
