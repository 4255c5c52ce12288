package main

import (
	"fmt"
	"time"
)

// terminalNotifier renders timer signals for a foreground countdown session.
// All output is best-effort; the engine never waits on it.
type terminalNotifier struct {
	done chan<- struct{}
}

func newTerminalNotifier(done chan<- struct{}) *terminalNotifier {
	return &terminalNotifier{done: done}
}

// Progress rewrites the countdown line in place.
func (n *terminalNotifier) Progress(projectID string, remaining int64) {
	fmt.Printf("\r%s  %s ", projectID, formatClock(remaining))
}

// IntervalComplete rings the terminal bell a few times and releases the
// session.
func (n *terminalNotifier) IntervalComplete(projectID string, minutes int64) {
	fmt.Printf("\rInterval complete: committed %d min to %q\n", minutes, projectID)
	for i := 0; i < 4; i++ {
		fmt.Print("\a")
		time.Sleep(800 * time.Millisecond)
	}
	close(n.done)
}
