package cli

import "bufio"

type inputLine struct {
	text string
	err  error
}

// readLines reads r line by line on its own goroutine so callers can
// select on cancellation. It stops after the first error, which is sent
// along with any partial line, or once stop is closed. A read already
// blocked on r is abandoned rather than interrupted.
func readLines(r *bufio.Reader, stop <-chan struct{}) <-chan inputLine {
	out := make(chan inputLine)
	go func() {
		defer close(out)
		for {
			text, err := r.ReadString('\n')
			select {
			case out <- inputLine{text: text, err: err}:
			case <-stop:
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}
