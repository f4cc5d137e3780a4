package chat

import (
	"bufio"
	"io"
)

// StartOutboundWriter drains the session outbox onto its connection, one line
// per message, until the session is closed.
func StartOutboundWriter(s *Session) {
	go func() {
		w := bufio.NewWriter(s.Conn)
		for {
			select {
			case msg := <-s.out:
				// Best-effort. If the connection breaks, just stop the writer;
				// the read loop notices the broken transport on its own.
				if err := writeLine(w, msg); err != nil {
					return
				}
				// Coalesce whatever is already queued before flushing.
				for n := len(s.out); n > 0; n-- {
					if err := writeLine(w, <-s.out); err != nil {
						return
					}
				}
				if err := w.Flush(); err != nil {
					return
				}
			case <-s.done:
				return
			}
		}
	}()
}

func writeLine(w io.StringWriter, msg string) error {
	_, err := w.WriteString(msg + "\n")
	return err
}
