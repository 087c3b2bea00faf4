package wait

import (
	"fmt"
	"io"
)

// Marks returns a Progress that writes one marker character per
// attempt and a closing "done" line when the wait concludes. It is the
// CLI's visible heartbeat during long polls.
func Marks(w io.Writer) Progress {
	return &marks{w: w}
}

type marks struct {
	w io.Writer
}

func (m *marks) Tick(int) {
	fmt.Fprint(m.w, ".")
}

func (m *marks) Done(Result) {
	fmt.Fprintln(m.w, " done")
}
