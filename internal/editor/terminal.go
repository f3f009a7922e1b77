package editor

import "golang.org/x/term"

// SnapshotTerminal guards a TTY for an editor launched from a plain CLI
// command. It never switches modes itself: ReleaseTerminal saves the current
// line discipline and RestoreTerminal puts it back, so an editor that dies
// mid-session cannot leave the shell in raw mode.
type SnapshotTerminal struct {
	FD    int
	state *term.State
}

func NewSnapshotTerminal(fd int) *SnapshotTerminal {
	return &SnapshotTerminal{FD: fd}
}

// ReleaseTerminal records the terminal state. It is a no-op when FD is not
// a terminal.
func (t *SnapshotTerminal) ReleaseTerminal() error {
	if !term.IsTerminal(t.FD) {
		return nil
	}
	st, err := term.GetState(t.FD)
	if err != nil {
		return err
	}
	t.state = st
	return nil
}

// RestoreTerminal reapplies the state recorded by ReleaseTerminal, once.
func (t *SnapshotTerminal) RestoreTerminal() error {
	if t.state == nil {
		return nil
	}
	st := t.state
	t.state = nil
	return term.Restore(t.FD, st)
}
