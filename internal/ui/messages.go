package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// idleInterval paces status refreshes while the view does not animate.
const idleInterval = 200 * time.Millisecond

// frameMsg is one tick of a frame chain. Ticks from a superseded chain
// carry an old seq and are dropped.
type frameMsg struct {
	at  time.Time
	seq int
}

type wakeMsg struct{}
type sourceDoneMsg struct{}

func frameCmd(seq int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return frameMsg{at: t, seq: seq}
	})
}

func waitWake(wake <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-wake
		return wakeMsg{}
	}
}

// waitDone reports when the source runs out. Live sources never do.
func waitDone(done <-chan struct{}) tea.Cmd {
	if done == nil {
		return nil
	}
	return func() tea.Msg {
		<-done
		return sourceDoneMsg{}
	}
}
