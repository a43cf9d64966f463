package lobby

import (
	"time"
)

// syncTimer makes the armed time.Timer match state.Timer. The engine bumps
// Timer.Seq whenever it arms a countdown, so a changed seq means the old
// timer is obsolete; a late fire of it is rejected as stale anyway.
func (l *Lobby) syncTimer() {
	t := l.state.Timer
	if t == nil {
		l.stopTimer()
		return
	}
	if l.timer != nil && l.timerSeq == t.Seq {
		return
	}
	l.stopTimer()

	kind, seq := t.Kind, t.Seq
	l.timerSeq = seq
	l.timer = time.AfterFunc(t.Remaining(l.deps.Now()), func() {
		l.post(timerFired{kind: kind, seq: seq})
	})
}

func (l *Lobby) stopTimer() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.timerSeq = 0
}
