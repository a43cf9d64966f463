package engine

import (
	"math/rand/v2"
	"strings"
	"time"
)

// NewGrid lays out the 9 cells: categories cycle through the selection,
// activities cycle through the four types, then the pairs are shuffled.
func NewGrid(categories []string, seed uint64) [9]BingoCell {
	var cells [9]BingoCell
	for i := range cells {
		cat := ""
		if len(categories) > 0 {
			cat = categories[i%len(categories)]
		}
		cells[i] = BingoCell{Category: cat, Activity: Activities[i%len(Activities)]}
	}
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	r.Shuffle(len(cells), func(i, j int) { cells[i], cells[j] = cells[j], cells[i] })
	for i := range cells {
		cells[i].Index = i
		cells[i].Status = CellEmpty
	}
	return cells
}

func startBingo(s *State, seed uint64) Event {
	s.Bingo = &Bingo{
		Stage:      BingoSelecting,
		Cells:      NewGrid(s.SelectedCategoryIDs, seed),
		Factions:   factionMode(s),
		ActiveCell: NoCell,
	}
	s.Bingo.Slots = turnSlots(s)
	return Event{Type: EvtBingoStarted, Turn: slotOnTurn(s)}
}

func requireBingo(s *State, stage BingoStage) error {
	if err := requirePhase(s, PhaseBingo); err != nil {
		return err
	}
	if s.Bingo.Stage != stage {
		return invalidMove("not possible while %s", s.Bingo.Stage)
	}
	return nil
}

func applySelectCell(s *State, cmd Command) ([]Event, error) {
	t, err := requirePlayer(s, cmd)
	if err != nil {
		return nil, err
	}
	if err := requireBingo(s, BingoSelecting); err != nil {
		return nil, err
	}
	b := s.Bingo
	if b.ActiveCell != NoCell {
		return nil, invalidMove("cell %d is already in play", b.ActiveCell)
	}
	if ownerKey(b, *t) != slotOnTurn(s) {
		return nil, invalidMove("it is not your turn")
	}
	if cmd.Cell < 0 || cmd.Cell >= GridCells {
		return nil, invalidMove("cell %d does not exist", cmd.Cell)
	}
	if b.Cells[cmd.Cell].Status != CellEmpty {
		return nil, invalidMove("cell %d is %s", cmd.Cell, b.Cells[cmd.Cell].Status)
	}

	b.Cells[cmd.Cell].Status = CellActive
	b.ActiveCell = cmd.Cell
	b.PerformerID = t.ID
	b.Card = nil
	b.BuzzedBy = ""
	b.Outcome = ""
	return []Event{
		{Type: EvtCellSelected, Cell: intp(cmd.Cell), TeamID: t.ID},
		requestCard(s),
	}, nil
}

func requestCard(s *State) Event {
	b := s.Bingo
	b.DrawSeq++
	b.DrawError = ""
	return Event{Type: EvtCardRequested, Cell: intp(b.ActiveCell), CategoryID: b.Cells[b.ActiveCell].Category, Seq: b.DrawSeq}
}

func drawingFor(s *State, seq int) error {
	if s.Phase != PhaseBingo || s.Bingo.Stage != BingoSelecting || s.Bingo.ActiveCell == NoCell ||
		s.Bingo.Card != nil || s.Bingo.DrawSeq != seq {
		return stale("card draw #%d is not awaited", seq)
	}
	return nil
}

func validCard(c *TabooCard) bool {
	if c == nil || strings.TrimSpace(c.Term) == "" || c.Difficulty < 1 || c.Difficulty > 5 {
		return false
	}
	for _, w := range c.Forbidden {
		if strings.TrimSpace(w) == "" {
			return false
		}
	}
	return true
}

func drawFailed(s *State, reason string) []Event {
	s.Bingo.DrawError = reason
	return []Event{{Type: EvtDrawFailed, HostOnly: true, Cell: intp(s.Bingo.ActiveCell), Reason: reason, Seq: s.Bingo.DrawSeq}}
}

func applyCardReady(s *State, cmd Command) ([]Event, error) {
	if err := requireSystem(cmd); err != nil {
		return nil, err
	}
	if err := drawingFor(s, cmd.Seq); err != nil {
		return nil, err
	}
	if !validCard(cmd.Card) {
		return drawFailed(s, "the drawn card is incomplete"), nil
	}
	b := s.Bingo
	card := *cmd.Card
	cell := b.Cells[b.ActiveCell]
	card.Category = cell.Category
	card.Activity = cell.Activity
	b.Card = &card
	return []Event{{Type: EvtCardDrawn, Cell: intp(b.ActiveCell), TeamID: b.PerformerID}}, nil
}

func applyCardFailed(s *State, cmd Command) ([]Event, error) {
	if err := requireSystem(cmd); err != nil {
		return nil, err
	}
	if err := drawingFor(s, cmd.Seq); err != nil {
		return nil, err
	}
	reason := cmd.Reason
	if reason == "" {
		reason = ErrGeneration.Error()
	}
	return drawFailed(s, reason), nil
}

func applyRetryDraw(s *State, cmd Command) ([]Event, error) {
	if err := requireHost(s, cmd); err != nil {
		return nil, err
	}
	if err := requireBingo(s, BingoSelecting); err != nil {
		return nil, err
	}
	if s.Bingo.ActiveCell == NoCell || s.Bingo.Card != nil {
		return nil, precondition("there is no pending card to draw")
	}
	return []Event{requestCard(s)}, nil
}

func applyStartPerformance(s *State, cmd Command) ([]Event, error) {
	if err := requireHost(s, cmd); err != nil {
		return nil, err
	}
	if err := requireBingo(s, BingoSelecting); err != nil {
		return nil, err
	}
	b := s.Bingo
	if b.ActiveCell == NoCell || b.Card == nil {
		return nil, precondition("select a cell and wait for its card first")
	}
	b.Stage = BingoPerforming
	d := time.Duration(s.Rules.PerformTimerSec) * time.Second
	s.armTimer(TimerPerformance, d, cmd.At)
	return []Event{{Type: EvtPerformanceStarted, Cell: intp(b.ActiveCell), TeamID: b.PerformerID, DurationMs: d.Milliseconds()}}, nil
}

func applyBuzz(s *State, cmd Command) ([]Event, error) {
	t, err := requirePlayer(s, cmd)
	if err != nil {
		return nil, err
	}
	if err := requirePhase(s, PhaseBingo); err != nil {
		return nil, err
	}
	b := s.Bingo
	if b.BuzzedBy != "" {
		return nil, invalidMove("someone already buzzed")
	}
	if b.Stage != BingoPerforming {
		return nil, invalidMove("nothing to buzz right now")
	}
	if t.ID == b.PerformerID {
		return nil, invalidMove("the performing team cannot buzz")
	}
	if b.Factions {
		if performer := s.team(b.PerformerID); performer != nil && performer.Faction == t.Faction {
			return nil, invalidMove("your own faction is performing")
		}
	}

	cell := b.ActiveCell
	b.BuzzedBy = t.ID
	b.Cells[cell].Status = CellLocked
	s.clearTimer()

	events := []Event{
		{Type: EvtBuzzed, TeamID: t.ID, SecretName: t.SecretName, Cell: intp(cell)},
		{Type: EvtCellResolved, Cell: intp(cell), Status: CellLocked, Reason: "buzzed"},
	}
	return append(events, afterResolution(s, "buzzed", cmd.At)...), nil
}

func applyJudge(s *State, cmd Command) ([]Event, error) {
	if err := requireHost(s, cmd); err != nil {
		return nil, err
	}
	if err := requirePhase(s, PhaseBingo); err != nil {
		return nil, err
	}
	b := s.Bingo
	if b.Stage != BingoPerforming || b.BuzzedBy != "" {
		return nil, precondition("there is no performance to judge")
	}
	s.clearTimer()

	cell := b.ActiveCell
	if !cmd.Correct {
		b.Cells[cell].Status = CellLocked
		events := []Event{{Type: EvtCellResolved, Cell: intp(cell), Status: CellLocked, Reason: "wrong"}}
		return append(events, afterResolution(s, "wrong", cmd.At)...), nil
	}

	performer := s.team(b.PerformerID)
	b.Cells[cell].Status = CellWon
	b.Cells[cell].WonByTeamID = b.PerformerID
	if performer != nil {
		b.Cells[cell].WonByFaction = performer.Faction
		performer.Score += PointsCellWon
	}
	events := []Event{{Type: EvtCellResolved, Cell: intp(cell), Status: CellWon, TeamID: b.PerformerID, Reason: "correct"}}

	if performer != nil {
		owner := ownerKey(b, *performer)
		if line := completedLine(b, owner); line != nil {
			won, err := finishBingo(s, owner, line)
			if err != nil {
				return nil, err
			}
			return append(events, won...), nil
		}
	}
	return append(events, afterResolution(s, "won", cmd.At)...), nil
}

func performanceTimeout(s *State, at time.Time) []Event {
	b := s.Bingo
	cell := b.ActiveCell
	b.Cells[cell].Status = CellEmpty
	b.Card = nil
	events := []Event{{Type: EvtCellResolved, Cell: intp(cell), Status: CellEmpty, Reason: "timeout"}}
	return append(events, afterResolution(s, "timeout", at)...)
}

// afterResolution ends the round when the grid is used up, otherwise shows
// the result and arms the short delay before the next turn.
func afterResolution(s *State, outcome string, at time.Time) []Event {
	b := s.Bingo
	b.Outcome = outcome
	if gridResolved(b) {
		events, _ := finishBingo(s, mostCellsWinner(s), nil)
		return events
	}
	b.Stage = BingoResult
	s.armTimer(TimerTurnAdvance, time.Duration(s.Rules.TurnDelayMs)*time.Millisecond, at)
	return nil
}

func advanceTurn(s *State) []Event {
	b := s.Bingo
	s.clearTimer()
	b.Stage = BingoSelecting
	b.ActiveCell = NoCell
	b.PerformerID = ""
	b.Card = nil
	b.BuzzedBy = ""
	b.DrawError = ""
	b.Turn++
	return []Event{{Type: EvtTurnAdvanced, Turn: slotOnTurn(s)}}
}

func applyNextTurn(s *State, cmd Command) ([]Event, error) {
	if err := requireHost(s, cmd); err != nil {
		return nil, err
	}
	if err := requireBingo(s, BingoResult); err != nil {
		return nil, err
	}
	return advanceTurn(s), nil
}

// finishBingo credits the winning owner and moves the session on.
func finishBingo(s *State, winner string, line []int) ([]Event, error) {
	b := s.Bingo
	b.WinnerKey = winner
	b.WinLine = line
	b.ActiveCell = NoCell
	b.Card = nil
	if winner != "" {
		for i := range s.Teams {
			t := &s.Teams[i]
			if !t.IsHost && ownerKey(b, *t) == winner {
				t.Score += PointsBingoWin
			}
		}
	}
	evt, err := transition(s, PhaseLeaderboard)
	if err != nil {
		return nil, err
	}
	return []Event{{Type: EvtBingoWon, Winner: winner, Line: line}, evt}, nil
}
