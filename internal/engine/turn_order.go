package engine

// WinLines are the eight three-in-a-row lines of the 3x3 grid.
var WinLines = [8][3]int{
	// Rows
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	// Columns
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	// Diagonals
	{0, 4, 8},
	{2, 4, 6},
}

// factionMode is on when both factions have at least one player.
func factionMode(s *State) bool {
	var a, b bool
	for _, p := range s.Players() {
		a = a || p.Faction == FactionA
		b = b || p.Faction == FactionB
	}
	return a && b
}

// turnSlots lists the owners that take turns: player team ids in join order,
// or the two factions. Once bingo has started the list is the one stored on it.
func turnSlots(s *State) []string {
	if s.Bingo != nil && len(s.Bingo.Slots) > 0 {
		return s.Bingo.Slots
	}
	if (s.Bingo != nil && s.Bingo.Factions) || (s.Bingo == nil && factionMode(s)) {
		return []string{string(FactionA), string(FactionB)}
	}
	players := s.Players()
	slots := make([]string, len(players))
	for i, p := range players {
		slots[i] = p.ID
	}
	return slots
}

func slotOnTurn(s *State) string {
	slots := turnSlots(s)
	if len(slots) == 0 {
		return ""
	}
	return slots[s.Bingo.Turn%len(slots)]
}

func ownerKey(b *Bingo, t Team) string {
	if b.Factions {
		return string(t.Faction)
	}
	return t.ID
}

func cellOwner(b *Bingo, c BingoCell) string {
	if c.Status != CellWon {
		return ""
	}
	if b.Factions {
		return string(c.WonByFaction)
	}
	return c.WonByTeamID
}

func completedLine(b *Bingo, owner string) []int {
	for _, line := range WinLines {
		if cellOwner(b, b.Cells[line[0]]) == owner &&
			cellOwner(b, b.Cells[line[1]]) == owner &&
			cellOwner(b, b.Cells[line[2]]) == owner {
			return line[:]
		}
	}
	return nil
}

func gridResolved(b *Bingo) bool {
	for _, c := range b.Cells {
		if c.Status != CellWon && c.Status != CellLocked {
			return false
		}
	}
	return true
}

// mostCellsWinner picks the owner with the most WON cells. Ties go to the
// owner earliest in turn order; no WON cells means no winner.
func mostCellsWinner(s *State) string {
	counts := map[string]int{}
	for _, c := range s.Bingo.Cells {
		if o := cellOwner(s.Bingo, c); o != "" {
			counts[o]++
		}
	}
	best, bestN := "", 0
	for _, slot := range turnSlots(s) {
		if counts[slot] > bestN {
			best, bestN = slot, counts[slot]
		}
	}
	return best
}

// OnTurn reports the owner whose turn it is during bingo: a team id, or a
// faction in faction mode.
func (s State) OnTurn() string {
	if s.Bingo == nil {
		return ""
	}
	return slotOnTurn(&s)
}
