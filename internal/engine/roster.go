package engine

import (
	"fmt"
	"strings"
)

var aliases = map[Language][]string{
	LangDE: {
		"Kapitän Keks", "Frau Fuchs", "Der Schnurrbart", "Turbo-Toast", "Professor Plüsch",
		"Graf Gurke", "Die Diskokugel", "Opa Orkan", "Lady Lakritz", "Baron Brezel",
		"Madame Mikado", "Sir Sauerkraut", "Die Wanderdüne", "Käpt'n Kakao", "Herr Hummel",
		"Tante Trampolin",
	},
	LangEN: {
		"Captain Cookie", "Madam Fox", "The Moustache", "Turbo Toast", "Professor Plush",
		"Count Pickle", "The Disco Ball", "Grandpa Gale", "Lady Licorice", "Baron Pretzel",
		"Madame Mikado", "Sir Sauerkraut", "The Drifting Dune", "Captain Cocoa", "Mister Bumblebee",
		"Auntie Trampoline",
	},
}

var avatars = []string{
	"fox", "owl", "otter", "panda", "koala", "tiger", "frog", "penguin",
	"sloth", "llama", "hedgehog", "raccoon", "octopus", "bee", "whale", "parrot",
}

// pickAlias returns the first unused alias starting at a seeded offset,
// falling back to numbered aliases once the pool is used up.
func pickAlias(s *State, seed uint64) (string, string) {
	pool := aliases[s.Language]
	if len(pool) == 0 {
		pool = aliases[LangEN]
	}
	taken := make(map[string]bool, len(s.Teams))
	for _, t := range s.Teams {
		taken[t.SecretName] = true
	}
	start := int(seed % uint64(len(pool)))
	for i := range pool {
		idx := (start + i) % len(pool)
		if !taken[pool[idx]] {
			return pool[idx], avatars[idx%len(avatars)]
		}
	}
	for n := 2; ; n++ {
		for i := range pool {
			idx := (start + i) % len(pool)
			name := fmt.Sprintf("%s %d", pool[idx], n)
			if !taken[name] {
				return name, avatars[idx%len(avatars)]
			}
		}
	}
}

func applyJoin(s *State, cmd Command) ([]Event, error) {
	name := strings.TrimSpace(cmd.RealName)
	if name == "" {
		return nil, precondition("a name is required")
	}
	if cmd.TeamID == "" {
		return nil, precondition("team id missing")
	}
	if s.team(cmd.TeamID) != nil {
		return nil, invalidMove("team %s already joined", cmd.TeamID)
	}
	if cmd.AsHost {
		if _, ok := s.Host(); ok {
			return nil, precondition("this session already has a host")
		}
	}

	secretName, avatar := pickAlias(s, cmd.Seed)
	if a := strings.TrimSpace(cmd.Avatar); a != "" {
		avatar = a
	}
	s.Teams = append(s.Teams, Team{
		ID:         cmd.TeamID,
		SessionID:  s.SessionID,
		RealName:   name,
		SecretName: secretName,
		Avatar:     avatar,
		IsHost:     cmd.AsHost,
		Secret:     cmd.Secret,
		JoinedAt:   cmd.At,
	})
	// Late joiners take the last turn slot; the running order stays put.
	if b := s.Bingo; b != nil && s.Phase == PhaseBingo && !b.Factions && !cmd.AsHost && len(b.Slots) > 0 {
		b.Slots = append(b.Slots, cmd.TeamID)
	}
	return []Event{{Type: EvtTeamJoined, TeamID: cmd.TeamID, SecretName: secretName}}, nil
}

func applyConfirmHost(s *State, cmd Command) ([]Event, error) {
	if err := requireHost(s, cmd); err != nil {
		return nil, err
	}
	if err := requirePhase(s, PhaseLobby); err != nil {
		return nil, err
	}
	s.HostConfirmed = true
	return []Event{{Type: EvtHostConfirmed, TeamID: cmd.Actor}}, nil
}

func applySetFaction(s *State, cmd Command) ([]Event, error) {
	t, err := requirePlayer(s, cmd)
	if err != nil {
		return nil, err
	}
	if !cmd.Faction.Valid() {
		return nil, invalidMove("unknown faction %q", cmd.Faction)
	}
	switch s.Phase {
	case PhaseLobby, PhaseCategorySelect, PhaseQuiz:
	default:
		return nil, precondition("factions are fixed once bingo starts")
	}
	t.Faction = cmd.Faction
	return []Event{{Type: EvtFactionChanged, TeamID: t.ID, Faction: t.Faction}}, nil
}

func applyResetScores(s *State, cmd Command) ([]Event, error) {
	if err := requireHost(s, cmd); err != nil {
		return nil, err
	}
	if s.Phase != PhaseLobby && s.Phase != PhaseCategorySelect {
		return nil, precondition("scores can only be reset before the quiz")
	}
	for i := range s.Teams {
		s.Teams[i].Score = 0
	}
	return []Event{{Type: EvtScoresReset}}, nil
}

// Resume checks a reconnecting client's credentials against the roster.
func Resume(s State, teamID, secret string) (Team, error) {
	t, ok := s.Team(teamID)
	if !ok {
		return Team{}, notFound("team %s not found", teamID)
	}
	if t.Secret == "" || t.Secret != secret {
		return Team{}, unauthorized("resume credentials do not match")
	}
	return t, nil
}
