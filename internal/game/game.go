// Package game implements the authoritative state machine for one game
// session. Apply is a pure transition function: it validates a command
// against the current state and either returns the unchanged state with an
// error, or a new state plus the ordered notifications the transition
// produced. All timer and AI scheduling lives outside this package.
package game

import (
	"errors"

	"github.com/google/uuid"

	"uno/internal/card"
	"uno/internal/rules"
)

var ErrNotYourTurn = errors.New("not your turn")
var ErrCardNotInHand = errors.New("card not in hand")
var ErrIllegalMove = errors.New("card cannot be played")
var ErrInsufficientPlayers = errors.New("need at least two players")
var ErrSessionFull = errors.New("game is full")
var ErrAlreadyStarted = errors.New("game already started")
var ErrNotStarted = errors.New("game not started")
var ErrGameFinished = errors.New("game already finished")
var ErrNotInSession = errors.New("player not in game")
var ErrCreatorCannotLeave = errors.New("creator must delete the game instead of leaving")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseActive   Phase = "active"
	PhaseFinished Phase = "finished"
)

const HandSize = 7

type Player struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	IsAI     bool      `json:"is_ai"`
}

// State is the authoritative aggregate for one session. Players is the join
// order and IS the turn sequence; it is never reordered while active.
type State struct {
	ID          uuid.UUID                 `json:"id"`
	Name        string                    `json:"name"`
	CreatorID   uuid.UUID                 `json:"creator_id"`
	MaxPlayers  int                       `json:"max_players"`
	Phase       Phase                     `json:"phase"`
	Players     []Player                  `json:"players"`
	Hands       map[uuid.UUID][]card.Card `json:"hands"`
	DrawPile    []card.Card               `json:"draw_pile"`
	DiscardPile []card.Card               `json:"discard_pile"`
	Current     int                       `json:"current"`
	Direction   rules.Direction           `json:"direction"`
}

func NewState(id uuid.UUID, name string, creator Player, maxPlayers int) State {
	if maxPlayers < 2 {
		maxPlayers = 4
	}
	return State{
		ID:         id,
		Name:       name,
		CreatorID:  creator.ID,
		MaxPlayers: maxPlayers,
		Phase:      PhaseWaiting,
		Players:    []Player{creator},
		Hands:      map[uuid.UUID][]card.Card{},
		Direction:  rules.Clockwise,
	}
}

// Clone deep-copies the mutable parts so Apply can validate before mutating.
func (s State) Clone() State {
	ns := s
	ns.Players = append([]Player(nil), s.Players...)
	ns.Hands = make(map[uuid.UUID][]card.Card, len(s.Hands))
	for id, h := range s.Hands {
		ns.Hands[id] = append([]card.Card(nil), h...)
	}
	ns.DrawPile = append([]card.Card(nil), s.DrawPile...)
	ns.DiscardPile = append([]card.Card(nil), s.DiscardPile...)
	return ns
}

func (s State) CurrentPlayer() (Player, bool) {
	if s.Current < 0 || s.Current >= len(s.Players) {
		return Player{}, false
	}
	return s.Players[s.Current], true
}

func (s State) TopCard() (card.Card, bool) {
	if len(s.DiscardPile) == 0 {
		return card.Card{}, false
	}
	return s.DiscardPile[len(s.DiscardPile)-1], true
}

// CardCount is the session-wide card total: hands + draw pile + discard
// pile. It must equal 108 at all times once a game has started.
func (s State) CardCount() int {
	n := len(s.DrawPile) + len(s.DiscardPile)
	for _, h := range s.Hands {
		n += len(h)
	}
	return n
}

func (s State) playerIndex(id uuid.UUID) int {
	for i, p := range s.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

type CommandType string

const (
	CmdJoin        CommandType = "Join"
	CmdLeave       CommandType = "Leave"
	CmdStart       CommandType = "Start"
	CmdPlayCard    CommandType = "PlayCard"
	CmdDrawCard    CommandType = "DrawCard"
	CmdTurnTimeout CommandType = "TurnTimeout"
)

// Command is one inbound operation. PlayerID is the acting player; for
// CmdTurnTimeout it is the player the expired timer was armed for.
type Command struct {
	Type     CommandType
	PlayerID uuid.UUID
	Username string
	IsAI     bool
	Card     card.Card
}

// Apply validates cmd against s and returns the resulting events and state.
// On error the returned state is s unchanged. A stale CmdTurnTimeout is not
// an error: it returns no events and the unchanged state.
func Apply(s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdJoin:
		return applyJoin(s, cmd)
	case CmdLeave:
		return applyLeave(s, cmd)
	case CmdStart:
		return applyStart(s, cmd)
	case CmdPlayCard:
		return applyPlay(s, cmd)
	case CmdDrawCard:
		return applyDraw(s, cmd)
	case CmdTurnTimeout:
		return applyTimeout(s, cmd)
	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func applyJoin(s State, cmd Command) ([]Event, State, error) {
	if s.playerIndex(cmd.PlayerID) >= 0 {
		// Revisiting an already-seated player is a no-op.
		return nil, s, nil
	}
	switch s.Phase {
	case PhaseActive:
		return nil, s, ErrAlreadyStarted
	case PhaseFinished:
		return nil, s, ErrGameFinished
	}
	if len(s.Players) >= s.MaxPlayers {
		return nil, s, ErrSessionFull
	}
	ns := s.Clone()
	p := Player{ID: cmd.PlayerID, Username: cmd.Username, IsAI: cmd.IsAI}
	ns.Players = append(ns.Players, p)
	events := []Event{{Type: EvtPlayerJoined, PlayerID: p.ID, Username: p.Username}}
	return events, ns, nil
}

func applyStart(s State, cmd Command) ([]Event, State, error) {
	switch s.Phase {
	case PhaseActive:
		return nil, s, ErrAlreadyStarted
	case PhaseFinished:
		return nil, s, ErrGameFinished
	}
	if s.playerIndex(cmd.PlayerID) < 0 {
		return nil, s, ErrNotInSession
	}
	if len(s.Players) < 2 {
		return nil, s, ErrInsufficientPlayers
	}

	ns := s.Clone()
	deck := card.NewDeck()
	card.Shuffle(deck)
	for _, p := range ns.Players {
		ns.Hands[p.ID] = append([]card.Card(nil), deck[:HandSize]...)
		deck = deck[HandSize:]
	}

	top, rest := initialDiscard(deck)
	ns.DiscardPile = []card.Card{top}
	ns.DrawPile = rest
	ns.Current = 0
	ns.Direction = rules.Clockwise
	ns.Phase = PhaseActive

	events := []Event{{Type: EvtGameStarted, CurrentPlayer: ns.Players[0].ID}}
	return events, ns, nil
}

// initialDiscard picks the starting discard: the first non-wild card in the
// dealt deck, with the rest becoming the draw pile. If every remaining card
// is wild the top card starts the pile as-is, wild or not.
func initialDiscard(deck []card.Card) (card.Card, []card.Card) {
	topIdx := 0
	for i, c := range deck {
		if !c.IsWild() {
			topIdx = i
			break
		}
	}
	top := deck[topIdx]
	rest := append(deck[:topIdx], deck[topIdx+1:]...)
	return top, rest
}

// requireTurn covers the shared preconditions of play, draw and timeout.
func (s State) requireTurn(id uuid.UUID) error {
	switch s.Phase {
	case PhaseWaiting:
		return ErrNotStarted
	case PhaseFinished:
		return ErrGameFinished
	}
	if s.playerIndex(id) < 0 {
		return ErrNotInSession
	}
	if s.Players[s.Current].ID != id {
		return ErrNotYourTurn
	}
	return nil
}

// findCard locates the played card in the hand. Wilds were just recolored by
// the player, so they match by rank alone; everything else matches exactly.
func findCard(hand []card.Card, c card.Card) int {
	if c.IsWild() {
		for i, h := range hand {
			if h.Rank == c.Rank {
				return i
			}
		}
		return -1
	}
	for i, h := range hand {
		if h == c {
			return i
		}
	}
	return -1
}

// drawOne pops the next card off the draw pile, reshuffling the discard pile
// into it first if the draw pile is empty.
func drawOne(ns *State) (card.Card, error) {
	if len(ns.DrawPile) == 0 {
		draw, discard, err := card.ReshuffleFromDiscard(ns.DiscardPile)
		if err != nil {
			return card.Card{}, err
		}
		ns.DrawPile, ns.DiscardPile = draw, discard
	}
	c := ns.DrawPile[0]
	ns.DrawPile = ns.DrawPile[1:]
	return c, nil
}

func applyPlay(s State, cmd Command) ([]Event, State, error) {
	if err := s.requireTurn(cmd.PlayerID); err != nil {
		return nil, s, err
	}
	// A wild must arrive already recolored; without a chosen color the next
	// player would have nothing to match against.
	if cmd.Card.IsWild() && cmd.Card.Color == card.Wild {
		return nil, s, ErrIllegalMove
	}
	idx := findCard(s.Hands[cmd.PlayerID], cmd.Card)
	if idx < 0 {
		return nil, s, ErrCardNotInHand
	}
	top, _ := s.TopCard()
	if !rules.CanPlay(cmd.Card, top) {
		return nil, s, ErrIllegalMove
	}

	ns := s.Clone()
	hand := ns.Hands[cmd.PlayerID]
	ns.Hands[cmd.PlayerID] = append(hand[:idx], hand[idx+1:]...)
	ns.DiscardPile = append(ns.DiscardPile, cmd.Card)

	// Reverse resolves into direction before the next player is computed.
	if cmd.Card.Rank == card.Reverse {
		ns.Direction = rules.Flip(ns.Direction)
	}

	n := len(ns.Players)
	curIdx := ns.Current
	nextIdx := rules.NextIndex(n, curIdx, rules.TurnOffset(cmd.Card.Rank), ns.Direction)

	var events []Event
	if pen := rules.DrawPenalty(cmd.Card.Rank); pen > 0 {
		victimIdx := rules.NextIndex(n, curIdx, 1, ns.Direction)
		victim := ns.Players[victimIdx]
		drawn := 0
		for i := 0; i < pen; i++ {
			c, err := drawOne(&ns)
			if err != nil {
				break
			}
			ns.Hands[victim.ID] = append(ns.Hands[victim.ID], c)
			drawn++
		}
		events = append(events, Event{
			Type:       EvtPlayerSkipped,
			PlayerID:   victim.ID,
			Username:   victim.Username,
			CardsDrawn: drawn,
			CardsLeft:  len(ns.Hands[victim.ID]),
		})
		// The penalized player's turn is consumed entirely.
		nextIdx = rules.NextIndex(n, victimIdx, 1, ns.Direction)
	}
	ns.Current = nextIdx

	acting := ns.Players[curIdx]
	played := cmd.Card
	if len(ns.Hands[acting.ID]) == 0 {
		ns.Phase = PhaseFinished
		events = append(events, Event{Type: EvtGameFinished, WinnerID: acting.ID, WinnerName: acting.Username})
		return events, ns, nil
	}
	events = append(events, Event{
		Type:          EvtCardPlayed,
		PlayerID:      acting.ID,
		Username:      acting.Username,
		Card:          &played,
		CurrentPlayer: ns.Players[nextIdx].ID,
		CardsLeft:     len(ns.Hands[acting.ID]),
		SpecialAction: specialAction(played.Rank),
	})
	return events, ns, nil
}

func applyDraw(s State, cmd Command) ([]Event, State, error) {
	if err := s.requireTurn(cmd.PlayerID); err != nil {
		return nil, s, err
	}
	ns := s.Clone()
	c, err := drawOne(&ns)
	if err != nil {
		return nil, s, err
	}
	ns.Hands[cmd.PlayerID] = append(ns.Hands[cmd.PlayerID], c)

	// A voluntary draw always costs exactly the turn: one seat, no skips.
	nextIdx := rules.NextIndex(len(ns.Players), ns.Current, 1, ns.Direction)
	ns.Current = nextIdx

	p := ns.Players[s.Current]
	drawn := c
	events := []Event{
		{Type: EvtCardDrawn, PlayerID: p.ID, Card: &drawn, To: &p.ID},
		{Type: EvtPlayerDrewCard, PlayerID: p.ID, Username: p.Username, CardsLeft: len(ns.Hands[p.ID])},
		{Type: EvtTurnChanged, CurrentPlayer: ns.Players[nextIdx].ID},
	}
	return events, ns, nil
}

func applyTimeout(s State, cmd Command) ([]Event, State, error) {
	if s.Phase != PhaseActive {
		return nil, s, nil
	}
	// A timer that fires after the turn already advanced is expected and
	// silently ignored.
	if s.Players[s.Current].ID != cmd.PlayerID {
		return nil, s, nil
	}

	ns := s.Clone()
	c, err := drawOne(&ns)
	if err != nil {
		return nil, s, err
	}
	ns.Hands[cmd.PlayerID] = append(ns.Hands[cmd.PlayerID], c)
	nextIdx := rules.NextIndex(len(ns.Players), ns.Current, 1, ns.Direction)
	ns.Current = nextIdx

	p := ns.Players[s.Current]
	events := []Event{
		{Type: EvtTurnTimedOut, PlayerID: p.ID, Username: p.Username, CardsLeft: len(ns.Hands[p.ID])},
		{Type: EvtTurnChanged, CurrentPlayer: ns.Players[nextIdx].ID},
	}
	return events, ns, nil
}

func applyLeave(s State, cmd Command) ([]Event, State, error) {
	idx := s.playerIndex(cmd.PlayerID)
	if idx < 0 {
		return nil, s, ErrNotInSession
	}
	leaving := s.Players[idx]

	if s.Phase == PhaseWaiting && leaving.ID == s.CreatorID {
		return nil, s, ErrCreatorCannotLeave
	}

	ns := s.Clone()
	events := []Event{{Type: EvtPlayerLeft, PlayerID: leaving.ID, Username: leaving.Username}}

	if ns.Phase != PhaseActive {
		ns.Players = append(ns.Players[:idx], ns.Players[idx+1:]...)
		delete(ns.Hands, leaving.ID)
		return events, ns, nil
	}

	// The leaver's cards go back under the draw pile so the 108-card total
	// is preserved.
	ns.DrawPile = append(ns.DrawPile, ns.Hands[leaving.ID]...)
	delete(ns.Hands, leaving.ID)

	wasCurrent := idx == ns.Current
	var nextID uuid.UUID
	if wasCurrent {
		ni := rules.NextIndex(len(ns.Players), idx, 1, ns.Direction)
		nextID = ns.Players[ni].ID
	} else {
		nextID = ns.Players[ns.Current].ID
	}
	ns.Players = append(ns.Players[:idx], ns.Players[idx+1:]...)

	if len(ns.Players) == 1 {
		// Last player standing wins by forfeit.
		ns.Phase = PhaseFinished
		w := ns.Players[0]
		ns.Current = 0
		events = append(events, Event{Type: EvtGameFinished, WinnerID: w.ID, WinnerName: w.Username})
		return events, ns, nil
	}

	ns.Current = ns.playerIndex(nextID)
	if wasCurrent {
		events = append(events, Event{Type: EvtTurnChanged, CurrentPlayer: nextID})
	}
	return events, ns, nil
}

func specialAction(r card.Rank) string {
	switch r {
	case card.Skip:
		return "Skip"
	case card.Reverse:
		return "Reverse"
	case card.DrawTwo:
		return "Draw 2"
	case card.WildDrawFour:
		return "Wild Draw 4"
	}
	return ""
}
