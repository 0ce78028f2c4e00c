// Command pusoy is a terminal client for a pusoy table. It joins a session,
// prints the event stream as readable table updates, and reads actions from
// stdin.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pusoy/internal/client"
	"pusoy/internal/config"
	"pusoy/internal/game"
	"pusoy/internal/protocol"
	"pusoy/internal/timerview"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	serverURL := flag.String("server", "", "server base URL (overrides config)")
	sessionID := flag.String("session", "", "session id to rejoin (overrides config)")
	flag.Parse()

	config.LoadDotEnv()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}
	if *sessionID != "" {
		cfg.SessionID = *sessionID
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := client.Dial(ctx, cfg.ServerURL, cfg.SessionID, client.DefaultConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("could not join a session")
	}
	defer sess.Close()

	fmt.Printf("joined as %s\n", sess.Seat())
	fmt.Printf("invite friends with %s\n", sess.RejoinURL())

	ui := newTerminalUI(sess)
	go ui.consume(cancel)
	ui.prompt(ctx)
}

// terminalUI renders reconciler patches as stdout lines and translates stdin
// commands into session requests.
type terminalUI struct {
	sess  *client.Session
	state game.State
	bank  *timerview.Bank
}

func newTerminalUI(sess *client.Session) *terminalUI {
	ui := &terminalUI{sess: sess, state: game.NewState()}
	ui.bank = timerview.NewBank(clockwork.NewRealClock(), renderCountdown)
	return ui
}

// renderCountdown prints countdown milestones rather than every frame, so
// stdout stays readable.
func renderCountdown(pos protocol.Relative, percent float64, visible bool) {
	switch {
	case !visible:
	case percent == 0:
		fmt.Printf("  clock started for %s\n", pos)
	case percent >= 100:
		fmt.Printf("  clock ran out for %s\n", pos)
	}
}

// consume drains the event stream until it ends, applying each event and
// rendering its patches.
func (ui *terminalUI) consume(done context.CancelFunc) {
	defer done()
	for {
		ev, err := ui.sess.Next()
		if errors.Is(err, io.EOF) {
			fmt.Println("server closed the session")
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("event stream failed")
			return
		}

		next, patches, err := game.Apply(ui.state, ev)
		if err != nil {
			log.Error().Err(err).Str("event", ev.Name()).Msg("cannot reconcile event")
			return
		}
		ui.state = next
		for _, p := range patches {
			ui.render(p)
		}
	}
}

func (ui *terminalUI) render(p game.Patch) {
	switch p.Op {
	case game.OpBindActions:
		fmt.Printf("seated at %s; type 'help' for commands\n", ui.state.MySeat)
	case game.OpShowHostControls:
		fmt.Println("you are the host: 'start' begins the game, 'timer <millis|off>' sets the turn clock")
	case game.OpSeatPresence:
		who := "a bot"
		if p.Human {
			who = "a player"
		}
		fmt.Printf("%s is now %s\n", p.Pos, who)
	case game.OpReplaceHand:
		fmt.Printf("your hand: %s\n", cardList(p.Cards))
	case game.OpShowRoundControls:
		fmt.Println("round started")
	case game.OpReplaceTable:
		if len(p.Cards) == 0 {
			fmt.Println("table cleared")
		} else {
			fmt.Printf("table: %s\n", cardList(p.Cards))
		}
	case game.OpSeatFlags:
		ui.renderFlags(p)
	case game.OpStartCountdown:
		ui.bank.Set(p.Pos, time.Duration(p.Millis)*time.Millisecond)
	case game.OpStopCountdown:
		ui.bank.Stop(p.Pos)
	case game.OpCheckPlayable:
		fmt.Println("your turn: 'play <cards>' or 'pass' ('playable <cards>' to check first)")
	case game.OpMessage:
		fmt.Printf("notice: %s\n", p.Text)
	}
}

func (ui *terminalUI) renderFlags(p game.Patch) {
	var notes []string
	if p.Seat.HasTurn {
		if p.Seat.HasControl {
			notes = append(notes, "leads")
		} else {
			notes = append(notes, "to act")
		}
	}
	if p.Seat.HasPassed {
		notes = append(notes, "passed")
	}
	if p.Seat.HasWon {
		notes = append(notes, "went out")
	}
	if len(notes) == 0 {
		return
	}
	fmt.Printf("%s (%d cards): %s\n", p.Pos, p.Seat.Load, strings.Join(notes, ", "))
}

// prompt reads commands until stdin or the event stream ends.
func (ui *terminalUI) prompt(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		var err error
		switch fields[0] {
		case "start":
			err = ui.sess.Start(ctx)
		case "play":
			err = ui.sess.Play(ctx, cards(fields[1:]))
		case "pass":
			err = ui.sess.Pass(ctx)
		case "playable":
			if err = ui.sess.Playable(ctx, cards(fields[1:])); err == nil {
				fmt.Println("that play would be accepted")
			}
		case "timer":
			err = ui.setTimer(ctx, fields[1:])
		case "url":
			fmt.Println(ui.sess.RejoinURL())
		case "help":
			fmt.Println("commands: start, play <cards>, pass, playable <cards>, timer <millis|off>, url, quit")
		case "quit", "exit":
			return
		default:
			fmt.Printf("unknown command %q; try 'help'\n", fields[0])
		}

		var reqErr *client.RequestError
		switch {
		case errors.As(err, &reqErr):
			fmt.Printf("server says no: %s\n", reqErr.Body)
		case err != nil:
			log.Error().Err(err).Msg("request failed")
		}
	}
}

func (ui *terminalUI) setTimer(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: timer <millis|off>")
	}
	if args[0] == "off" {
		return ui.sess.SetTimer(ctx, nil)
	}
	millis, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("timer wants milliseconds or 'off': %w", err)
	}
	return ui.sess.SetTimer(ctx, &millis)
}

func cards(ids []string) []protocol.Card {
	out := make([]protocol.Card, len(ids))
	for i, id := range ids {
		out[i] = protocol.Card(id)
	}
	return out
}

func cardList(cards []protocol.Card) string {
	if len(cards) == 0 {
		return "(empty)"
	}
	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = string(c)
	}
	return strings.Join(ids, " ")
}
