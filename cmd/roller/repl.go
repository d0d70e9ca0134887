package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/dicehall/internal/config"
	"github.com/cory-johannsen/dicehall/internal/game/dice"
	"github.com/cory-johannsen/dicehall/internal/game/visibility"
	"github.com/cory-johannsen/dicehall/internal/identity"
	"github.com/cory-johannsen/dicehall/internal/room"
	"github.com/cory-johannsen/dicehall/internal/solo"
)

// app holds the REPL's collaborators. Room state lives in the session; solo
// history lives in the ledger.
type app struct {
	roller  *dice.Roller
	session *room.Session
	ledger  *solo.Ledger
	ident   identity.Identity
	cfg     config.Config
	logger  *zap.Logger
	out     io.Writer
	in      io.Reader
}

const helpText = `Commands:
  3d, 3d+2        roll a pool (shared when in a room)
  /secret 3d      roll visible only to you until revealed
  /hidden 3d      roll completely hidden until revealed
  /reveal <id>    disclose one of your secret or hidden rolls
  /cp <id> <n>    spend character points for n bonus dice on your roll
  /join <slug>    join (or create) a shared room
  /create         create a room with a generated slug and join it
  /leave          leave the current room
  /nick <name>    change your display name
  /who            list who is in the room
  /log            show the roll history as you may see it
  /help           this text
  /quit           exit`

// run reads commands until EOF, /quit, or cancellation.
func (a *app) run(ctx context.Context) error {
	fmt.Fprintf(a.out, "dicehall — rolling as %s (/help for commands)\n", a.ident.Nickname)

	scanner := bufio.NewScanner(a.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}
		a.dispatch(ctx, line)
	}
	return scanner.Err()
}

func (a *app) dispatch(ctx context.Context, line string) {
	if !strings.HasPrefix(line, "/") {
		a.roll(ctx, line, visibility.Shared)
		return
	}

	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/help":
		fmt.Fprintln(a.out, helpText)
	case "/secret":
		a.roll(ctx, rest, visibility.Secret)
	case "/hidden":
		a.roll(ctx, rest, visibility.Hidden)
	case "/reveal":
		a.reveal(ctx, rest)
	case "/cp":
		a.spendCP(ctx, rest)
	case "/join":
		a.join(ctx, rest)
	case "/create":
		a.join(ctx, identity.GenerateSlug(a.roller.Source()))
	case "/leave":
		a.session.Leave()
		fmt.Fprintln(a.out, "left the room")
	case "/nick":
		a.setNickname(ctx, rest)
	case "/who":
		a.who()
	case "/log":
		a.printLog()
	default:
		fmt.Fprintf(a.out, "unknown command %s (/help for commands)\n", cmd)
	}
}

func (a *app) roll(ctx context.Context, notation string, vis visibility.Visibility) {
	roll, err := a.roller.ResolveNotation(notation)
	if err != nil {
		if errors.Is(err, dice.ErrBadNotation) {
			fmt.Fprintf(a.out, "bad notation %q: try 3d or 3d+2\n", notation)
			return
		}
		fmt.Fprintf(a.out, "roll failed: %v\n", err)
		return
	}

	if a.inRoom() {
		if err := a.session.BroadcastRoll(ctx, roll, a.session.Nickname(), vis); err != nil {
			fmt.Fprintf(a.out, "broadcast failed: %v\n", err)
			return
		}
	} else {
		if vis != visibility.Shared {
			fmt.Fprintln(a.out, "(no room joined; rolling solo)")
		}
		if err := a.ledger.Append(roll); err != nil {
			a.logger.Warn("recording solo roll", zap.Error(err))
		}
	}
	a.printRoll(roll)
}

func (a *app) reveal(ctx context.Context, arg string) {
	if !a.inRoom() {
		fmt.Fprintln(a.out, "reveal only applies in a room")
		return
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		fmt.Fprintf(a.out, "usage: /reveal <id>\n")
		return
	}
	switch err := a.session.RevealRoll(ctx, id); {
	case errors.Is(err, room.ErrNotRollOwner):
		fmt.Fprintln(a.out, "only the roller may reveal a roll")
	case errors.Is(err, room.ErrRollNotFound):
		fmt.Fprintf(a.out, "no roll %d\n", id)
	case err != nil:
		fmt.Fprintf(a.out, "reveal failed: %v\n", err)
	default:
		fmt.Fprintf(a.out, "roll %d revealed\n", id)
	}
}

func (a *app) spendCP(ctx context.Context, args string) {
	if !a.inRoom() {
		fmt.Fprintln(a.out, "character points only apply in a room")
		return
	}
	fields := strings.Fields(args)
	if len(fields) != 2 {
		fmt.Fprintln(a.out, "usage: /cp <id> <n>")
		return
	}
	id, err1 := strconv.ParseInt(fields[0], 10, 64)
	count, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil || count < 1 {
		fmt.Fprintln(a.out, "usage: /cp <id> <n>")
		return
	}

	var target *room.RoomRoll
	for _, r := range a.session.Rolls() {
		if r.ID == id {
			rr := r
			target = &rr
			break
		}
	}
	if target == nil {
		fmt.Fprintf(a.out, "no roll %d\n", id)
		return
	}
	if !target.IsLocal {
		fmt.Fprintln(a.out, "you can only spend points on your own rolls")
		return
	}

	updated, appended := a.roller.AppendBonusDice(target.Roll, count)
	if err := a.session.BroadcastCPSpend(ctx, id, updated); err != nil {
		fmt.Fprintf(a.out, "bonus dice failed: %v\n", err)
		return
	}
	fmt.Fprintf(a.out, "added %d bonus dice to roll %d\n", len(appended), id)
	a.printRoll(updated)
}

func (a *app) join(ctx context.Context, slug string) {
	if slug == "" || !identity.ValidSlug(slug) {
		fmt.Fprintln(a.out, "usage: /join <slug> (lowercase words and hyphens)")
		return
	}
	if err := a.session.Join(ctx, slug); err != nil {
		if errors.Is(err, room.ErrNotConfigured) {
			fmt.Fprintln(a.out, "rooms are not configured; rolling solo")
			return
		}
		fmt.Fprintf(a.out, "join failed: %v\n", err)
		return
	}
	if rm, ok := a.session.Room(); ok {
		fmt.Fprintf(a.out, "joined %s (%d rolls of history)\n", rm.Slug, len(a.session.Rolls()))
	}
}

func (a *app) setNickname(ctx context.Context, name string) {
	if name == "" {
		fmt.Fprintln(a.out, "usage: /nick <name>")
		return
	}
	if err := a.session.SetNickname(ctx, name); err != nil {
		fmt.Fprintf(a.out, "nickname change failed: %v\n", err)
		return
	}
	a.ident.Nickname = name
	if err := a.ident.Save(a.cfg.Identity.Path); err != nil {
		a.logger.Warn("persisting nickname", zap.Error(err))
	}
	fmt.Fprintf(a.out, "rolling as %s\n", name)
}

func (a *app) who() {
	if !a.inRoom() {
		fmt.Fprintln(a.out, "not in a room")
		return
	}
	users := a.session.Users()
	if len(users) == 0 {
		fmt.Fprintln(a.out, "nobody here yet")
		return
	}
	for _, u := range users {
		fmt.Fprintf(a.out, "  %s\n", u.Nickname)
	}
}

func (a *app) printLog() {
	if a.inRoom() {
		for _, entry := range a.session.Ledger() {
			if entry.Disclosure == visibility.DisclosurePlaceholder {
				fmt.Fprintf(a.out, "  #%d %s rolled (undisclosed)\n", entry.ID, entry.Nickname)
				continue
			}
			fmt.Fprintf(a.out, "  #%d %s: %s\n", entry.ID, entry.Nickname, dice.CopyText(entry.Roll))
		}
		return
	}
	for _, roll := range a.ledger.Rolls() {
		fmt.Fprintf(a.out, "  #%d %s\n", roll.ID, dice.CopyText(roll))
	}
}

func (a *app) printRoll(roll dice.Roll) {
	fmt.Fprintf(a.out, "#%d %s\n", roll.ID, dice.CopyText(roll))
	if breakdown := dice.Breakdown(roll); breakdown != "" {
		fmt.Fprintf(a.out, "   %s\n", breakdown)
	}
}

func (a *app) inRoom() bool {
	_, ok := a.session.Room()
	return ok
}
