package cli

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"
)

const (
	helpLoggedOut = "Available commands: login, help, exit"
	helpManager   = "Available commands: dashboard, list, show <id>, team, give [employee_id], edit <id>, stats, whoami, logout, exit"
	helpEmployee  = "Available commands: dashboard, list, show <id>, ack <id>, stats, whoami, logout, exit"
)

// Run reads commands until EOF, "exit" or "quit", or until ctx is done.
// Command failures are reported to the user and never end the loop.
func (a *App) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		a.printf("%s> ", a.status())
		line, err := a.prompt.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				a.log.Error("failed to read command", zap.Error(err))
			}
			a.printf("\n")
			return
		}
		if !a.dispatch(ctx, line) {
			return
		}
	}
}

// status is the prompt prefix: the live username or "feedback".
func (a *App) status() string {
	if s, ok := a.sessions.Current(); ok {
		return s.User.Username
	}
	return "feedback"
}

// dispatch runs one command line. It returns false when the shell should
// stop.
func (a *App) dispatch(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd, arg := parts[0], ""
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "help":
		a.help()
	case "login":
		_ = a.Login(ctx)
	case "logout":
		_ = a.Logout(ctx)
	case "whoami":
		_ = a.WhoAmI(ctx)
	case "dashboard":
		_ = a.Dashboard(ctx)
	case "l", "list":
		_ = a.List(ctx)
	case "show":
		_ = a.Show(ctx, arg)
	case "team":
		_ = a.Team(ctx)
	case "give":
		_ = a.Give(ctx, arg)
	case "edit":
		_ = a.Edit(ctx, arg)
	case "ack":
		_ = a.Ack(ctx, arg)
	case "stats":
		_ = a.Stats(ctx)
	case "exit", "quit":
		a.printf("Bye!\n")
		return false
	default:
		a.printf("Unknown command: %s. Type 'help' for a list of commands.\n", cmd)
	}
	return true
}

func (a *App) help() {
	s, ok := a.sessions.Current()
	switch {
	case !ok:
		a.printf("%s\n", helpLoggedOut)
	case s.User.IsManager():
		a.printf("%s\n", helpManager)
	default:
		a.printf("%s\n", helpEmployee)
	}
}
