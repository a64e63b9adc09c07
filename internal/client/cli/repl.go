package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. App satisfies it.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Select(ctx context.Context, args []string) error
	Switch(ctx context.Context, args []string) error
	Linked(ctx context.Context) error
	Whoami(ctx context.Context) error
	Token(ctx context.Context) error
	Visits(ctx context.Context, args []string) error
	Locations(ctx context.Context) error
	Providers(ctx context.Context, args []string) error
	Start(ctx context.Context, args []string) error
	Stop(ctx context.Context, args []string) error
	Duty(ctx context.Context, args []string) error
	Image(ctx context.Context) error
	Logout(ctx context.Context) error
}

const (
	helpLoggedOut = "Available commands: login, exit"
	helpLoggedIn  = "Available commands: whoami, linked, select <id>, switch <id>, token, " +
		"visits [dd-mm-yyyy], locations, providers <location>, start <providerId>, stop [location], " +
		"duty on|off [location], image, logout, exit"
)

// runREPL reads commands from scanner until EOF, "exit" or "quit".
// The prompt is "fv <status>> " where status comes from statusFn.
// Command errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("fv %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if cmd == "exit" || cmd == "quit" {
			printlnFn("Bye!")
			return
		}

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpLoggedIn)
			} else {
				printlnFn(helpLoggedOut)
			}
		case "login":
			err = a.Login(ctx)
		case "select":
			err = a.Select(ctx, args)
		case "switch":
			err = a.Switch(ctx, args)
		case "linked":
			err = a.Linked(ctx)
		case "whoami":
			err = a.Whoami(ctx)
		case "token":
			err = a.Token(ctx)
		case "visits":
			err = a.Visits(ctx, args)
		case "locations":
			err = a.Locations(ctx)
		case "providers":
			err = a.Providers(ctx, args)
		case "start":
			err = a.Start(ctx, args)
		case "stop":
			err = a.Stop(ctx, args)
		case "duty":
			err = a.Duty(ctx, args)
		case "image":
			err = a.Image(ctx)
		case "logout":
			err = a.Logout(ctx)
		default:
			printlnFn("Unknown command:", cmd)
		}
		if err != nil {
			printlnFn("error:", err)
		}
	}
}
