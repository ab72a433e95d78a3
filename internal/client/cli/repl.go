package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Fprintln

// defaultWatchLimit bounds a watch without an explicit duration, so the
// countdown hands the prompt back well before a payment window closes.
const defaultWatchLimit = time.Minute

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Pay(ctx context.Context, bookingID string, amount int64) error
	Watch(ctx context.Context, bookingID string, limit time.Duration) error
	Check(ctx context.Context, bookingID string) error
	Cancel(ctx context.Context, bookingID string) error
	Retry(ctx context.Context, bookingID string) error
	Status(ctx context.Context, bookingID string) error
	Stay()
}

const (
	helpGuest    = "Available commands: login, status, help, exit"
	helpLoggedIn = "Available commands: pay <booking> [amount], watch <booking> [duration], check <booking>, " +
		"cancel <booking>, retry <booking>, stay, status [booking], logout, help, exit"
)

// runREPL starts a simple read–eval–print loop for the rental client.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. Prompts and usage lines go to out. The loop exits on EOF, on "exit" or "quit",
// or when ctx is cancelled.
//
// Errors returned by command handlers are ignored here; handlers report
// them to the user themselves. This keeps the REPL loop resilient and
// focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, out io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(out, fmt.Sprintf("rent %s> ", statusFn()))

		line, err := reader.ReadString('\n')
		parts := strings.Fields(line)
		if len(parts) == 0 {
			if err != nil {
				return
			}
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(out, helpLoggedIn)
			} else {
				printlnFn(out, helpGuest)
			}

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "pay":
			if len(args) == 0 || len(args) > 2 {
				printlnFn(out, "Usage: pay <booking> [amount]")
				break
			}
			amount, ok := parseAmount(args[1:])
			if !ok {
				printlnFn(out, "Amount must be a positive whole number")
				break
			}
			_ = a.Pay(ctx, args[0], amount)

		case "watch":
			if len(args) == 0 || len(args) > 2 {
				printlnFn(out, "Usage: watch <booking> [duration]")
				break
			}
			limit, ok := parseLimit(args[1:])
			if !ok {
				printlnFn(out, "Duration must be positive, like 90s or 5m")
				break
			}
			_ = a.Watch(ctx, args[0], limit)

		case "check", "cancel", "retry":
			if len(args) != 1 {
				printlnFn(out, fmt.Sprintf("Usage: %s <booking>", cmd))
				break
			}
			_ = bookingCommand(a, cmd)(ctx, args[0])

		case "stay":
			a.Stay()

		case "status":
			bookingID := ""
			if len(args) > 0 {
				bookingID = args[0]
			}
			_ = a.Status(ctx, bookingID)

		case "exit", "quit":
			printlnFn(out, "Bye!")
			return

		default:
			printlnFn(out, "Unknown command:", cmd)
		}
	}
}

func bookingCommand(a execIface, cmd string) func(context.Context, string) error {
	switch cmd {
	case "check":
		return a.Check
	case "cancel":
		return a.Cancel
	default:
		return a.Retry
	}
}

// parseAmount reads the optional amount argument. No argument is zero.
func parseAmount(args []string) (int64, bool) {
	if len(args) == 0 {
		return 0, true
	}
	amount, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || amount <= 0 {
		return 0, false
	}
	return amount, true
}

// parseLimit reads the optional watch duration. No argument is the default.
func parseLimit(args []string) (time.Duration, bool) {
	if len(args) == 0 {
		return defaultWatchLimit, true
	}
	d, err := time.ParseDuration(args[0])
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}
