package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/Satyam1603/GoTogether/internal/client/session"
	"github.com/Satyam1603/GoTogether/internal/common"
)

func (a *App) prompt() string {
	u := a.session.User()
	if u == nil {
		return "gotogether> "
	}
	return fmt.Sprintf("gotogether (%s)> ", describeUser(u))
}

// RunShell reads commands until EOF or "exit". Errors are printed and the
// loop goes on.
func (a *App) RunShell(ctx context.Context) {
	a.printf("GoTogether shell (type 'help' for commands)\n")

	for {
		a.printf("%s", a.prompt())
		line, err := a.reader.ReadString('\n')
		if err != nil && line == "" {
			a.printf("\n")
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		if parts[0] == "exit" || parts[0] == "quit" {
			a.printf("Bye!\n")
			return
		}
		if err := a.dispatch(ctx, parts[0], parts[1:]); err != nil {
			a.printf("error: %s\n", Describe(err))
		}
	}
}

func (a *App) dispatch(ctx context.Context, cmd string, args []string) error {
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}

	switch cmd {
	case "help":
		if a.session.State() == session.Anonymous {
			a.printf("Available commands: register, login, confirm-email <token>, exit\n")
		} else {
			a.printf("Available commands: whoami, status, verify-phone [phone], verify-otp <code>, verify-email [email], avatar-url, logout, exit\n")
		}
		return nil
	case "register":
		return a.Register(ctx, registerInput{})
	case "login":
		return a.Login(ctx, arg(0))
	case "logout":
		return a.Logout(ctx)
	case "whoami":
		return a.WhoAmI(ctx)
	case "status":
		return a.Status(ctx)
	case "verify-phone":
		return a.SendCode(ctx, common.PurposePhone, arg(0))
	case "verify-email":
		return a.SendCode(ctx, common.PurposeEmail, arg(0))
	case "verify-otp":
		if len(args) == 0 {
			a.printf("Usage: verify-otp <code>\n")
			return nil
		}
		return a.VerifyOTP(ctx, args[0], arg(1))
	case "confirm-email":
		if len(args) == 0 {
			a.printf("Usage: confirm-email <token>\n")
			return nil
		}
		return a.ConfirmEmail(ctx, args[0])
	case "avatar-url":
		return a.AvatarURL(ctx)
	}
	a.printf("Unknown command: %s\n", cmd)
	return nil
}
