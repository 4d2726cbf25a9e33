package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/Satyam1603/GoTogether/internal/client/config"
	"github.com/Satyam1603/GoTogether/internal/common"
)

// NewRootCmd builds the command tree. cfg carries defaults, file and
// environment values; flags override them.
func NewRootCmd(cfg *config.Config, in io.Reader, out io.Writer) *cobra.Command {
	var app *App

	root := &cobra.Command{
		Use:           "gotogether",
		Short:         "GoTogether account client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			a, err := NewApp(cmd.Context(), cfg, in, out)
			if err != nil {
				return err
			}
			app = a
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if app == nil {
				return nil
			}
			return app.Close()
		},
	}
	root.SetIn(in)
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "API base URL including the base path")
	flags.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "local session database")
	flags.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "per request timeout")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.StringP("config", "c", "", "JSON config file")

	get := func() *App { return app }
	root.AddCommand(
		registerCmd(get),
		loginCmd(get),
		simpleCmd(get, "logout", "Revoke the session and forget it locally", (*App).Logout),
		simpleCmd(get, "whoami", "Show the logged in user", (*App).WhoAmI),
		simpleCmd(get, "status", "Show verification status", (*App).Status),
		simpleCmd(get, "change-password", "Change the account password", (*App).ChangePassword),
		updateProfileCmd(get),
		sendCodeCmd(get, common.PurposePhone),
		sendCodeCmd(get, common.PurposeEmail),
		verifyOTPCmd(get),
		confirmEmailCmd(get),
		avatarCmd(get),
		shellCmd(get),
	)
	return root
}

func registerCmd(get func() *App) *cobra.Command {
	var in registerInput
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return get().Register(cmd.Context(), in)
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Email, "email", "", "email address")
	f.StringVar(&in.Phone, "phone", "", "phone number")
	f.StringVar(&in.FirstName, "first-name", "", "first name")
	f.StringVar(&in.LastName, "last-name", "", "last name")
	f.StringVar(&in.Role, "role", "passenger", "passenger or driver")
	f.StringVar(&in.Verify, "verify", "", "verification method: phone or email")
	return cmd
}

func loginCmd(get func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login [email-or-phone]",
		Short: "Log in and keep the session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var login string
			if len(args) == 1 {
				login = args[0]
			}
			return get().Login(cmd.Context(), login)
		},
	}
}

func updateProfileCmd(get func() *App) *cobra.Command {
	var firstName, lastName, email, phone string
	cmd := &cobra.Command{
		Use:   "update-profile",
		Short: "Change name, email or phone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in profileInput
			f := cmd.Flags()
			if f.Changed("first-name") {
				in.FirstName = &firstName
			}
			if f.Changed("last-name") {
				in.LastName = &lastName
			}
			if f.Changed("email") {
				in.Email = &email
			}
			if f.Changed("phone") {
				in.Phone = &phone
			}
			return get().UpdateProfile(cmd.Context(), in)
		},
	}
	f := cmd.Flags()
	f.StringVar(&firstName, "first-name", "", "first name")
	f.StringVar(&lastName, "last-name", "", "last name")
	f.StringVar(&email, "email", "", "new email, empty to remove")
	f.StringVar(&phone, "phone", "", "new phone, empty to remove")
	return cmd
}

func sendCodeCmd(get func() *App, purpose string) *cobra.Command {
	var contact string
	cmd := &cobra.Command{
		Use:   "verify-" + purpose,
		Short: "Send a new " + purpose + " verification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return get().SendCode(cmd.Context(), purpose, contact)
		},
	}
	cmd.Flags().StringVar(&contact, purpose, "", purpose+" to verify, defaults to the one on the account")
	return cmd
}

func verifyOTPCmd(get func() *App) *cobra.Command {
	var phone string
	cmd := &cobra.Command{
		Use:   "verify-otp <code>",
		Short: "Verify the phone code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().VerifyOTP(cmd.Context(), args[0], phone)
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "", "phone the code was sent to")
	return cmd
}

func confirmEmailCmd(get func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm-email <token>",
		Short: "Redeem the token from an email verification link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().ConfirmEmail(cmd.Context(), args[0])
		},
	}
}

func avatarCmd(get func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "avatar",
		Short: "Manage the profile image",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "upload <image-file>",
			Short: "Upload a profile image",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return get().UploadAvatar(cmd.Context(), args[0])
			},
		},
		simpleCmd(get, "url", "Print a temporary download URL", (*App).AvatarURL),
	)
	return cmd
}

func shellCmd(get func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive prompt sharing one session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			get().RunShell(cmd.Context())
			return nil
		},
	}
}

func simpleCmd(get func() *App, use, short string, run func(*App, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(get(), cmd.Context())
		},
	}
}
