package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Satyam1603/GoTogether/internal/client/client"
	"github.com/Satyam1603/GoTogether/internal/common"
)

// getSimpleText and getPassword are swapped in tests.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

type registerInput struct {
	Email     string
	Phone     string
	FirstName string
	LastName  string
	Role      string
	Verify    string
}

// Register prompts for a password and creates the account. The new session
// is kept; the account stays pending until a code is verified.
func (a *App) Register(ctx context.Context, in registerInput) error {
	if in.Email == "" && in.Phone == "" {
		v, err := getSimpleText(a.reader, "Email or phone", a.out)
		if err != nil {
			return err
		}
		if strings.Contains(v, "@") {
			in.Email = v
		} else {
			in.Phone = v
		}
	}

	password, err := getPassword(a.reader, "Password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.session.Register(ctx, client.RegisterRequest{
		Email:              in.Email,
		Phone:              in.Phone,
		Password:           string(password),
		FirstName:          in.FirstName,
		LastName:           in.LastName,
		Role:               strings.ToUpper(in.Role),
		VerificationMethod: in.Verify,
	})
	if err != nil {
		return err
	}

	a.printf("Registered %s.\n", describeUser(u))
	switch u.VerificationMethod {
	case common.PurposePhone:
		a.printf("A code was sent to your phone. Run 'gotogether verify-otp <code>'.\n")
	case common.PurposeEmail:
		a.printf("A link was sent to your email. Open it or run 'gotogether confirm-email <token>'.\n")
	}
	return nil
}

// Login authenticates with an email or phone number.
func (a *App) Login(ctx context.Context, login string) error {
	if login == "" {
		v, err := getSimpleText(a.reader, "Email or phone", a.out)
		if err != nil {
			return err
		}
		login = v
	}

	password, err := getPassword(a.reader, "Password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.session.Login(ctx, login, string(password))
	if err != nil {
		var ae *client.APIError
		if errors.As(err, &ae) && ae.Status == http.StatusForbidden {
			return fmt.Errorf("%w: finish verification before logging in", err)
		}
		return err
	}
	a.printf("Logged in as %s.\n", describeUser(u))
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if a.session.User() == nil {
		a.printf("Not logged in.\n")
		return nil
	}
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	a.printf("Logged out.\n")
	return nil
}

// WhoAmI fetches the current user from the server and refreshes the
// stored snapshot.
func (a *App) WhoAmI(ctx context.Context) error {
	id, err := a.userID()
	if err != nil {
		return err
	}

	var out struct {
		User *client.User `json:"user"`
	}
	if err := a.session.Do(ctx, client.Request{Method: http.MethodGet, Path: "/users/" + id}, &out); err != nil {
		return err
	}
	if err := a.session.UpdateUser(ctx, out.User); err != nil {
		return err
	}

	u := out.User
	a.printf("%s\n", describeUser(u))
	a.printf("  role:           %s\n", u.Role)
	a.printf("  email verified: %t\n", u.EmailVerified)
	a.printf("  phone verified: %t\n", u.PhoneVerified)
	a.printf("  member since:   %s\n", u.CreatedAt.Format("2006-01-02"))
	return nil
}

func (a *App) Status(ctx context.Context) error {
	id, err := a.userID()
	if err != nil {
		return err
	}

	var out struct {
		Method        string `json:"verificationMethod"`
		EmailVerified bool   `json:"emailVerified"`
		PhoneVerified bool   `json:"phoneVerified"`
		Active        bool   `json:"active"`
	}
	if err := a.session.Do(ctx, client.Request{Method: http.MethodGet, Path: "/users/" + id + "/verification-status"}, &out); err != nil {
		return err
	}

	state := "pending"
	if out.Active {
		state = "active"
	}
	a.printf("Account %s (verification by %s; email verified: %t, phone verified: %t)\n",
		state, out.Method, out.EmailVerified, out.PhoneVerified)
	return nil
}

// ChangePassword updates the password. The server revokes every refresh
// token, so the local session is dropped too.
func (a *App) ChangePassword(ctx context.Context) error {
	id, err := a.userID()
	if err != nil {
		return err
	}

	current, err := getPassword(a.reader, "Current password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(current)
	next, err := getPassword(a.reader, "New password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(next)

	body := map[string]string{"currentPassword": string(current), "newPassword": string(next)}
	if err := a.session.Do(ctx, client.Request{Method: http.MethodPatch, Path: "/users/" + id + "/password", Body: body}, nil); err != nil {
		return err
	}

	_ = a.session.Logout(ctx)
	a.printf("Password changed. Please log in again.\n")
	return nil
}

// profileInput holds the fields to change; nil means keep.
type profileInput struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Email     *string `json:"email,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}

// UpdateProfile changes names or contacts. A new email or phone has to be
// verified again before the account is fully usable.
func (a *App) UpdateProfile(ctx context.Context, in profileInput) error {
	id, err := a.userID()
	if err != nil {
		return err
	}
	if in == (profileInput{}) {
		return errors.New("nothing to update")
	}

	var out struct {
		User *client.User `json:"user"`
	}
	if err := a.session.Do(ctx, client.Request{Method: http.MethodPut, Path: "/users/" + id, Body: in}, &out); err != nil {
		return err
	}
	if err := a.session.UpdateUser(ctx, out.User); err != nil {
		return err
	}

	a.printf("Profile updated: %s.\n", describeUser(out.User))
	if !out.User.Active {
		a.printf("Verify your new %s to keep full access.\n", out.User.VerificationMethod)
	}
	return nil
}

func describeUser(u *client.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	var contact string
	switch {
	case u.Email != nil && *u.Email != "":
		contact = *u.Email
	case u.Phone != nil:
		contact = *u.Phone
	}
	switch {
	case name != "" && contact != "":
		return fmt.Sprintf("%s <%s>", name, contact)
	case name != "":
		return name
	case contact != "":
		return contact
	}
	return u.ID
}
