package cli

import (
	"context"
	"net/http"
	"time"

	"github.com/Satyam1603/GoTogether/internal/client/client"
)

// SendCode asks for a new phone code or email link. contact may be empty to
// use the one stored on the account.
func (a *App) SendCode(ctx context.Context, purpose, contact string) error {
	id, err := a.userID()
	if err != nil {
		return err
	}

	body := map[string]string{}
	if contact != "" {
		body[purpose] = contact
	}
	var out struct {
		ExpiresAt time.Time `json:"expiresAt"`
	}
	if err := a.session.Do(ctx, client.Request{Method: http.MethodPost, Path: "/users/" + id + "/verify-" + purpose, Body: body}, &out); err != nil {
		return err
	}

	what := "Code"
	if purpose == "email" {
		what = "Link"
	}
	a.printf("%s sent, valid until %s.\n", what, out.ExpiresAt.Local().Format(time.Kitchen))
	return nil
}

func (a *App) VerifyOTP(ctx context.Context, code, phone string) error {
	id, err := a.userID()
	if err != nil {
		return err
	}

	q := map[string]string{"otp": code}
	if phone != "" {
		q["phone"] = phone
	}
	var out struct {
		User *client.User `json:"user"`
	}
	if err := a.session.Do(ctx, client.Request{Method: http.MethodPost, Path: "/users/" + id + "/verify-otp", Query: q}, &out); err != nil {
		return err
	}

	if err := a.session.UpdateUser(ctx, out.User); err != nil {
		return err
	}
	a.printf("Phone verified.\n")
	return nil
}

// ConfirmEmail redeems an email link token. It needs no session, so it
// works from any machine.
func (a *App) ConfirmEmail(ctx context.Context, token string) error {
	var out struct {
		User *client.User `json:"user"`
	}
	req := client.Request{Method: http.MethodGet, Path: "/users/verify-email-confirm", Query: map[string]string{"token": token}}
	if err := a.api.Send(ctx, "", req, &out); err != nil {
		return err
	}

	if u := a.session.User(); u != nil && out.User != nil && u.ID == out.User.ID {
		if err := a.session.UpdateUser(ctx, out.User); err != nil {
			return err
		}
	}
	a.printf("Email verified.\n")
	return nil
}
