package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/ilyakarpov/paycodes/internal/common"
)

// Login prompts for credentials and establishes a session. Guest records are
// migrated to the authenticated user as part of the flow.
func (a *App) Login(ctx context.Context) error {
	identifier, err := GetSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	pw, err := GetPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	remember, err := GetChoice(a.reader, "Remember this account?", []string{"y", "n"}, a.out)
	if err != nil {
		return err
	}
	quick := "n"
	if remember == "y" {
		quick, err = GetChoice(a.reader, "Enable quick login?", []string{"y", "n"}, a.out)
		if err != nil {
			return err
		}
	}

	err = a.sessions.Login(ctx, identifier, string(pw), remember == "y", quick == "y")
	if err != nil {
		a.reportAuthError(err)
		return err
	}

	fmt.Fprintln(a.out, "Logged in.")
	go func() {
		if serr := a.sessions.SyncNow(context.WithoutCancel(ctx)); serr != nil {
			a.logger.Warn(ctx, "post-login sync failed", "error", serr)
		}
	}()
	return nil
}

// QuickLogin logs the remembered user in with their stored password.
func (a *App) QuickLogin(ctx context.Context) error {
	err := a.sessions.AttemptAutoLogin(ctx)
	if err != nil {
		a.reportAuthError(err)
		return err
	}
	fmt.Fprintln(a.out, "Logged in.")
	return nil
}

// Logout ends the session. The user chooses whether to stay remembered for
// the next quick login.
func (a *App) Logout(ctx context.Context) error {
	forget, err := GetChoice(a.reader, "Forget this account?", []string{"y", "n"}, a.out)
	if err != nil {
		return err
	}
	if err := a.sessions.Logout(ctx, forget == "y"); err != nil {
		fmt.Fprintln(a.out, "Logout failed:", err)
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

func (a *App) reportAuthError(err error) {
	switch {
	case errors.Is(err, common.ErrValidation):
		fmt.Fprintln(a.out, "Invalid input:", err)
	case errors.Is(err, common.ErrUnauthorized):
		fmt.Fprintln(a.out, "Login failed: wrong credentials or expired session.")
	case errors.Is(err, common.ErrTimeout), errors.Is(err, common.ErrOffline), errors.Is(err, common.ErrUnavailable):
		fmt.Fprintln(a.out, "Server unreachable, try again later.")
	default:
		fmt.Fprintln(a.out, "Login failed:", err)
	}
}
