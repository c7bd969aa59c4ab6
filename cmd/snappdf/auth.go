package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/term"

	"snappdf/internal/account"
	"snappdf/internal/session"
)

func (a *app) cmdSignup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ExitOnError)
	fullname := fs.String("name", "", "full name")
	email := fs.String("email", "", "email address")
	mobile := fs.String("mobile", "", "mobile number (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}
	err = a.account.Signup(ctx, account.SignupRequest{
		Fullname: *fullname,
		Email:    *email,
		Mobile:   *mobile,
		Password: password,
	})
	if err != nil {
		return err
	}
	fmt.Println("account created, now run: snappdf login -email", *email)
	return nil
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}
	if err := a.account.Login(ctx, account.Credentials{Email: *email, Password: password}); err != nil {
		return err
	}
	a.sessions.Invalidate()
	s, err := a.sessions.Get(ctx)
	if err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("login succeeded but the session could not be resolved")
	}
	fmt.Printf("welcome back, %s\n", s.Fullname)
	return nil
}

func (a *app) cmdLogout(ctx context.Context) error {
	if err := a.account.Logout(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("server-side logout failed, clearing local state anyway")
	}
	a.sessions.Clear()
	fmt.Println("logged out")
	return nil
}

func (a *app) cmdWhoami(ctx context.Context) error {
	s, err := a.requireCapability(ctx, session.CapabilityAuthenticated)
	if err != nil {
		return err
	}
	fmt.Printf("%s <%s>\n", s.Fullname, s.Email)
	fmt.Printf("role:    %s\n", s.Role)
	fmt.Printf("credits: %d of %d remaining\n", s.CreditsLeft(), s.Credit)
	if s.Image != "" {
		fmt.Printf("avatar:  %s\n", s.Image)
	}
	return nil
}

func (a *app) cmdAvatar(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("avatar", flag.ExitOnError)
	path := fs.String("file", "", "image file to upload")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := a.requireCapability(ctx, session.CapabilityAuthenticated); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("-file is required")
	}
	data, err := os.ReadFile(*path)
	if err != nil {
		return err
	}
	url, err := a.files.UploadLogo(ctx, filepath.Base(*path), data)
	if err != nil {
		return err
	}
	if err := a.account.UpdateImage(ctx, url); err != nil {
		return err
	}
	if err := a.account.RefreshToken(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("credential renewal after avatar update failed")
	}
	a.sessions.Invalidate()
	fmt.Println("avatar updated:", url)
	return nil
}

// promptPassword reads a password without echo when stdin is a terminal,
// falling back to a plain line read for piped input.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(syscall.Stdin)) {
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
