// Command snappdf is the terminal client for the SnapPdf service: account
// management, PDF uploads, per-document chat, and plan administration. It
// talks to the hosted API or to a local devserver, keeping its credential
// cookies under the state directory between runs.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"snappdf/internal/account"
	"snappdf/internal/api"
	"snappdf/internal/chat"
	"snappdf/internal/files"
	"snappdf/internal/infra"
	"snappdf/internal/plans"
	"snappdf/internal/session"
)

const usage = `snappdf - chat with your PDFs from the terminal

Usage: snappdf <command> [flags]

Account:
  signup        create an account
  login         sign in and store the credential
  logout        sign out and drop the credential
  whoami        show the current session and credit balance
  avatar        upload a profile image

Documents:
  files         list uploaded PDFs
  upload        upload a PDF (spends one credit)
  rm            delete an uploaded PDF
  chat          interactive chat with a document
  export        export chat transcripts to a zip archive

Plans:
  plans         list subscription plans
  upgrade       purchase a plan
  plan          create/update/delete plans (admin)

Environment:
  SNAPPDF_SERVER     API base URL (default http://localhost:8080)
  SNAPPDF_STATE_DIR  credential/cookie directory (default ~/.snappdf)
`

type app struct {
	cfg      *infra.Config
	logger   infra.Logger
	account  *account.Client
	plans    *plans.Client
	files    *files.Client
	chat     *chat.Client
	sessions *session.Cache
	gate     *session.Gate
}

func newApp() (*app, error) {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "snappdf").Logger()

	apiClient, err := api.NewClient(api.Options{
		BaseURL:    cfg.ServerBaseURL,
		CookiePath: filepath.Join(cfg.StateDir, "cookies.json"),
		Logger:     &logger,
		Timeout:    cfg.HTTPTimeout,
	})
	if err != nil {
		return nil, err
	}

	acct := account.NewClient(apiClient, &logger)
	sessions := session.NewCache(session.CacheOptions{
		Fetch:  acct.FetchSession,
		TTL:    cfg.SessionTTL,
		Logger: &logger,
	})

	return &app{
		cfg:     cfg,
		logger:  logger,
		account: acct,
		plans: plans.NewClient(plans.Options{
			API:      apiClient,
			Sessions: sessions,
			Renew:    acct.RefreshToken,
			Logger:   &logger,
		}),
		files: files.NewClient(files.Options{
			API:      apiClient,
			Sessions: sessions,
			Renew:    acct.RefreshToken,
			Logger:   &logger,
		}),
		chat:     chat.NewClient(apiClient, &logger),
		sessions: sessions,
		gate:     session.NewGate(sessions),
	}, nil
}

// requireCapability resolves the gate before a guarded command runs. The
// failure messages mirror the product's two distinct redirect targets: login
// for missing sessions, a refusal for insufficient role.
func (a *app) requireCapability(ctx context.Context, cap session.Capability) (*session.Session, error) {
	decision, s, err := a.gate.Resolve(ctx, cap)
	if err != nil {
		return nil, err
	}
	switch decision {
	case session.Authorized:
		return s, nil
	case session.Forbidden:
		return nil, fmt.Errorf("this command needs an admin account")
	default:
		return nil, fmt.Errorf("please login first: snappdf login -email you@example.com")
	}
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	a, err := newApp()
	if err != nil {
		exitWithError(err)
	}

	ctx := context.Background()
	args := os.Args[2:]

	switch os.Args[1] {
	case "signup":
		err = a.cmdSignup(ctx, args)
	case "login":
		err = a.cmdLogin(ctx, args)
	case "logout":
		err = a.cmdLogout(ctx)
	case "whoami":
		err = a.cmdWhoami(ctx)
	case "avatar":
		err = a.cmdAvatar(ctx, args)
	case "files":
		err = a.cmdFiles(ctx)
	case "upload":
		err = a.cmdUpload(ctx, args)
	case "rm":
		err = a.cmdRemove(ctx, args)
	case "chat":
		err = a.cmdChat(ctx, args)
	case "export":
		err = a.cmdExport(ctx, args)
	case "plans":
		err = a.cmdPlans(ctx)
	case "upgrade":
		err = a.cmdUpgrade(ctx, args)
	case "plan":
		err = a.cmdPlanAdmin(ctx, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		exitWithError(err)
	}
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "snappdf: %v\n", err)
	os.Exit(1)
}
