package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/zaupnik/internal/access"
	"github.com/erazemk/zaupnik/internal/config"
	"github.com/erazemk/zaupnik/internal/db"
	"github.com/erazemk/zaupnik/internal/model"
	"github.com/erazemk/zaupnik/internal/store"
)

// cli carries the output streams of one invocation. Operational commands
// print their result as JSON on stdout and log to stderr.
type cli struct {
	stdout io.Writer
	stderr io.Writer
}

// session is an open database and service acting as one user.
type session struct {
	db       *db.DB
	svc      *access.Service
	caller   *model.User
	closeLog func()
}

func (s *session) Close() {
	s.db.Close()
	s.closeLog()
}

func (s *session) callerID() string {
	if s.caller == nil {
		return ""
	}
	return s.caller.ID
}

// flagSet returns a flag set carrying the shared storage, logging and access
// flags, with defaults taken from the environment.
func (c *cli) flagSet(name, argsUsage string) (*pflag.FlagSet, *config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, err
	}

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.SortFlags = false
	cfg.AddFlags(fs)
	cfg.AddAccessFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(c.stderr, "Usage: zaupnik %s [flags] %s\n\nFlags:\n", name, argsUsage)
		fs.PrintDefaults()
	}
	return fs, cfg, nil
}

func (c *cli) parse(fs *pflag.FlagSet, args []string, nargs int) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != nargs {
		fs.Usage()
		return fmt.Errorf("%s: expected %d argument(s), got %d", fs.Name(), nargs, fs.NArg())
	}
	return nil
}

// open connects to the database and resolves the --as user. An empty as is
// accepted only when requireCaller is false.
func (c *cli) open(ctx context.Context, cfg *config.Config, as string, requireCaller bool) (*session, error) {
	if requireCaller && as == "" {
		return nil, errors.New("--as is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	closeLog := setupLogger(cfg.LogPath, c.stderr)
	database, err := openDatabase(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		closeLog()
		return nil, err
	}

	s := &session{
		db:       database,
		svc:      access.New(database, cfg.Access()),
		closeLog: closeLog,
	}
	if as != "" {
		s.caller, err = lookupUser(ctx, database, as)
		if err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func lookupUser(ctx context.Context, q db.Querier, username string) (*model.User, error) {
	u, err := store.GetUserByUsername(ctx, q, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("unknown user %q", username)
	}
	return u, nil
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func asFlag(fs *pflag.FlagSet) *string {
	return fs.String("as", "", "username to act as")
}

func vaultFlag(fs *pflag.FlagSet) *string {
	return fs.String("vault", "", "vault ID")
}

func required(name, value string) error {
	if value == "" {
		return fmt.Errorf("--%s is required", name)
	}
	return nil
}

func (c *cli) userAdd(ctx context.Context, args []string) error {
	fs, cfg, err := c.flagSet("useradd", "<username>")
	if err != nil {
		return err
	}
	password := fs.StringP("password", "p", "", "password (default: generated)")
	role := fs.String("role", model.RoleUser, "role: admin or user")
	name := fs.String("name", "", "display name (default: username)")
	email := fs.String("email", "", "email address")
	if err := c.parse(fs, args, 1); err != nil {
		return err
	}

	if !model.ValidRole(*role) {
		return fmt.Errorf("invalid role %q", *role)
	}
	var generated string
	if *password == "" {
		if generated, err = generatePassword(16); err != nil {
			return fmt.Errorf("generating password: %w", err)
		}
		*password = generated
	}
	if err := model.ValidatePassword(*password); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	s, err := c.open(ctx, cfg, "", false)
	if err != nil {
		return err
	}
	defer s.Close()

	u, err := store.CreateUser(ctx, s.db, fs.Arg(0), *name, *email, string(hash), *role)
	if err != nil {
		return err
	}
	return c.print(struct {
		User     *model.User `json:"user"`
		Password string      `json:"password,omitempty"`
	}{u, generated})
}

func (c *cli) vaultCreate(ctx context.Context, args []string) error {
	fs, cfg, err := c.flagSet("vault-create", "<name>")
	if err != nil {
		return err
	}
	as := asFlag(fs)
	if err := c.parse(fs, args, 1); err != nil {
		return err
	}

	s, err := c.open(ctx, cfg, *as, true)
	if err != nil {
		return err
	}
	defer s.Close()

	v, err := s.svc.CreateVault(ctx, s.callerID(), fs.Arg(0))
	if err != nil {
		return err
	}
	return c.print(v)
}

func (c *cli) issueInvite(ctx context.Context, args []string) error {
	fs, cfg, err := c.flagSet("issue-invite", "")
	if err != nil {
		return err
	}
	as := asFlag(fs)
	vault := vaultFlag(fs)
	name := fs.String("name", "", "nominee's name")
	email := fs.String("email", "", "nominee's email (informational)")
	phone := fs.String("phone", "", "nominee's phone (informational)")
	if err := c.parse(fs, args, 0); err != nil {
		return err
	}
	if err := required("vault", *vault); err != nil {
		return err
	}

	s, err := c.open(ctx, cfg, *as, true)
	if err != nil {
		return err
	}
	defer s.Close()

	inv, err := s.svc.IssueInvite(ctx, *vault, *name, model.Contact{Email: *email, Phone: *phone}, s.callerID())
	if err != nil {
		return err
	}
	return c.print(inv)
}

func (c *cli) issueTransfer(ctx context.Context, args []string) error {
	fs, cfg, err := c.flagSet("issue-transfer", "")
	if err != nil {
		return err
	}
	as := asFlag(fs)
	vault := vaultFlag(fs)
	name := fs.String("name", "", "candidate's name")
	email := fs.String("email", "", "candidate's email")
	phone := fs.String("phone", "", "candidate's phone")
	user := fs.String("user", "", "candidate's username, if registered")
	nominee := fs.String("nominee", "", "ID of the vault nominee to hand the vault to")
	reason := fs.String("reason", "", "reason for the transfer")
	if err := c.parse(fs, args, 0); err != nil {
		return err
	}
	if err := required("vault", *vault); err != nil {
		return err
	}

	s, err := c.open(ctx, cfg, *as, true)
	if err != nil {
		return err
	}
	defer s.Close()

	candidate := model.Candidate{Name: *name, Email: *email, Phone: *phone, NomineeID: *nominee}
	if *user != "" {
		u, err := lookupUser(ctx, s.db, *user)
		if err != nil {
			return err
		}
		candidate.UserID = u.ID
	}

	tr, err := s.svc.IssueTransfer(ctx, *vault, candidate, *reason, s.callerID())
	if err != nil {
		return err
	}
	return c.print(tr)
}

func (c *cli) redeemInvite(ctx context.Context, args []string) error {
	fs, cfg, err := c.flagSet("redeem-invite", "<token-or-link>")
	if err != nil {
		return err
	}
	as := asFlag(fs)
	if err := c.parse(fs, args, 1); err != nil {
		return err
	}

	// Invites are bearer tokens: --as only records who accepted.
	s, err := c.open(ctx, cfg, *as, false)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.svc.RedeemInvite(ctx, fs.Arg(0), s.callerID())
	if err != nil {
		return err
	}
	return c.print(res)
}

func (c *cli) redeemTransfer(ctx context.Context, args []string) error {
	fs, cfg, err := c.flagSet("redeem-transfer", "<token-or-link>")
	if err != nil {
		return err
	}
	as := asFlag(fs)
	if err := c.parse(fs, args, 1); err != nil {
		return err
	}

	s, err := c.open(ctx, cfg, *as, true)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.svc.RedeemTransfer(ctx, fs.Arg(0), s.callerID())
	if err != nil {
		return err
	}
	return c.print(res)
}

func (c *cli) listNominees(ctx context.Context, args []string) error {
	fs, cfg, err := c.flagSet("list-nominees", "")
	if err != nil {
		return err
	}
	as := asFlag(fs)
	vault := vaultFlag(fs)
	all := fs.Bool("all", false, "include revoked and inactive nominees")
	if err := c.parse(fs, args, 0); err != nil {
		return err
	}
	if err := required("vault", *vault); err != nil {
		return err
	}

	s, err := c.open(ctx, cfg, *as, true)
	if err != nil {
		return err
	}
	defer s.Close()

	nominees, err := s.svc.ListNominees(ctx, *vault, s.callerID(), *all)
	if err != nil {
		return err
	}
	if nominees == nil {
		nominees = []model.Nominee{}
	}
	return c.print(nominees)
}

func (c *cli) listTransfers(ctx context.Context, args []string) error {
	fs, cfg, err := c.flagSet("list-transfers", "")
	if err != nil {
		return err
	}
	as := asFlag(fs)
	vault := fs.String("vault", "", "vault ID (default: requests issued by --as)")
	if err := c.parse(fs, args, 0); err != nil {
		return err
	}

	s, err := c.open(ctx, cfg, *as, true)
	if err != nil {
		return err
	}
	defer s.Close()

	var transfers []model.TransferRequest
	if *vault != "" {
		transfers, err = s.svc.ListTransfers(ctx, *vault, s.callerID())
	} else {
		transfers, err = s.svc.ListTransfersByRequester(ctx, s.callerID())
	}
	if err != nil {
		return err
	}
	if transfers == nil {
		transfers = []model.TransferRequest{}
	}
	return c.print(transfers)
}

func (c *cli) activateNominee(ctx context.Context, args []string) error {
	return c.nomineeCommand(ctx, "activate-nominee", args, (*access.Service).ActivateNominee)
}

func (c *cli) revokeNominee(ctx context.Context, args []string) error {
	return c.nomineeCommand(ctx, "revoke-nominee", args, (*access.Service).RevokeNominee)
}

func (c *cli) nomineeCommand(ctx context.Context, name string, args []string,
	op func(*access.Service, context.Context, string, string) (*model.Nominee, error)) error {
	fs, cfg, err := c.flagSet(name, "<nominee-id>")
	if err != nil {
		return err
	}
	as := asFlag(fs)
	if err := c.parse(fs, args, 1); err != nil {
		return err
	}

	s, err := c.open(ctx, cfg, *as, true)
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := op(s.svc, ctx, fs.Arg(0), s.callerID())
	if err != nil {
		return err
	}
	return c.print(n)
}

func (c *cli) cancelTransfer(ctx context.Context, args []string) error {
	fs, cfg, err := c.flagSet("cancel-transfer", "<transfer-id>")
	if err != nil {
		return err
	}
	as := asFlag(fs)
	if err := c.parse(fs, args, 1); err != nil {
		return err
	}

	s, err := c.open(ctx, cfg, *as, true)
	if err != nil {
		return err
	}
	defer s.Close()

	tr, err := s.svc.CancelTransfer(ctx, fs.Arg(0), s.callerID())
	if err != nil {
		return err
	}
	return c.print(tr)
}
