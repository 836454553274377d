// Package cli implements authctl, a terminal client for the auth API.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/Tokengate/internal/client"
	domainauth "github.com/NordCoder/Tokengate/internal/domain/auth"
	"github.com/NordCoder/Tokengate/internal/domain/user"
	"github.com/NordCoder/Tokengate/internal/repository/kafka"
	"github.com/NordCoder/Tokengate/internal/services/auth-api/auth"
)

const usage = `usage: authctl [-addr URL] [-lang TAG] [-session PATH] <command> [flags]

commands:
  register -username U -email E [-role ID]   create an account (password is prompted)
  login -username U                         sign in and store the session
  refresh                                   rotate the stored refresh token
  logout                                    revoke the stored refresh token
  me                                        show the signed-in user
  events [-brokers B] [-topic T] [-group G] print auth events from Kafka
`

var ErrUsage = errors.New("invalid usage")

type eventSource interface {
	Consume(ctx context.Context, h kafka.Handler) error
	Close() error
}

type App struct {
	api         *client.Client
	sessionPath string
	in          *bufio.Reader
	out         io.Writer
	log         *zap.Logger

	newEventSource func(ctx context.Context, brokers []string, topic, group string) eventSource
}

type Options struct {
	Addr        string
	Lang        string
	SessionPath string
	In          io.Reader
	Out         io.Writer
	Logger      *zap.Logger
}

func New(o Options) *App {
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{
		api:         client.New(o.Addr, o.Lang, nil),
		sessionPath: o.SessionPath,
		in:          bufio.NewReader(o.In),
		out:         o.Out,
		log:         log,
	}
	a.newEventSource = func(ctx context.Context, brokers []string, topic, group string) eventSource {
		return kafka.BootstrapConsumer(ctx, &kafka.ConsumerConfig{
			Brokers: brokers,
			GroupID: group,
			Topic:   topic,
			Logger:  log,
		}, log)
	}
	return a
}

func Usage() string { return usage }

// Run executes one command. args excludes the program name and global flags.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "register":
		return a.register(ctx, rest)
	case "login":
		return a.login(ctx, rest)
	case "refresh":
		return a.refresh(ctx)
	case "logout":
		return a.logout(ctx)
	case "me":
		return a.me(ctx)
	case "events":
		return a.events(ctx, rest)
	case "help":
		_, err := fmt.Fprint(a.out, usage)
		return err
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

func (a *App) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(a.out)
	username := fs.String("username", "", "user name")
	email := fs.String("email", "", "email address")
	role := fs.Int64("role", user.RoleUserID, "role id")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	var err error
	if *username == "" {
		if *username, err = getSimpleText(a.in, "Username", a.out); err != nil {
			return err
		}
	}
	if *email == "" {
		if *email, err = getSimpleText(a.in, "Email", a.out); err != nil {
			return err
		}
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}

	msg, err := a.api.Register(ctx, auth.RegisterRequest{
		Username: *username,
		Email:    *email,
		Password: password,
		RoleID:   *role,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, msg)
	return err
}

func (a *App) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.out)
	username := fs.String("username", "", "user name")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	var err error
	if *username == "" {
		if *username, err = getSimpleText(a.in, "Username", a.out); err != nil {
			return err
		}
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}

	res, err := a.api.Login(ctx, *username, password)
	if err != nil {
		return err
	}
	if err := saveSession(a.sessionPath, &session{
		Username:     res.Username,
		AccessToken:  res.Token,
		ExpiresAt:    res.ExpiresAt,
		RefreshToken: res.RefreshToken,
	}); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	_, err = fmt.Fprintf(a.out, "%s\nrole: %s, access token valid until %s\n",
		res.Message, res.Role, res.ExpiresAt.Local().Format(time.RFC1123))
	return err
}

func (a *App) refresh(ctx context.Context) error {
	s, err := loadSession(a.sessionPath)
	if err != nil {
		return err
	}
	res, err := a.api.Refresh(ctx, s.RefreshToken)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			// the stored token is dead either way
			_ = dropSession(a.sessionPath)
		}
		return err
	}
	s.AccessToken, s.ExpiresAt, s.RefreshToken = res.Token, res.ExpiresAt, res.RefreshToken
	if err := saveSession(a.sessionPath, s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	_, err = fmt.Fprintf(a.out, "refreshed, access token valid until %s\n", res.ExpiresAt.Local().Format(time.RFC1123))
	return err
}

func (a *App) logout(ctx context.Context) error {
	s, err := loadSession(a.sessionPath)
	if err != nil {
		return err
	}
	if err := a.api.Logout(ctx, s.RefreshToken); err != nil {
		return err
	}
	if err := dropSession(a.sessionPath); err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, "logged out")
	return err
}

func (a *App) me(ctx context.Context) error {
	s, err := loadSession(a.sessionPath)
	if err != nil {
		return err
	}
	m, err := a.api.Me(ctx, s.AccessToken)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.out, "id: %d\nusername: %s\nemail: %s\nrole: %s\n", m.ID, m.Username, m.Email, m.Role)
	return err
}

func (a *App) events(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	fs.SetOutput(a.out)
	brokers := fs.String("brokers", "localhost:9094", "comma separated broker list")
	topic := fs.String("topic", kafka.DefaultAuthEventsTopic, "topic")
	group := fs.String("group", "authctl", "consumer group")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	src := a.newEventSource(ctx, strings.Split(*brokers, ","), *topic, *group)
	defer func() { _ = src.Close() }()

	err := src.Consume(ctx, kafka.JSONHandler(func(_ context.Context, _ []byte, ev domainauth.Event) error {
		_, err := fmt.Fprintf(a.out, "%s %-22s user=%d %s\n",
			ev.At.Local().Format(time.RFC3339), ev.Kind, ev.UserID, ev.Username)
		return err
	}))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
