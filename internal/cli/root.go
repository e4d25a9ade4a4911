package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/alexanderramin/examdesk/internal/api"
	"github.com/alexanderramin/examdesk/internal/cascade"
	"github.com/alexanderramin/examdesk/internal/config"
	"github.com/alexanderramin/examdesk/internal/logging"
	"github.com/alexanderramin/examdesk/internal/repository"
	"github.com/alexanderramin/examdesk/internal/session"
	"github.com/alexanderramin/examdesk/internal/transport"
	"github.com/spf13/cobra"
)

const loginHint = "run `examdesk login` to sign in again"

// App holds everything the commands talk to.
type App struct {
	Auth      *api.AuthService
	API       *api.Client
	Transport *transport.AuthTransport
	Store     session.Store
	Drafts    repository.DraftRepo
	// Options feeds the exam wizard's dropdowns.
	Options cascade.Loaders
	Logger  *slog.Logger

	AllowSkip     bool
	IsInteractive func() bool
	Now           func() time.Time
	// Stderr receives the session-expired hint. Defaults to os.Stderr.
	Stderr io.Writer

	// Connect fills the fields above from the loaded config before a command
	// runs. Tests leave it nil and wire the App directly.
	Connect func(cfg config.Config) error
}

// Wire builds the platform clients for baseURL on top of store. Login and
// refresh use a client without the auth transport.
func (a *App) Wire(baseURL string, timeout time.Duration, store session.Store, drafts repository.DraftRepo) {
	logger := a.logger()

	public := api.New(baseURL, &http.Client{Timeout: timeout})
	public.Logger = logger

	a.Auth = api.NewAuthService(public, nil, store)
	a.Transport = transport.New(nil, store, a.Auth)
	a.Transport.Observer = transport.NewLogObserver(logger)
	a.Transport.OnSessionExpired = func() {
		fmt.Fprintf(a.stderr(), "Session expired, %s.\n", loginHint)
	}

	a.API = api.New(baseURL, &http.Client{Transport: a.Transport, Timeout: timeout})
	a.API.Logger = logger
	a.Auth.Authed = a.API

	a.Store = store
	a.Drafts = drafts
	a.Options = cascade.FromAPI(a.API)
}

func (a *App) logger() *slog.Logger {
	if a.Logger == nil {
		a.Logger = logging.Discard()
	}
	return a.Logger
}

func (a *App) stderr() io.Writer {
	if a.Stderr != nil {
		return a.Stderr
	}
	return os.Stderr
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) interactive() bool {
	return a.IsInteractive != nil && a.IsInteractive()
}

// NewRootCmd creates the top-level "examdesk" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	v := config.New()

	root := &cobra.Command{
		Use:           "examdesk",
		Short:         "Operator console for the exam platform",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if app.Connect == nil {
				return nil
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			app.AllowSkip = cfg.AllowSkip
			return app.Connect(cfg)
		},
	}
	cobra.CheckErr(config.BindFlags(v, root.PersistentFlags()))

	root.AddCommand(
		newLoginCmd(app),
		newLogoutCmd(app),
		newWhoamiCmd(app),
		newChangePasswordCmd(app),
		newFacultyCmd(app),
		newStudentCmd(app),
		newBatchCmd(app),
		newCourseCmd(app),
		newBranchCmd(app),
		newSectionCmd(app),
		newExamCmd(app),
	)

	return root
}

// Friendly turns a command error into the line printed to the user.
func Friendly(err error) string {
	switch {
	case errors.Is(err, transport.ErrSessionExpired):
		return "session expired, " + loginHint
	case errors.Is(err, session.ErrNoSession):
		return "not logged in, run `examdesk login` first"
	}
	return api.Message(err)
}
