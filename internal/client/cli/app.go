package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/Satyam1603/GoTogether/internal/client/client"
	"github.com/Satyam1603/GoTogether/internal/client/config"
	"github.com/Satyam1603/GoTogether/internal/client/session"
	"github.com/Satyam1603/GoTogether/internal/filex"
	"github.com/Satyam1603/GoTogether/internal/logging"
)

type App struct {
	config  *config.Config
	db      *sql.DB
	api     client.Client
	session *session.Manager
	logger  logging.Logger
	http    *http.Client
	reader  *bufio.Reader
	out     io.Writer
}

// NewApp opens the local database, restores the persisted session and
// builds the API client.
func NewApp(ctx context.Context, c *config.Config, in io.Reader, out io.Writer) (*App, error) {
	logger := logging.NewTextLogger(os.Stderr, c.LogLevel)

	if err := filex.EnsureParentDir(c.DatabasePath); err != nil {
		return nil, err
	}
	db, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	api := client.NewHTTPClient(c.ServerURL, c.RequestTimeout)
	mgr := session.NewManager(api, session.NewSQLiteStore(db), logger)
	if err := mgr.Restore(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	app := &App{
		config:  c,
		db:      db,
		api:     api,
		session: mgr,
		logger:  logger,
		http:    &http.Client{Timeout: c.RequestTimeout},
		reader:  bufio.NewReader(in),
		out:     out,
	}
	mgr.OnChange(app.onSessionChange)
	return app, nil
}

func (a *App) onSessionChange(s session.State) {
	a.logger.Debug(context.Background(), "session state changed", "state", s.String())
}

func (a *App) Close() error {
	return a.db.Close()
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// userID returns the id of the logged in user.
func (a *App) userID() (string, error) {
	u := a.session.User()
	if u == nil {
		return "", client.ErrUnauthenticated
	}
	return u.ID, nil
}
