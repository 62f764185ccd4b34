package web

// This file describes the web server for this project.
//
// Note that modules called by this server should provide self-describing errors since
// these are sent directly to an internal server error func:
//
//	web.ServerError(w, r, err)
//
// This web server also sets out each endpoint handler as a HandlerFunc. This allows for
// the router to provide arguments to the handler, as discussed in Mat Ryer's post at
//
//	https://grafana.com/blog/how-i-write-http-services-in-go-after-13-years/
//
// Another use of this pattern is to initialise only the templates needed for a specific
// endpoint, allowing for endpoint-specific template error catching. In development mode
// the template filesystem is watched and the handlers are rebuilt on change, re-parsing
// the templates.
//
// Helper functions, such as `ServerError` and `clientError` are at the end of the file.

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"budgetdash/config"
	"budgetdash/db"
	"budgetdash/internal/cache"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
)

// pageLen is the number of items to show in a page listing.
const pageLen = 15

//go:embed static
var StaticEmbeddedFS embed.FS

//go:embed templates
var TemplatesEmbeddedFS embed.FS

// syncRunner triggers a full synchronization of the budget, implemented by
// sync.Syncer.
type syncRunner interface {
	SyncAll(ctx context.Context, budgetID string) error
}

// WebApp is the configuration object for the web server.
type WebApp struct {
	log        *slog.Logger
	cfg        *config.Config
	db         *db.DB
	syncer     syncRunner
	staticFS   fs.FS // the fs holding the static web resources.
	templateFS fs.FS // the fs holding the web templates.
	sessions   *scs.SessionManager
	server     *http.Server

	// Memoized dashboard queries, invalidated after a sync.
	spendCache   *cache.Cache[string, []db.CategoryTotal]
	dailyCache   *cache.Cache[string, []db.DateTotal]
	historyCache *cache.Cache[string, []db.BalanceHistoryRow]

	// router is guarded for swapping on development template reloads.
	mu     sync.RWMutex
	router http.Handler
}

// New initialises a WebApp.
func New(
	logger *slog.Logger,
	cfg *config.Config,
	database *db.DB,
	syncer syncRunner,
	staticFS fs.FS,
	templateFS fs.FS,
) (*WebApp, error) {

	if logger == nil {
		logger = slog.Default()
	}

	sessions := scs.New()
	sessions.Lifetime = 12 * time.Hour

	// Add settings for the http server.
	server := &http.Server{
		Addr:              cfg.Web.ListenAddress,
		ReadHeaderTimeout: time.Duration(30 * time.Second),
		WriteTimeout:      time.Duration(30 * time.Second),
		MaxHeaderBytes:    1 << 19, // 100k ish
	}

	webApp := &WebApp{
		log:          logger,
		cfg:          cfg,
		db:           database,
		syncer:       syncer,
		staticFS:     staticFS,
		templateFS:   templateFS,
		sessions:     sessions,
		server:       server,
		spendCache:   cache.New[string, []db.CategoryTotal](cfg.CacheTTL),
		dailyCache:   cache.New[string, []db.DateTotal](cfg.CacheTTL),
		historyCache: cache.New[string, []db.BalanceHistoryRow](cfg.CacheTTL),
	}
	webApp.router = webApp.routes()
	server.Handler = webApp
	return webApp, nil
}

// ServeHTTP serves the current router, which may be swapped by a
// development template reload.
func (web *WebApp) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	web.mu.RLock()
	router := web.router
	web.mu.RUnlock()
	router.ServeHTTP(w, r)
}

// StartServer starts a WebApp, blocking until the server fails or the
// context is cancelled. In development mode the on-disk template directory
// is watched and the handlers rebuilt on change.
func (web *WebApp) StartServer(ctx context.Context) error {

	g, ctx := errgroup.WithContext(ctx)

	if web.cfg.Web.DevelopmentMode && web.cfg.Web.TemplatesPath != "" {
		notifier, err := NewFileChangeNotifier([]DirFilesDescriptor{
			{Dir: web.cfg.Web.TemplatesPath, FileSuffixes: []string{"html"}},
		})
		if err != nil {
			return fmt.Errorf("template watcher error: %w", err)
		}
		g.Go(func() error {
			return notifier.Watch(ctx)
		})
		g.Go(func() error {
			for range notifier.Update() {
				web.log.Info("templates changed, rebuilding handlers")
				web.rebuildRoutes()
			}
			return nil
		})
	}

	g.Go(func() error {
		web.log.Info("starting server", "address", web.cfg.Web.ListenAddress)
		if err := web.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return web.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// rebuildRoutes re-parses the templates into a fresh router. A broken
// template mid-edit is logged rather than crashing the server.
func (web *WebApp) rebuildRoutes() {
	defer func() {
		if r := recover(); r != nil {
			web.log.Error("handler rebuild failed", "error", r)
		}
	}()
	router := web.routes()
	web.mu.Lock()
	web.router = router
	web.mu.Unlock()
}

// routes connects all of the endpoints and provides middleware.
func (web *WebApp) routes() http.Handler {

	r := mux.NewRouter()

	fileServer := http.FileServerFS(web.staticFS)
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", fileServer))

	r.Handle(
		"/",
		web.handleRoot(), // synonym for /home
	)
	r.Handle(
		"/home",
		web.handleHome(),
	)

	// Main listing pages.
	r.Handle(
		"/transactions",
		web.handleTransactions(),
	)
	r.Handle(
		"/accounts",
		web.handleAccounts(),
	)

	// Data refresh from the budget service.
	r.Handle(
		"/sync",
		web.handleSync(),
	).Methods("POST")

	handler := enforceCSRF(web.sessions.LoadAndSave(r))
	return handlers.LoggingHandler(os.Stdout, handler)
}

// handleRoot deals with http calls to "/" by redirecting to "/home".
func (web *WebApp) handleRoot() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/home", http.StatusFound)
	})
}

// handleHome serves the /home overview: top spending categories over the
// default date window with the current account balances.
func (web *WebApp) handleHome() http.Handler {

	name := "home.html"
	tpls := []string{"base.html", "home.html"}
	templates := template.Must(template.ParseFS(web.templateFS, tpls...))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()
		dateFrom, dateTo := defaultDateToAndFrom()

		key := dateFrom.Format("2006-01-02") + "/" + dateTo.Format("2006-01-02")
		categories, err := web.spendCache.GetOrFill(key, func() ([]db.CategoryTotal, error) {
			return web.db.SpendByCategory(ctx, dateFrom, dateTo, 10)
		})
		if err != nil {
			web.ServerError(w, r, err)
			return
		}

		accounts, err := web.db.AccountsGet(ctx, false)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			web.ServerError(w, r, err)
			return
		}

		data := struct {
			PageTitle    string
			CurrentPage  string
			Flash        string
			CategoryBars []viewBarPoint
			Accounts     []viewAccount
			DateFromStr  string
			DateToStr    string
		}{
			PageTitle:    "Overview",
			CurrentPage:  "home",
			Flash:        web.sessions.PopString(ctx, "flash"),
			CategoryBars: newViewCategoryBars(categories),
			Accounts:     newViewAccounts(accounts),
			DateFromStr:  dateFrom.Format(dateDisplayFormat),
			DateToStr:    dateTo.Format(dateDisplayFormat),
		}

		web.render(w, r, templates, name, data)
	})
}

// handleTransactions serves the /transactions list.
func (web *WebApp) handleTransactions() http.Handler {

	name := "transactions.html"
	tpls := []string{"base.html", "transactions.html"}
	templates := template.Must(template.ParseFS(web.templateFS, tpls...))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		form := NewSearchForm()
		if err := DecodeURLParams(r, form); err != nil {
			web.ServerError(w, r, err)
			return
		}

		// Create a validator and validate the form.
		validator := NewValidator()
		form.Validate(validator)

		// Initialise pagination for default state.
		pagination, _ := NewPagination(pageLen, 1, form.Page, r.URL.Query())

		// Account names for the filter dropdown.
		accounts, err := web.db.AccountsGet(ctx, true)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			web.ServerError(w, r, err)
			return
		}

		// Prepare data for the template, allowing passing of validation
		// errors back to the template if necessary.
		data := struct {
			PageTitle    string
			CurrentPage  string
			Flash        string
			Transactions []viewTransaction
			DailyBars    []viewBarPoint
			Accounts     []viewAccount
			Form         *SearchForm
			Validator    *Validator
			Pagination   *Pagination
		}{
			PageTitle:   "Transactions",
			CurrentPage: "transactions",
			Flash:       web.sessions.PopString(ctx, "flash"),
			Accounts:    newViewAccounts(accounts),
			Form:        form,
			Validator:   validator,
			Pagination:  pagination,
		}

		// Render template with errors and return if the form is invalid.
		if !validator.Valid() {
			web.render(w, r, templates, name, data)
			return
		}

		transactions, err := web.db.TransactionsGet(ctx, db.TransactionsFilter{
			AccountID: form.AccountID,
			DateFrom:  form.DateFrom,
			DateTo:    form.DateTo,
			Search:    form.SearchString,
			Limit:     pageLen,
			Offset:    form.Offset(),
		})
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			web.ServerError(w, r, err)
			return
		}

		// Set valid data from successful database call.
		data.Transactions = newViewTransactions(transactions)

		// The daily spending series for the filtered window.
		key := form.AccountID + "/" + form.DateFrom.Format("2006-01-02") + "/" + form.DateTo.Format("2006-01-02")
		daily, err := web.dailyCache.GetOrFill(key, func() ([]db.DateTotal, error) {
			return web.db.SpendByDate(ctx, form.AccountID, form.DateFrom, form.DateTo)
		})
		if err != nil {
			web.ServerError(w, r, err)
			return
		}
		data.DailyBars = newViewDateBars(daily)

		// Set pagination for the number of matching transactions. Each
		// transaction has the search query row count as a field.
		var recordsNo int
		if len(data.Transactions) == 0 {
			recordsNo = 1
		} else {
			recordsNo = data.Transactions[0].RowCount
		}
		data.Pagination, err = NewPagination(pageLen, recordsNo, form.Page, r.URL.Query())
		if err != nil {
			web.ServerError(w, r, err)
			return
		}

		web.render(w, r, templates, name, data)
	})
}

// handleAccounts serves the /accounts page with balance history.
func (web *WebApp) handleAccounts() http.Handler {

	name := "accounts.html"
	tpls := []string{"base.html", "accounts.html"}
	templates := template.Must(template.ParseFS(web.templateFS, tpls...))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		accounts, err := web.db.AccountsGet(ctx, true)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			web.ServerError(w, r, err)
			return
		}

		history, err := web.historyCache.GetOrFill("all", func() ([]db.BalanceHistoryRow, error) {
			return web.db.BalanceHistoryGet(ctx, "", time.Time{}, time.Time{})
		})
		if err != nil {
			web.ServerError(w, r, err)
			return
		}

		data := struct {
			PageTitle   string
			CurrentPage string
			Flash       string
			Accounts    []viewAccount
			History     []viewBalancePoint
		}{
			PageTitle:   "Accounts",
			CurrentPage: "accounts",
			Flash:       web.sessions.PopString(ctx, "flash"),
			Accounts:    newViewAccounts(accounts),
			History:     newViewBalancePoints(history),
		}

		web.render(w, r, templates, name, data)
	})
}

// handleSync triggers a full synchronization from the budget service,
// reporting the outcome via a session flash message on the overview page.
func (web *WebApp) handleSync() http.Handler {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		err := web.syncer.SyncAll(ctx, web.cfg.YNAB.BudgetID)
		if err != nil {
			web.log.Error("sync failed", "error", err)
			web.sessions.Put(ctx, "flash", fmt.Sprintf("Sync completed with errors: %v", err))
		} else {
			web.sessions.Put(ctx, "flash", "Sync completed.")
		}

		// New data invalidates the memoized dashboard queries.
		web.spendCache.Invalidate()
		web.dailyCache.Invalidate()
		web.historyCache.Invalidate()

		http.Redirect(w, r, "/home", http.StatusSeeOther)
	})
}

/* -------------------------------------------------------------------------- */
// Helpers
/* -------------------------------------------------------------------------- */

// render renders the specified template.
func (web *WebApp) render(w http.ResponseWriter, r *http.Request, template *template.Template, filename string, data any) {
	buf := new(bytes.Buffer)
	err := template.ExecuteTemplate(buf, filename, data)
	if err != nil {
		web.log.Error("template rendering error", "template", filename, "error", err)
		web.ServerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// ServerError logs and returns an internal server error. The error should
// contain the information needed for logging.
func (web *WebApp) ServerError(w http.ResponseWriter, r *http.Request, errs ...error) {
	err := errors.Join(errs...)
	web.log.Error(err.Error(), "method", r.Method, "uri", r.URL.RequestURI())
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// clientError returns a client error.
func (web *WebApp) clientError(w http.ResponseWriter, message string, status int) {
	if message == "" {
		message = http.StatusText(status)
	}
	http.Error(w, message, status)
}

// notFound raises a 404 clientError.
func (web *WebApp) notFound(w http.ResponseWriter, r *http.Request, message string) {
	web.clientError(w, message, http.StatusNotFound)
}
