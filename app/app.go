package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warasin/roomsync/core"
	"github.com/warasin/roomsync/pkg/router"
	"github.com/warasin/roomsync/session"
)

type App struct {
	config  *Config
	db      *core.SQLiteDB
	context context.Context
	server  *http.Server
	logger  *slog.Logger
	router  *router.Router

	exit chan int

	roomStore    core.RoomStore
	messageStore core.MessageStore
	profileStore core.ProfileStore
	authStore    core.AuthStore
	realtime     core.Realtime

	resolver   *session.Resolver
	membership *session.Manager

	authHandler *AuthHandler
	roomHandler *RoomHandler
	wsHandler   *WSHandler

	cleanupFuncs []func(context.Context)

	wg sync.WaitGroup
}

func New(ctx context.Context, config *Config) *App {
	var err error
	app := &App{
		exit: make(chan int),
	}
	if ctx == nil {
		ctx, _ = signal.NotifyContext(
			context.Background(),
			syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	}
	app.context = ctx

	if config == nil {
		config, err = LoadConfig()
		if err != nil {
			failed(1, "failed to load config: %v\n", err)
		}
	}
	if err := config.Validate(); err != nil {
		failed(1, FormatValidationErrors(err))
	}
	app.config = config

	app.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				source, _ := a.Value.Any().(*slog.Source)
				if source != nil {
					source.File = filepath.Base(source.File)
				}
			}
			return a
		},
	}))

	sqliteOptions := &core.SQLiteDBOption{
		Mode:        "rwc",
		Cache:       "shared",
		JournalMode: "WAL",
	}
	app.db, err = core.NewSQLiteDB(app.config.SQLite.File, os.DirFS(app.config.SQLite.Migrations), sqliteOptions)
	if err != nil {
		failed(1, "failed to open database: %v\n", err)
	}
	app.AddCleanupFunc(func(ctx context.Context) {
		app.db.Close()
	})
	if err := app.db.Migrate(); err != nil {
		failed(1, "failed to migrate database: %v\n", err)
	}

	switch app.config.Realtime.Driver {
	case RealtimeNATS:
		nr, err := core.NewNATSRealtime(app.config.Realtime.NATSURL, core.WithNATSLogger(app.logger))
		if err != nil {
			failed(1, "failed to connect realtime: %v\n", err)
		}
		app.AddCleanupFunc(func(ctx context.Context) {
			nr.Close()
		})
		app.realtime = nr
	default:
		hub := core.NewHub(core.WithHubLogger(app.logger))
		app.AddCleanupFunc(func(ctx context.Context) {
			hub.Close()
		})
		app.realtime = hub
	}

	app.roomStore = core.NewSQLiteRoomStore(app.db.DB)
	app.messageStore = core.NewSQLiteMessageStore(app.db.DB, app.realtime)
	app.profileStore = core.NewSQLiteProfileStore(app.db.DB)
	app.authStore = core.NewJWTAuthStore(app.profileStore, []byte(app.config.Auth.Secret))

	app.resolver = session.NewResolver(app.roomStore)
	app.membership = session.NewManager(app.roomStore, app.logger)

	app.authHandler = NewAuthHandler(app.authStore, app.profileStore)
	app.roomHandler = NewRoomHandler(app.resolver, app.membership, app.roomStore, app.messageStore, app.profileStore)
	app.wsHandler = NewWSHandler(app.context, &app.wg, app.messageStore, app.profileStore, app.realtime, app.logger)

	authMiddleware := core.JWTMiddleware(app.authStore)

	app.router = router.New(router.WithLogger(app.logger))
	registerErrorMappers(app.router)

	app.router.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	app.router.Router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	app.router.Router.Handle("/metrics", promhttp.Handler())

	app.router.With(authMiddleware).Get("/ws", app.wsHandler.Serve)

	api := router.New(router.WithLogger(app.logger))
	registerErrorMappers(api)

	api.Route("/auth", func(r *router.Router) {
		r.Post("/signup", app.authHandler.SignupHandler)
		r.Post("/signin", app.authHandler.SigninHandler)
	})

	api.Route("/rooms", func(r *router.Router) {
		r.Use(authMiddleware)
		r.Get("/", app.roomHandler.ListRoomsHandler)
		r.Post("/", app.roomHandler.CreateRoomHandler)
		r.Post("/join", app.roomHandler.JoinRoomHandler)
		r.Delete("/{roomID}", app.roomHandler.DeleteRoomHandler)
		r.Post("/{roomID}/leave", app.roomHandler.LeaveRoomHandler)
		r.Get("/{roomID}/messages", app.roomHandler.RoomMessagesHandler)
		r.Post("/{roomID}/messages", app.roomHandler.SendMessageHandler)
		r.Get("/{roomID}/members/emails", app.roomHandler.RoomMemberEmailsHandler)
	})

	app.router.Router.Mount("/api", api.Router)

	app.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", app.config.Hostname, app.config.Port),
		Handler: app.router.Router,
		BaseContext: func(listener net.Listener) context.Context {
			return app.context
		},
	}

	return app
}

// registerErrorMappers maps the domain error taxonomy to API responses.
// ErrAlreadyMember is intentionally absent: handlers turn it into a 200
// with an informational flag rather than an error response.
func registerErrorMappers(r *router.Router) {
	r.RegisterErrorMapper(core.ErrRoomNotFound, func(err error) router.Error {
		return router.NewJsonError(http.StatusNotFound, err.Error())
	})
	r.RegisterErrorMapper(core.ErrIncorrectPassword, func(err error) router.Error {
		return router.NewJsonError(http.StatusForbidden, err.Error())
	})
	r.RegisterErrorMapper(core.ErrNotRoomCreator, func(err error) router.Error {
		return router.NewJsonError(http.StatusForbidden, err.Error())
	})
	r.RegisterErrorMapper(core.ErrNotAuthenticated, func(err error) router.Error {
		return router.NewJsonError(http.StatusUnauthorized, err.Error())
	})
	r.RegisterErrorMapper(core.ErrBadCredentials, func(err error) router.Error {
		return router.NewJsonError(http.StatusUnauthorized, err.Error())
	})
	r.RegisterErrorMapper(core.ErrConflictedAccount, func(err error) router.Error {
		return router.NewJsonError(http.StatusConflict, err.Error())
	})
	r.RegisterErrorMapper(core.ErrBackendUnavailable, func(err error) router.Error {
		return router.NewJsonError(http.StatusServiceUnavailable, err.Error())
	})
}

func (app *App) Start() {
	// listen for shutdown signal
	go func() {
		<-app.context.Done()
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		var wg sync.WaitGroup

		for _, f := range app.cleanupFuncs {
			wg.Add(1)
			go func(f func(context.Context)) {
				defer wg.Done()
				f(closeCtx)
			}(f)
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			app.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			app.logger.Info("app shutdown gracefully")
			app.exit <- 0
		case <-closeCtx.Done():
			app.logger.Info("app shutdown timed out")
			app.exit <- 1
		}
	}()

	app.AddCleanupFunc(func(ctx context.Context) {
		app.server.Shutdown(ctx)
	})
	app.logger.Info(fmt.Sprintf("app running on: %s:%d",
		app.config.Hostname, app.config.Port))

	err := app.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		failed(1, "server error: %v\n", err)
	}

	code := <-app.exit
	os.Exit(code)
}

// Handler exposes the assembled HTTP handler, mainly for tests.
func (app *App) Handler() http.Handler {
	return app.router.Router
}

func (app *App) AddCleanupFunc(f func(context.Context)) {
	app.cleanupFuncs = append(app.cleanupFuncs, f)
}

func failed(code int, s string, args ...interface{}) {
	fmt.Printf(s, args...)
	os.Exit(code)
}
