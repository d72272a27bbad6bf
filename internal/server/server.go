// Package server assembles the HTTP application: the gin engine with its
// middleware, one route per contract entry, the Swagger UI, and the
// process lifecycle around it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"

	"repaytrack/internal/auth"
	"repaytrack/internal/config"
	"repaytrack/internal/contract"
	"repaytrack/internal/handlers"
	"repaytrack/internal/logger"
	"repaytrack/internal/middleware"
	"repaytrack/internal/storage"
	"repaytrack/internal/validator"
)

const shutdownTimeout = 10 * time.Second

// Deps are the collaborators the router is built from.
type Deps struct {
	Config   *config.Config
	Store    storage.Store
	Provider auth.Provider
}

// New builds the gin engine. Every route in contract.Routes must have a
// handler; a missing one is reported as an error.
func New(deps Deps) (*gin.Engine, error) {
	validator.Register()
	contract.RegisterDocs()

	corsOrigin := "*"
	if deps.Config != nil {
		corsOrigin = deps.Config.CORSOrigin
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.CORS(corsOrigin))
	router.Use(middleware.ErrorHandler())

	budgetHandler := handlers.NewBudgetHandler(deps.Store)
	authHandler := handlers.NewAuthHandler(deps.Provider, deps.Store)

	table := map[string]gin.HandlerFunc{contract.Health: handlers.Health}
	for name, h := range budgetHandler.Handlers() {
		table[name] = h
	}
	for name, h := range authHandler.Handlers() {
		table[name] = h
	}

	requireAuth := middleware.RequireAuth(deps.Provider)
	for _, route := range contract.Routes {
		h, ok := table[route.Name]
		if !ok {
			return nil, fmt.Errorf("no handler for route %s (%s %s)", route.Name, route.Method, route.Path)
		}
		if route.Public {
			router.Handle(route.Method, route.Path, h)
		} else {
			router.Handle(route.Method, route.Path, requireAuth, h)
		}
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return router, nil
}

// Run serves handler on addr until ctx is cancelled or a background task
// fails, then shuts the server down gracefully. Background tasks receive a
// context that is cancelled on shutdown.
func Run(ctx context.Context, addr string, handler http.Handler, background ...func(context.Context) error) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return serve(ctx, ln, handler, background...)
}

func serve(ctx context.Context, ln net.Listener, handler http.Handler, background ...func(context.Context) error) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Get().Infof("Listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Get().Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	for _, task := range background {
		task := task
		g.Go(func() error { return task(gctx) })
	}

	return g.Wait()
}
