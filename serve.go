package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/group"
	"gorm.io/gorm"

	"github.com/wren-social/wren/activitypub"
	"github.com/wren-social/wren/internal/cache"
	"github.com/wren-social/wren/internal/httpx"
	"github.com/wren-social/wren/models"
	"github.com/wren-social/wren/wellknown"
	"github.com/wren-social/wren/workers"
)

type ServeCmd struct {
	Addr string `help:"address to listen" default:"127.0.0.1:9999"`
}

func (s *ServeCmd) Run(ctx *Context) error {
	db, err := gorm.Open(ctx.Dialector, &ctx.Config)
	if err != nil {
		return err
	}
	if err := configureDB(db); err != nil {
		return err
	}

	admin, err := models.NewInstances(db).AdminAccount()
	if err != nil {
		return fmt.Errorf("serve: no instance with an admin account, run create-instance first: %w", err)
	}

	// resolved actors and negative webfinger results, shared between
	// requests
	shared := cache.New()
	env := func(r *http.Request) *activitypub.Env {
		return &activitypub.Env{
			DB:    db.WithContext(r.Context()),
			Cache: shared,
		}
	}

	c := chi.NewRouter()
	c.Use(middleware.RequestID)
	c.Use(middleware.RealIP)
	c.Use(middleware.Logger)
	c.Use(middleware.Recoverer)

	c.Route("/", func(r chi.Router) {
		r.Post("/inbox", httpx.HandlerFunc(env, activitypub.InboxCreate))

		r.Route("/users", func(r chi.Router) {
			r.Get("/{username}", httpx.HandlerFunc(env, activitypub.UsersShow))
			r.Post("/{username}/inbox", httpx.HandlerFunc(env, activitypub.InboxCreate))
			r.Get("/{username}/followers", httpx.HandlerFunc(env, activitypub.Followers))
			r.Get("/{username}/following", httpx.HandlerFunc(env, activitypub.Following))
			r.Get("/{username}/outbox", httpx.HandlerFunc(env, activitypub.Outbox))
		})

		r.Route("/.well-known", func(r chi.Router) {
			r.Get("/webfinger", httpx.HandlerFunc(env, wellknown.WebfingerShow))
			r.Get("/host-meta", wellknown.HostMetaIndex)
			r.Get("/nodeinfo", httpx.HandlerFunc(env, wellknown.NodeInfoIndex))
		})

		r.Get("/nodeinfo/{version}", httpx.HandlerFunc(env, wellknown.NodeInfoShow))

		r.Get("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			// no robots, especially not you Bingbot!
			io.WriteString(w, "User-agent: *\nDisallow: /")
		})
	})

	if ctx.Debug {
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			route = strings.Replace(route, "/*/", "/", -1)
			fmt.Printf("%s %s\n", method, route)
			return nil
		}
		if err := chi.Walk(c, walkFunc); err != nil {
			fmt.Printf("Logging err: %s\n", err.Error())
		}
	}

	svr := &http.Server{
		Addr:         s.Addr,
		Handler:      c,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	g := group.New(context.Background())
	g.Add(workers.NewActorRefreshProcessor(db, admin))
	g.Add(func(gctx context.Context) error {
		go func() {
			<-gctx.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			svr.Shutdown(ctx)
		}()
		if err := svr.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	return g.Wait()
}
