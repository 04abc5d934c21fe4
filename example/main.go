// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package main

import (
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/cilium/hive"
	"github.com/cilium/hive/cell"

	"github.com/cilium/tinymap"
)

// This is a small session store built on the tinymap containers. Sessions
// live in a hybrid Map that holds the common case inline and moves to the
// heap when an instance grows past it, and each session carries a
// fixed-capacity ArraySet of tags that rejects additions beyond the
// configured limit.
//
// To run the application:
//
//   $ go run .
//   (ctrl-c to stop)
//
// To create a session with tags:
//
//   $ curl -XPOST 'http://localhost:8080/sessions/s1?user=alice&tag=web&tag=beta'
//
// Creating it with more than --max-tags distinct tags is rejected:
//
//   $ curl -XPOST 'http://localhost:8080/sessions/s2?user=bob&tag=a&tag=b&tag=c&tag=d&tag=e&tag=f&tag=g&tag=h&tag=i'
//
// To extend, inspect and delete sessions:
//
//   $ curl -XPUT http://localhost:8080/sessions/s1
//   $ curl http://localhost:8080/sessions
//   $ curl http://localhost:8080/users
//   $ curl http://localhost:8080/export
//   $ curl -XDELETE http://localhost:8080/sessions/s1
//
// The store's counters, including whether the session map has moved to
// its heap representation, are served on /expvar:
//
//   $ curl -s http://localhost:8080/expvar | jq .sessions
//
// Expired sessions are swept out periodically (--session-ttl,
// --expire-interval).

func main() {
	cmd := cobra.Command{
		Use: "sessiond",
		Run: func(_ *cobra.Command, args []string) {
			if err := Hive.Run(slog.Default()); err != nil {
				fmt.Fprintf(os.Stderr, "Run: %s\n", err)
			}
		},
	}

	Hive.RegisterFlags(cmd.Flags())

	// Add the "hive" command for inspecting the object graph:
	//
	//  $ go run . hive
	//
	cmd.AddCommand(Hive.Command())

	cmd.Execute()
}

var Hive = hive.New(
	cell.SimpleHealthCell,

	cell.Module(
		"sessiond",
		"Bounded session store",

		cell.Config(Config{}),

		cell.Provide(NewSessionStore),

		cell.Invoke(registerHTTPServer),
		cell.Invoke(registerExpirySweep),
	),
)

func registerHTTPServer(
	lc cell.Lifecycle,
	log *slog.Logger,
	cfg Config,
	store *SessionStore) {

	limiter := rate.NewLimiter(rate.Limit(cfg.SessionsPerSec), 10)

	mux := http.NewServeMux()

	// To dump the metrics:
	// curl -s http://localhost:8080/expvar
	mux.Handle("/expvar", expvar.Handler())

	// Aligned-table dumps of the store:
	// curl http://localhost:8080/sessions
	// curl http://localhost:8080/users
	mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		store.DumpSessions(w)
	})
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		store.DumpUsers(w)
	})

	// The whole store in its wire form, ascending by session ID:
	// curl http://localhost:8080/export
	mux.HandleFunc("/export", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		bs, err := store.Snapshot().MarshalJSON()
		if err != nil {
			panic(err)
		}
		w.Write(bs)
	})

	// For creating, extending and deleting sessions:
	// curl -XPOST 'http://localhost:8080/sessions/foo?user=alice&tag=web'
	// curl -XPUT http://localhost:8080/sessions/foo
	// curl -XDELETE http://localhost:8080/sessions/foo
	mux.HandleFunc("/sessions/", func(w http.ResponseWriter, r *http.Request) {
		id, ok := strings.CutPrefix(r.URL.Path, "/sessions/")
		if !ok || id == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		switch r.Method {
		case "POST":
			if !limiter.Allow() {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			user := r.URL.Query().Get("user")
			if user == "" {
				http.Error(w, "missing 'user' parameter", http.StatusBadRequest)
				return
			}
			sess, err := store.Create(id, user, r.URL.Query()["tag"])
			if err != nil {
				status := http.StatusBadRequest
				if errors.Is(err, tinymap.ErrCapacityExceeded) {
					status = http.StatusInsufficientStorage
				}
				http.Error(w, err.Error(), status)
				return
			}
			log.Info("Created session", "id", id, "user", user, "expires", sess.Expires)
			w.WriteHeader(http.StatusOK)

		case "PUT":
			if !store.Touch(id) {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			log.Info("Extended session", "id", id)
			w.WriteHeader(http.StatusOK)

		case "DELETE":
			if !store.Delete(id) {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			log.Info("Deleted session", "id", id)
			w.WriteHeader(http.StatusOK)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	server := http.Server{
		Addr:    cfg.ListenAddress,
		Handler: mux,
	}

	lc.Append(cell.Hook{
		OnStart: func(cell.HookContext) error {
			log.Info("Serving API", "address", server.Addr)
			go server.ListenAndServe()
			return nil
		},
		OnStop: func(ctx cell.HookContext) error {
			return server.Shutdown(ctx)
		},
	})
}

func registerExpirySweep(
	lc cell.Lifecycle,
	log *slog.Logger,
	cfg Config,
	store *SessionStore) {

	var (
		wg   sync.WaitGroup
		stop = make(chan struct{})
	)
	lc.Append(cell.Hook{
		OnStart: func(cell.HookContext) error {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ticker := time.NewTicker(cfg.ExpireInterval)
				defer ticker.Stop()
				for {
					select {
					case <-stop:
						return
					case <-ticker.C:
						if n := store.ExpireBefore(time.Now()); n > 0 {
							log.Info("Expired sessions", "count", n)
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(cell.HookContext) error {
			close(stop)
			wg.Wait()
			return nil
		},
	})
}
