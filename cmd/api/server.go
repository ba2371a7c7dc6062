package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"bizconsole/internal/interfaces/scheduler"
	"bizconsole/internal/shared/config"
	"bizconsole/internal/shared/middleware"
)

// servers is the console API listener plus the optional plain-HTTP redirector
// that runs next to it when this process terminates TLS.
type servers struct {
	api      *http.Server
	redirect *http.Server // nil unless TLS_ENABLED and TLS_REDIRECT_HTTP

	certPath string
	keyPath  string
}

func newServers(handler http.Handler, cfg *config.Config) *servers {
	s := &servers{
		api: &http.Server{
			Addr:        net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:     handler,
			ReadTimeout: 15 * time.Second,
			// A commit holds the request open until the backend answers.
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
	if cfg.TLS.Enabled {
		s.certPath = cfg.TLS.CertPath
		s.keyPath = cfg.TLS.KeyPath
		if cfg.TLS.RedirectHTTP {
			s.redirect = &http.Server{
				Addr:         ":80",
				Handler:      redirectToHTTPS(cfg.Server.AllowedHosts),
				ReadTimeout:  5 * time.Second,
				WriteTimeout: 5 * time.Second,
			}
		}
	}
	return s
}

// start launches the listeners in the background. A listener that cannot bind
// ends the process; the redirector only logs.
func (s *servers) start() {
	if s.redirect != nil {
		go func() {
			log.Printf("Redirecting plain HTTP on %s to HTTPS", s.redirect.Addr)
			if err := s.redirect.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Redirect listener error: %v", err)
			}
		}()
	}

	go func() {
		var err error
		if s.certPath != "" {
			log.Printf("Console API listening on https://%s", s.api.Addr)
			err = s.api.ListenAndServeTLS(s.certPath, s.keyPath)
		} else {
			log.Printf("Console API listening on http://%s", s.api.Addr)
			err = s.api.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Console API listener error: %v", err)
		}
	}()
}

// shutdown lets in-flight commits finish before the automatch sweep is drained,
// so a session commit and a sweep never race on the same transaction at exit.
func (s *servers) shutdown(sched *scheduler.Scheduler, timeout time.Duration) {
	log.Println("Shutting down console API...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if s.redirect != nil {
		if err := s.redirect.Shutdown(ctx); err != nil {
			log.Printf("Error closing redirect listener: %v", err)
		}
	}
	if err := s.api.Shutdown(ctx); err != nil {
		log.Printf("Error closing console API listener: %v", err)
	}

	if sched != nil {
		sched.Shutdown(timeout)
	}
	log.Println("Console API stopped")
}

// redirectToHTTPS answers every plain request with a permanent redirect to the same
// path over HTTPS. Unknown hosts are refused so the redirector cannot be used to
// bounce clients elsewhere.
func redirectToHTTPS(allowedHosts []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Header.Get("X-Forwarded-Host")
		if host == "" {
			host = r.Host
		}
		if !middleware.IsHostAllowed(host, allowedHosts) {
			http.Error(w, "Invalid host", http.StatusBadRequest)
			return
		}
		http.Redirect(w, r, "https://"+httpsHost(host)+r.URL.RequestURI(), http.StatusMovedPermanently)
	})
}

// httpsHost drops the plain-HTTP port and keeps IPv6 literals bracketed.
func httpsHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		return "[" + host + "]"
	}
	return host
}
