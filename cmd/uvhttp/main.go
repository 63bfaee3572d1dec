/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Command uvhttp runs a demonstration server wiring the library end to
// end: routing with captures, CORS, rate limiting, a static mount, and
// the WebSocket echo upgrade.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	uvhttp "github.com/adam-ikari/uvhttp"
	"github.com/adam-ikari/uvhttp/filetransport"
	"github.com/adam-ikari/uvhttp/hdr"
	"github.com/adam-ikari/uvhttp/mux"
	"github.com/adam-ikari/uvhttp/ws"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr          string
		staticRoot    string
		staticPrefix  string
		listDirs      bool
		rateLimit     int
		rateWindow    time.Duration
		rateWhitelist []string
		corsOrigin    string
		verbose       bool
	)

	cmd := &cobra.Command{
		Use:     "uvhttp",
		Short:   "Embeddable HTTP/1.1 server demo",
		Version: uvhttp.Version + " (" + strings.Join(uvhttp.Features(), ", ") + ")",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.New()
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}

			router := mux.New()
			router.AddRoute(uvhttp.GET, "/", func(req *uvhttp.Request, res *uvhttp.Response) {
				res.SetStatus(uvhttp.StatusOK)
				res.SetHeader(hdr.ContentType, uvhttp.TextPlain)
				res.SetBodyString("Hello, World!")
				res.Send()
			})
			router.AddRoute(uvhttp.GET, "/api/users/:id", func(req *uvhttp.Request, res *uvhttp.Response) {
				res.SetStatus(uvhttp.StatusOK)
				res.SetHeader(hdr.ContentType, "application/json")
				res.SetBodyString(`{"user":"` + req.Param("id") + `"}`)
				res.Send()
			})
			router.AddRoute(uvhttp.GET, "/api/users/:id/posts/:post_id", func(req *uvhttp.Request, res *uvhttp.Response) {
				res.SetStatus(uvhttp.StatusOK)
				res.SetHeader(hdr.ContentType, "application/json")
				res.SetBodyString(`{"user":"` + req.Param("id") + `","post":"` + req.Param("post_id") + `"}`)
				res.Send()
			})

			srv := &uvhttp.Server{
				Addr:   addr,
				Router: router,
				Logger: log,
			}

			if corsOrigin != "" {
				cfg := uvhttp.DefaultCORSConfig()
				cfg.AllowOrigin = corsOrigin
				srv.Use(uvhttp.NewCORSMiddleware(cfg))
			}

			if rateLimit > 0 {
				if err := srv.SetRateLimit(uvhttp.RateLimitConfig{
					Requests:  rateLimit,
					Window:    rateWindow,
					Whitelist: rateWhitelist,
				}); err != nil {
					return err
				}
			}

			if staticRoot != "" {
				cfg := filetransport.DefaultConfig(staticRoot)
				cfg.EnableDirectoryListing = listDirs
				cfg.Logger = log
				if _, err := filetransport.Mount(router, staticPrefix, cfg); err != nil {
					return err
				}
			}

			echo := &ws.EchoServer{Logger: log}
			if err := srv.EnableWebSocket(echo.Receive, nil); err != nil {
				return err
			}

			log.WithField("addr", addr).Info("listening")
			return srv.ListenAndServe()
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&addr, "listen", "l", ":8080", "listen address")
	flags.StringVar(&staticRoot, "static-root", "", "serve files from this directory")
	flags.StringVar(&staticPrefix, "static-prefix", "/static", "URL prefix for the static mount")
	flags.BoolVar(&listDirs, "static-listing", false, "enable directory listings")
	flags.IntVar(&rateLimit, "rate-limit", 0, "max requests per window (0 disables)")
	flags.DurationVar(&rateWindow, "rate-window", time.Minute, "rate-limit window")
	flags.StringSliceVar(&rateWhitelist, "rate-whitelist", nil, "client addresses exempt from the rate limit")
	flags.StringVar(&corsOrigin, "cors-origin", "", "enable CORS for this origin (\"*\" for any)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	return cmd
}
