package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ryanm101/gamemeta/internal/adapters/barcode"
	"github.com/ryanm101/gamemeta/internal/adapters/igdb"
	"github.com/ryanm101/gamemeta/internal/adapters/wiki"
	"github.com/ryanm101/gamemeta/internal/download"
	"github.com/ryanm101/gamemeta/internal/logging"
	"github.com/ryanm101/gamemeta/internal/metadata"
	"github.com/ryanm101/gamemeta/internal/platform"
	"github.com/ryanm101/gamemeta/internal/store"
)

func openStore(ctx context.Context) (*store.Store, error) {
	return store.Open(ctx, cfg.GetDBPath())
}

func newHTTPClient() (*download.Client, error) {
	return download.New(download.Options{
		Timeout:           cfg.GetTimeout(),
		UserAgents:        cfg.HTTP.UserAgents,
		AppName:           "gamemeta",
		AppVersion:        version,
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
		Burst:             cfg.HTTP.Burst,
		CloudflareBypass:  cfg.HTTP.CloudflareBypass,
	})
}

func loadPlatforms() (*platform.Resolver, error) {
	return platform.Load(cfg.PlatformsFile)
}

// sourceSettings maps the config section of a source to its adapter
// settings.
func sourceSettings(name string) map[string]string {
	switch strings.ToLower(name) {
	case barcode.Name:
		return map[string]string{"base_url": cfg.Sources.Barcode.BaseURL}
	case wiki.Name:
		return map[string]string{
			"api_url":            cfg.Sources.Wiki.APIURL,
			"platform_delimiter": cfg.Sources.Wiki.PlatformDelimiter,
		}
	case igdb.Name:
		return map[string]string{
			"client_id":     cfg.Sources.IGDB.ClientID,
			"client_secret": cfg.Sources.IGDB.ClientSecret,
		}
	}
	return nil
}

// openSource builds the named adapter with the shared downloader and
// platform table.
func openSource(name string) (metadata.Adapter, error) {
	httpClient, err := newHTTPClient()
	if err != nil {
		return nil, err
	}
	resolver, err := loadPlatforms()
	if err != nil {
		return nil, err
	}
	return metadata.Open(name, metadata.Deps{
		HTTP:       httpClient,
		Platforms:  resolver,
		Settings:   sourceSettings(name),
		MaxPages:   cfg.GetMaxPages(),
		MaxResults: cfg.GetMaxResults(),
	})
}

// serveMetrics exposes /metrics on addr until the returned stop function is
// called.
func serveMetrics(addr string) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("metrics server error", "error", err)
		}
	}()
	logging.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
