package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"repairshop-api/internal/factory"
	"repairshop-api/internal/handler"
	"repairshop-api/internal/util"
)

func main() {
	// Initialize factory (which loads config and initializes all clients)
	f, err := factory.NewFactory()
	if err != nil {
		util.Fatal("Failed to initialize factory", util.ErrorField(err))
	}
	defer f.Close()

	cfg := f.Config()

	router := setupRouter(f)

	server := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Janitor: sweep expired sessions and flush buffered audit events.
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	go runJanitor(janitorCtx, f, cfg.Auth.JanitorInterval)

	go func() {
		var err error
		if cfg.Server.EnableTLS && cfg.Server.CertFile != "" && cfg.Server.KeyFile != "" {
			err = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			if cfg.Server.EnableTLS {
				util.Warn("TLS enabled but no certificate configured - serving plain HTTP")
			}
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			util.Fatal("Server failed to start", util.ErrorField(err))
		}
	}()

	util.Info("Server started successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.String("address", server.Addr),
	)

	waitForShutdown(f, server, stopJanitor)
}

// setupRouter creates the HTTP router with all handlers using Chi
func setupRouter(f *factory.Factory) http.Handler {
	auth := handler.NewAuthMiddleware(f.Authenticator())
	authHandler := handler.NewAuthHandler(f.Authenticator())
	employeeHandler := handler.NewEmployeeHandler(f.EmployeeService())
	return handler.NewRouter(authHandler, employeeHandler, auth, util.Get())
}

// runJanitor periodically reclaims expired session rows. Expired sessions
// are already unusable; this keeps storage bounded.
func runJanitor(ctx context.Context, f *factory.Factory, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			removed, err := f.SessionManager().DeleteExpired(sweepCtx)
			if err != nil {
				util.Warn("Session sweep failed", util.ErrorField(err))
			} else if removed > 0 {
				util.Info("Swept expired sessions", util.Int("removed", removed))
			}
			f.Recorder().Flush(sweepCtx)
			cancel()
		}
	}
}

func waitForShutdown(f *factory.Factory, server *http.Server, stopJanitor context.CancelFunc) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-signalChan
	util.Info("Received shutdown signal", util.String("signal", sig.String()))

	stopJanitor()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		util.Error("Failed to shutdown server gracefully", util.ErrorField(err))
	} else {
		util.Info("Server shutdown completed")
	}
	f.Close()
}
