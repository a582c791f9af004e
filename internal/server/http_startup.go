package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medpassport/internal/config"
)

// Start starts the HTTP server with all configured components
func (s *Server) Start() error {
	httpServer := s.setupHTTPServer()

	if err := s.configureTLS(httpServer); err != nil {
		return err
	}

	watcher, err := s.startKeyWatcher()
	if err != nil {
		return err
	}
	if watcher != nil {
		defer watcher.Stop()
	}

	s.displayServerInfo()

	return s.startWithGracefulShutdown(httpServer)
}

// setupHTTPServer creates and configures the HTTP server
func (s *Server) setupHTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.Host, s.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		IdleTimeout:  s.IdleTimeout,
	}
}

// startKeyWatcher polls the signing key secret and rotates the token key
// when Vault reports a new version. Tokens signed with the previous key stay
// valid for one session lifetime.
func (s *Server) startKeyWatcher() (*VaultWatcher, error) {
	if s.AppConfig == nil || s.deps.Auth == nil {
		return nil, nil
	}
	vc := s.AppConfig.Vault
	if !vc.Enabled || !vc.Watch.Enabled || vc.Secrets.SigningKey == "" {
		return nil, nil
	}

	client, err := config.NewVaultClient(vc, s.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client for key watcher: %w", err)
	}

	grace := s.AppConfig.Auth.SessionTTL
	watcher := NewVaultWatcher(client, vc.Secrets.SigningKey, vc.Watch.PollInterval, func(key string, err error) {
		if err != nil {
			s.Logger.LogError(err, "Signing key rotation skipped")
			return
		}
		s.deps.Auth.Tokens().Rotate(key, grace)
		s.Logger.Info("Signing key rotated", "grace", grace.String())
	}, s.Logger)

	if err := watcher.Start(); err != nil {
		return nil, err
	}
	return watcher, nil
}

// startWithGracefulShutdown starts the HTTP server and handles graceful shutdown
func (s *Server) startWithGracefulShutdown(server *http.Server) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.Logger.Info("Starting HTTP server",
			"address", server.Addr,
			"tls_enabled", server.TLSConfig != nil)

		var err error
		if server.TLSConfig != nil {
			// Certificates are already loaded into TLSConfig
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		s.releaseResources()
		return fmt.Errorf("server failed to start: %w", err)
	case sig := <-quit:
		s.Logger.Info("Received shutdown signal, starting graceful shutdown",
			"signal", sig.String())

		return s.performGracefulShutdown(server)
	}
}

// performGracefulShutdown handles the graceful shutdown process
func (s *Server) performGracefulShutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.Logger.Info("Shutting down HTTP server...")
	err := server.Shutdown(shutdownCtx)
	if err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		err = server.Close()
	}

	s.releaseResources()
	if err == nil {
		s.Logger.Info("Server shutdown completed successfully")
	}
	return err
}

// releaseResources closes everything the server was handed, in reverse
// order of construction.
func (s *Server) releaseResources() {
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.Logger.Info("Rate limiter cleaned up")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.deps.Observability != nil {
		if err := s.deps.Observability.Shutdown(ctx); err != nil {
			s.Logger.LogError(err, "Failed to shutdown observability")
		}
	}

	if s.deps.AIService != nil {
		if err := s.deps.AIService.Close(); err != nil {
			s.Logger.LogError(err, "Failed to close AI service")
		}
	}
	if s.deps.Store != nil {
		if err := s.deps.Store.Close(); err != nil {
			s.Logger.LogError(err, "Failed to close store")
		}
	}
}
