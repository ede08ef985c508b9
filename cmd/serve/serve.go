// Package serve contains the command that runs the HTTP API and the
// scheduled update loop.
package serve

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"banking/cmd/root"
	"banking/internal/api"
	"banking/internal/logging"
	"banking/internal/scheduler"
	"banking/internal/scraper"
	"banking/internal/updater"
)

var payloadsDir string

// Cmd is the serve command.
var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the transaction store over HTTP and run scheduled updates.",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := root.LoadApp()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if payloadsDir != "" {
			u := updater.New(updater.Params{
				Store:    app.Store,
				Banking:  app.Banking,
				Metadata: app.Metadata,
				Engine:   app.Engine,
				Scrapers: scraper.NewFileFactory(payloadsDir),
				Scraper: scraper.Options{
					Headless:     app.Config.Scraper.Headless,
					CloseBrowser: app.Config.Scraper.CloseBrowser,
				},
				Notifier: updater.NewNotifier(app.Banking.Notifications, app.Log),
				Log:      app.Log,
			})
			runUpdate := func(ctx context.Context) {
				if err := u.UpdateAll(ctx); err != nil {
					app.Log.WithError(err).Error("Scheduled update failed")
				}
			}
			if app.Config.Updater.UpdateOnStart {
				go runUpdate(ctx)
			}
			sched, err := scheduler.New(app.Banking.Scheduler, runUpdate, app.Log)
			if err != nil {
				return err
			}
			go func() {
				if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					app.Log.WithError(err).Error("Scheduler stopped")
				}
			}()
		}

		server := &http.Server{
			Addr:    app.Config.API.Address,
			Handler: api.New(app.Store, app.Banking, app.Log).Handler(),
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				app.Log.WithError(err).Warn("HTTP server shutdown failed")
			}
		}()

		app.Log.Info("Serving HTTP API",
			logging.Field{Key: "address", Value: app.Config.API.Address})
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	Cmd.Flags().StringVarP(&payloadsDir, "payloads", "p", "", "Directory with raw provider payload dumps")
}
