// Package update contains the command that runs one full update pass.
package update

import (
	"fmt"

	"github.com/spf13/cobra"

	"banking/cmd/root"
	"banking/internal/scraper"
	"banking/internal/updater"
)

var payloadsDir string

// Cmd is the update command.
var Cmd = &cobra.Command{
	Use:   "update",
	Short: "Fetch, parse and reconcile transactions for every configured account and card.",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := root.LoadApp()
		if err != nil {
			return err
		}
		if payloadsDir == "" {
			return fmt.Errorf("live scraping sessions are not wired in, provide --payloads with raw provider payload dumps")
		}

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
		return u.UpdateAll(cmd.Context())
	},
}

func init() {
	Cmd.Flags().StringVarP(&payloadsDir, "payloads", "p", "", "Directory with raw provider payload dumps")
}
