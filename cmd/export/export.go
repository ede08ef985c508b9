// Package export contains the command that writes a transaction log to CSV.
package export

import (
	"fmt"

	"github.com/spf13/cobra"

	"banking/cmd/root"
	"banking/internal/export"
	"banking/internal/models"
	"banking/internal/store"
)

var (
	accountID string
	output    string
)

// Cmd is the export command.
var Cmd = &cobra.Command{
	Use:   "export",
	Short: "Export the transaction log of an account or card to CSV.",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := root.LoadApp()
		if err != nil {
			return err
		}

		key, err := resolveKey(app, accountID)
		if err != nil {
			return err
		}

		transactions, err := app.Store.Find(key, store.FindOptions{})
		if err != nil {
			return err
		}
		return export.WriteTransactionsToCSV(transactions, output, app.Log)
	},
}

// resolveKey maps the flag value to a log key: an account id first, then a
// card number.
func resolveKey(app *root.App, id string) (store.LogKey, error) {
	if account := app.Banking.FindAccount(id); account != nil {
		return store.LogKey{Kind: account.Type, ID: account.ID}, nil
	}
	for _, card := range app.Banking.Cards() {
		if card.Number == id {
			return store.LogKey{Kind: models.KindBankCreditCard, ID: card.Number}, nil
		}
	}
	return store.LogKey{}, fmt.Errorf("no account or card configured with id %q", id)
}

func init() {
	Cmd.Flags().StringVarP(&accountID, "account", "a", "", "Account id or card number to export")
	Cmd.Flags().StringVarP(&output, "output", "o", "transactions.csv", "Output CSV file")
	_ = Cmd.MarkFlagRequired("account")
}
