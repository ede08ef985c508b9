package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"banking/internal/models"
)

// defaultUpdateTimeout is the minimum interval between two updates of the
// same account or card when the file does not set one.
const defaultUpdateTimeout = 3600

// Banking holds the full banking topology: banks with their accounts and
// cards, locally managed accounts, and the notification and scheduler
// settings.
type Banking struct {
	Banks         []models.BankConfig
	LocalAccounts []models.AccountConfig
	Notifications models.NotificationsConfig
	Scheduler     models.SchedulerConfig
}

type bankingFile struct {
	Banks []struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Credentials struct {
			Username string `yaml:"username"`
			Password string `yaml:"password"`
		} `yaml:"credentials"`
	} `yaml:"banks"`
	Accounts []struct {
		Type string `yaml:"type"`
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
		Bank string `yaml:"bank_id"`
	} `yaml:"accounts"`
	Cards []struct {
		Type    string `yaml:"type"`
		Name    string `yaml:"name"`
		Number  string `yaml:"number"`
		Owner   string `yaml:"owner"`
		Active  *bool  `yaml:"active"`
		Account string `yaml:"account"`
	} `yaml:"cards"`
	Notifications struct {
		TelegramAPIKey string `yaml:"telegram_api_key"`
		TelegramChatID string `yaml:"telegram_chat_id"`
	} `yaml:"notifications"`
	Scheduler struct {
		ScrappingHours       []string `yaml:"scrapping_hours"`
		UpdateTimeoutSeconds int      `yaml:"update_timeout_seconds"`
	} `yaml:"scheduler"`
}

// LoadBanking reads the banking topology file and wires cards to their
// accounts and accounts to their banks. Dangling references fail the load.
func LoadBanking(path string) (*Banking, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read banking file: %w", err)
	}
	var file bankingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse banking file: %w", err)
	}

	banking := &Banking{
		Notifications: models.NotificationsConfig{
			TelegramAPIKey: file.Notifications.TelegramAPIKey,
			TelegramChatID: file.Notifications.TelegramChatID,
		},
		Scheduler: models.SchedulerConfig{
			ScrappingHours:       file.Scheduler.ScrappingHours,
			UpdateTimeoutSeconds: file.Scheduler.UpdateTimeoutSeconds,
		},
	}
	if banking.Scheduler.UpdateTimeoutSeconds == 0 {
		banking.Scheduler.UpdateTimeoutSeconds = defaultUpdateTimeout
	}
	for _, hour := range banking.Scheduler.ScrappingHours {
		if _, err := time.Parse("15:04", hour); err != nil {
			return nil, fmt.Errorf("invalid scrapping hour %q (expected HH:MM)", hour)
		}
	}

	// The lookup maps hold pointers into these slices, so their backing
	// arrays must never reallocate after a pointer is taken.
	banking.Banks = make([]models.BankConfig, 0, len(file.Banks))
	banking.LocalAccounts = make([]models.AccountConfig, 0, len(file.Accounts))

	banksByID := make(map[string]*models.BankConfig, len(file.Banks))
	for _, bank := range file.Banks {
		if bank.ID == "" {
			return nil, fmt.Errorf("bank entry without an id")
		}
		if _, exists := banksByID[bank.ID]; exists {
			return nil, fmt.Errorf("duplicated bank id %q", bank.ID)
		}
		banking.Banks = append(banking.Banks, models.BankConfig{
			ID:       bank.ID,
			Name:     bank.Name,
			Username: bank.Credentials.Username,
			Password: bank.Credentials.Password,
		})
		banksByID[bank.ID] = &banking.Banks[len(banking.Banks)-1]
	}

	accountsByID := make(map[string]*models.AccountConfig, len(file.Accounts))
	for _, account := range file.Accounts {
		kind, err := accountKind(account.Type)
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", account.ID, err)
		}
		if _, exists := accountsByID[account.ID]; exists {
			return nil, fmt.Errorf("duplicated account id %q", account.ID)
		}

		built := models.AccountConfig{
			Type:   kind,
			ID:     account.ID,
			Name:   account.Name,
			BankID: account.Bank,
		}
		if kind == models.KindLocalAccount {
			if account.Bank != "" {
				return nil, fmt.Errorf("local account %q must not reference a bank", account.ID)
			}
			banking.LocalAccounts = append(banking.LocalAccounts, built)
			accountsByID[account.ID] = &banking.LocalAccounts[len(banking.LocalAccounts)-1]
			continue
		}

		bank, ok := banksByID[account.Bank]
		if !ok {
			return nil, fmt.Errorf("account %q references unknown bank %q", account.ID, account.Bank)
		}
		if bank.Accounts == nil {
			bank.Accounts = make([]models.AccountConfig, 0, len(file.Accounts))
		}
		bank.Accounts = append(bank.Accounts, built)
		accountsByID[account.ID] = &bank.Accounts[len(bank.Accounts)-1]
	}

	for _, card := range file.Cards {
		account, ok := accountsByID[card.Account]
		if !ok {
			return nil, fmt.Errorf("card %q references unknown account %q", card.Number, card.Account)
		}
		if account.Type != models.KindBankAccount {
			return nil, fmt.Errorf("card %q must be tied to a bank account", card.Number)
		}
		active := true
		if card.Active != nil {
			active = *card.Active
		}
		account.Cards = append(account.Cards, models.CardConfig{
			Type:          card.Type,
			Name:          card.Name,
			Number:        card.Number,
			Owner:         card.Owner,
			Active:        active,
			BankID:        account.BankID,
			AccountNumber: account.ID,
		})
	}

	return banking, nil
}

func accountKind(value string) (models.AccountKind, error) {
	switch value {
	case "bank_account", "":
		return models.KindBankAccount, nil
	case "local_account":
		return models.KindLocalAccount, nil
	default:
		return "", fmt.Errorf("unknown account type %q", value)
	}
}

// Accounts returns every configured account, bank backed and local.
func (b *Banking) Accounts() []models.AccountConfig {
	var accounts []models.AccountConfig
	for _, bank := range b.Banks {
		accounts = append(accounts, bank.Accounts...)
	}
	accounts = append(accounts, b.LocalAccounts...)
	return accounts
}

// FindAccount returns the account with the given id, or nil.
func (b *Banking) FindAccount(id string) *models.AccountConfig {
	for i := range b.Banks {
		for j := range b.Banks[i].Accounts {
			if b.Banks[i].Accounts[j].ID == id {
				return &b.Banks[i].Accounts[j]
			}
		}
	}
	for i := range b.LocalAccounts {
		if b.LocalAccounts[i].ID == id {
			return &b.LocalAccounts[i]
		}
	}
	return nil
}

// FindBank returns the bank with the given id, or nil.
func (b *Banking) FindBank(id string) *models.BankConfig {
	for i := range b.Banks {
		if b.Banks[i].ID == id {
			return &b.Banks[i]
		}
	}
	return nil
}

// Cards returns every configured card across all accounts.
func (b *Banking) Cards() []models.CardConfig {
	var cards []models.CardConfig
	for _, account := range b.Accounts() {
		cards = append(cards, account.Cards...)
	}
	return cards
}
