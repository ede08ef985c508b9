package root

import (
	"errors"
	"fmt"
	"os"

	"banking/internal/config"
	"banking/internal/logging"
	"banking/internal/models"
	"banking/internal/rules"
	"banking/internal/store"
)

// App bundles the collaborators every subcommand needs: configuration files,
// the rule engine and the opened store.
type App struct {
	Config     *config.Config
	Banking    *config.Banking
	Categories map[string]models.Category
	Engine     *rules.Engine
	Metadata   *config.Metadata
	Store      *store.Store
	Log        logging.Logger
}

// LoadApp loads the configuration files and opens the store. Missing rules
// or categories files degrade to an empty set with a warning; a missing
// banking file is fatal.
func LoadApp() (*App, error) {
	banking, err := config.LoadBanking(Cfg.Files.Banking)
	if err != nil {
		return nil, fmt.Errorf("failed to load banking topology: %w", err)
	}

	categories := map[string]models.Category{}
	if loaded, err := config.LoadCategories(Cfg.Files.Categories); err == nil {
		categories = loaded
	} else if errors.Is(err, os.ErrNotExist) {
		Log.Warn("No categories file found, category assignments disabled",
			logging.Field{Key: "path", Value: Cfg.Files.Categories})
	} else {
		return nil, err
	}

	ruleSet := &rules.RuleSet{}
	if loaded, err := rules.LoadFromFile(Cfg.Files.Rules); err == nil {
		ruleSet = loaded
	} else if errors.Is(err, os.ErrNotExist) {
		Log.Warn("No rules file found, rule enrichment disabled",
			logging.Field{Key: "path", Value: Cfg.Files.Rules})
	} else {
		return nil, err
	}

	metadata, err := config.LoadMetadata(Cfg.Files.Metadata)
	if err != nil {
		return nil, err
	}

	s, err := store.Open(Cfg.Database.Folder, Log)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	return &App{
		Config:     Cfg,
		Banking:    banking,
		Categories: categories,
		Engine:     rules.NewEngine(ruleSet, categories, Log),
		Metadata:   metadata,
		Store:      s,
		Log:        Log,
	}, nil
}
