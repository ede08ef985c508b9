package bbvaparser

import (
	"banking/internal/logging"
	"banking/internal/parser"
)

var defaultParser = New(nil)

func init() {
	parser.Register(BankID, defaultParser)
}

// SetLogger points the registered provider at a configured logger.
func SetLogger(log logging.Logger) {
	if log == nil {
		return
	}
	defaultParser.log = log
}
