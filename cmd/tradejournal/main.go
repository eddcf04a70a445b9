// Command tradejournal is a command-line backtest trading journal.
package main

import (
	"os"

	"tradejournal/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
