// Command ledgercached keeps a local cache of one ledger dataset in sync and
// serves raw reads over HTTP.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
