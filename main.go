// Command docdbd runs the document database server.
package main

import (
	"os"

	"docdb/cli"
	"docdb/common"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		common.Logger.WithError(err).Error("docdbd exited with error")
		os.Exit(1)
	}
}
