package utils

import (
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

// ConfigureLogging sets up the simple commonlog backend. Verbosity 0 logs
// notices and above, each step up adds a level, and negative values quiet it
// down. An empty file logs to stderr.
func ConfigureLogging(verbosity int, file string) {
	var path *string
	if file != "" {
		path = &file
	}
	commonlog.Configure(verbosity, path)
}
