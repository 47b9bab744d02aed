package main

import "github.com/speters/kw1281/cmd/kw1281/commands"

// To be set via go build -ldflags "-X main.buildVersion=$(git describe --dirty) -X main.buildDate=$(date -u +%FT%TZ)"
var buildVersion = "unspecified"
var buildDate = "unknown"

func main() {
	commands.Version = buildVersion
	commands.BuildDate = buildDate
	commands.Execute()
}
