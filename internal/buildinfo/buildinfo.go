// Package buildinfo exposes version data injected at link time:
//
//	go build -ldflags "-X github.com/vroomly/rentclient/internal/buildinfo.Version=1.2.0"
package buildinfo

import (
	"fmt"
	"io"
)

var (
	Version = "N/A"
	Date    = "N/A"
	Commit  = "N/A"
)

func PrintBuildData(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Build version: %s\n", Version)
	_, _ = fmt.Fprintf(w, "Build date: %s\n", Date)
	_, _ = fmt.Fprintf(w, "Build commit: %s\n", Commit)
}
