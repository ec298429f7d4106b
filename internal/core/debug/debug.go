// Package debug contains utilities that are only active when the server is
// run in debug mode.
package debug

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"

	"wordclash/internal/protocol"
)

// StartUtilities spins off the services associated with debug mode. This
// starts the default pprof HTTP server that can be accessed via localhost
// to get runtime information about the server.
// See https://golang.org/pkg/net/http/pprof/
func StartUtilities(logger *logrus.Logger, pprofPort int) {
	listenerAddr := fmt.Sprintf("localhost:%d", pprofPort)
	logger.Infof("starting pprof server on %s", listenerAddr)

	go func() {
		if err := http.ListenAndServe(listenerAddr, nil); err != nil {
			logger.Infof("error starting pprof server: %s", err)
		}
	}()
}

var frameDumper = spew.ConfigState{Indent: "  ", DisableCapacities: true, DisablePointerAddresses: true}

// DumpFrame returns a readable multi-line representation of a decoded
// frame for packet logging.
func DumpFrame(m *protocol.Message) string {
	return frameDumper.Sdump(m)
}
