package profiling

import (
	"net"
	"net/http"
	"net/http/pprof"

	"github.com/anchorchain/anchord/infrastructure/logger"
	"github.com/anchorchain/anchord/util/panics"
)

// Start serves the pprof handlers on localhost:port in a new goroutine.
// The handlers live on their own mux so nothing else is exposed on the port.
func Start(port string, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/", http.RedirectHandler("/debug/pprof/", http.StatusSeeOther))

	spawn := panics.GoroutineWrapperFunc(log)
	spawn("profiling.Start", func() {
		listenAddr := net.JoinHostPort("localhost", port)
		log.Infof("Profile server listening on %s", listenAddr)
		err := http.ListenAndServe(listenAddr, mux)
		if err != nil {
			log.Errorf("Profile server stopped: %s", err)
		}
	})
}
