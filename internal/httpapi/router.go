package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// NewMux returns the bare mux; NewHandler wraps it with the middleware chain.
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: HealthHandler{Hub: d.Hub, Started: d.Started}.Health,
	}))

	// Commands
	ch := CommandHandler{Commands: d.Commands}
	mux.HandleFunc("/command", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: ch.Command,
	}))
	mux.HandleFunc("/settings", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.GetSettings,
		http.MethodPut: ch.SaveSettings,
	}))
	mux.HandleFunc("/recent", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Recent,
	}))
	mux.HandleFunc("/entries", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: ch.AppendEntry,
	}))
	mux.HandleFunc("/pages", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: ch.CapturePage,
	}))
	mux.HandleFunc("/sheet", methodMux(map[string]http.HandlerFunc{
		http.MethodGet:  ch.SheetPull,
		http.MethodPost: ch.CreateSheet,
	}))
	mux.HandleFunc("/records/{id}", methodMux(map[string]http.HandlerFunc{
		http.MethodPatch:  ch.UpdateRecord,
		http.MethodDelete: ch.DeleteRecord,
	}))
	mux.HandleFunc("/connection/test", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: ch.TestConnection,
	}))
	mux.HandleFunc("/cache/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.CacheHealth,
	}))

	// Engine config
	cfh := ConfigHandler{Current: d.Config, UserCfgPath: d.UserCfgPath}
	mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: cfh.Get,
		http.MethodPut: cfh.Put,
	}))
	mux.HandleFunc("/config/path", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: cfh.Path,
	}))

	// Google sign-in
	if d.Tokens != nil {
		ah := AuthHandler{Tokens: d.Tokens}
		mux.HandleFunc("/auth/status", methodMux(map[string]http.HandlerFunc{
			http.MethodGet: ah.Status,
		}))
		mux.HandleFunc("/auth/login", methodMux(map[string]http.HandlerFunc{
			http.MethodPost: ah.Login,
		}))
		mux.HandleFunc("/auth/logout", methodMux(map[string]http.HandlerFunc{
			http.MethodPost: ah.Logout,
		}))
	}

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	return mux
}

func NewHandler(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")
	return Chain(NewMux(d), RequestID, Recover(log), AccessLog(log), Cors)
}
