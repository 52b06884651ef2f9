package cli

import (
	stdcontext "context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apihttp "github.com/Paintersrp/gosh/internal/api/http"
	"github.com/Paintersrp/gosh/internal/config"
	"github.com/Paintersrp/gosh/internal/shell"
)

var newAPIServer = apihttp.NewServer

// startControlAPI brings up the introspection server when the rc file, the
// --api flag or GOSH_ENABLE_API asks for it. It returns a stop function
// once the server is accepting, or nil when the API stays off.
func startControlAPI(cmd *cobra.Command, ctx *context, cfg *config.Config, sh *shell.Shell) (func() error, error) {
	enabled := apiEnabled()
	addr := ""
	if cfg.API != nil && cfg.API.Enabled {
		enabled = true
		addr = cfg.API.Listen
	}
	if cmd.Flags().Changed("api") {
		enabled = true
	}
	if ctx.apiAddr != "" {
		addr = ctx.apiAddr
	}
	if !enabled {
		return nil, nil
	}

	control := NewShellController(sh)
	if control == nil {
		return nil, errors.New("control API unavailable")
	}
	server, err := newAPIServer(apihttp.Config{Addr: addr, Controller: control})
	if err != nil {
		return nil, err
	}

	serverCtx, cancel := stdcontext.WithCancel(stdcontext.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run(serverCtx)
	}()

	readyTimer := time.NewTimer(200 * time.Millisecond)
	defer readyTimer.Stop()
	select {
	case err := <-errCh:
		cancel()
		return nil, err
	case <-readyTimer.C:
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Control API listening on %s\n", server.Addr())
	return func() error {
		cancel()
		err := <-errCh
		if err != nil && !errors.Is(err, stdcontext.Canceled) && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, nil
}

func apiEnabled() bool {
	value := strings.TrimSpace(os.Getenv("GOSH_ENABLE_API"))
	if value == "" {
		return false
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return false
	}
	return enabled
}
