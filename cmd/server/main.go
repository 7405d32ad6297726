package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/99minutos/session-security/internal/cmd"
)

// @title			Session Security Gateway
// @version		1.0
// @description	Form login, single-session registry and path-based access control.
// @host			localhost:8080
// @BasePath		/
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
