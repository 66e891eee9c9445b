// Command lookup is search-as-you-type on a terminal: every input line is the
// field's full text after a keystroke, and suggestions print once typing
// pauses for the debounce window.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog/log"

	"flightbook/internal/adapters/flightapi"
	"flightbook/internal/adapters/observability"
	"flightbook/internal/app"
	"flightbook/internal/domain"
	"flightbook/internal/shared"
)

func main() {
	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	client, err := flightapi.New(cfg.FlightAPIBase, cfg.FlightAPIRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize flight API client")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	delivered := make(chan struct{}, 1)
	r := app.NewResolver(client, log.Logger)
	s := r.NewSession(ctx, cfg.Debounce, func(q string, res []domain.LocationSuggestion) {
		defer func() {
			select {
			case delivered <- struct{}{}:
			default:
			}
		}()
		if len(res) == 0 {
			fmt.Printf("%q: no suggestions\n", q)
			return
		}
		fmt.Printf("%q:\n", q)
		for _, sg := range res {
			fmt.Printf("  %-4s %s  (%s)\n", sg.Code, sg.Display, sg.Secondary)
		}
	})
	defer s.Close()

	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		if ctx.Err() != nil {
			return
		}
		select {
		case <-delivered:
		default:
		}
		s.Type(in.Text())
	}
	// wait for the last input's results before tearing down
	select {
	case <-ctx.Done():
	case <-delivered:
	case <-time.After(cfg.Debounce + 30*time.Second):
	}
}
