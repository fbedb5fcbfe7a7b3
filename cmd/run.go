package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/arven-dev/botfleet/internal/adapters/protocol"
	"github.com/arven-dev/botfleet/internal/adapters/report"
	"github.com/arven-dev/botfleet/internal/application"
	"github.com/arven-dev/botfleet/internal/domain"
)

func newRunCmd(app *app) *cobra.Command {
	var freshAccounts int
	var accountCount int
	var auditFirst bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the fleet and keep it connected",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if auditFirst {
				if err := auditBeforeStart(ctx, app, cmd); err != nil {
					return err
				}
			}

			refs, err := collectAccountRefs(ctx, app, freshAccounts, accountCount)
			if err != nil {
				return err
			}
			if len(refs) == 0 {
				return errors.New("no accounts configured; add cookie jars or run 'botfleet login'")
			}

			fleet := application.NewFleet(
				application.FleetConfig{
					Server:        app.cfg.Server,
					StatusCommand: app.cfg.StatusCmd,
					Timings:       application.DefaultFleetTimings(),
				},
				app.auth,
				app.proxySvc,
				app.store,
				protocol.Dialer(),
				app.registry,
				app.status,
				app.notifier,
			)

			reportErr := make(chan error, 1)
			go func() {
				reportErr <- report.Serve(ctx, app.cfg.ReportListen, report.NewRouter(app.registry, app.targets), app.status)
			}()

			app.status.Statusf("starting %d account(s) against %s:%d", len(refs), app.cfg.Server.Host, app.cfg.Server.Port)
			fleet.StartAll(ctx, refs)

			go broadcastLoop(ctx, cmd.InOrStdin(), fleet)

			<-ctx.Done()
			app.status.Statusf("shutting down")
			fleet.Shutdown()
			fleet.Wait()

			select {
			case err := <-reportErr:
				return err
			case <-time.After(10 * time.Second):
				return errors.New("report server did not shut down in time")
			}
		},
	}

	cmd.Flags().IntVar(&freshAccounts, "fresh", 0, "number of new accounts to log in interactively at startup")
	cmd.Flags().IntVar(&accountCount, "count", 0, "use at most this many stored accounts (0 = all)")
	cmd.Flags().BoolVar(&auditFirst, "audit", false, "validate the proxy pool before starting")

	return cmd
}

// auditBeforeStart validates the pool and lets the operator decide whether
// the failed proxies get evicted before any bot leases one.
func auditBeforeStart(ctx context.Context, app *app, cmd *cobra.Command) error {
	result, err := runProxyAudit(ctx, cmd.OutOrStdout(), app.proxySvc)
	if err != nil {
		return fmt.Errorf("audit proxy pool: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "proxies working: %d, failed: %d\n", len(result.Working), len(result.Failed))
	if len(result.Failed) == 0 {
		return nil
	}

	_, _ = fmt.Fprintf(out, "Evict %d failed proxies? [y/N]: ", len(result.Failed))
	reader := bufio.NewReader(cmd.InOrStdin())
	answer, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read eviction choice: %w", err)
	}

	if strings.EqualFold(strings.TrimSpace(answer), "y") {
		if err := app.proxySvc.EvictAll(ctx, result.Failed); err != nil {
			return fmt.Errorf("evict failed proxies: %w", err)
		}
		_, _ = fmt.Fprintf(out, "evicted %d proxies\n", len(result.Failed))
	}

	return nil
}

// collectAccountRefs gathers stored accounts of both kinds, bounded by
// count (0 = all), plus placeholder references for accounts the operator
// wants to create through the consent flow during this run. The count
// bound applies to stored accounts only: fresh placeholders were asked for
// explicitly and are always kept.
func collectAccountRefs(ctx context.Context, app *app, fresh, count int) ([]domain.AccountRef, error) {
	delegated, err := app.store.List(ctx, domain.KindDelegated)
	if err != nil {
		return nil, fmt.Errorf("list stored logins: %w", err)
	}
	cookies, err := app.store.List(ctx, domain.KindCookieReplay)
	if err != nil {
		return nil, fmt.Errorf("list cookie jars: %w", err)
	}

	refs := append(delegated, cookies...)
	if count > 0 && count < len(refs) {
		refs = refs[:count]
	}
	for i := 0; i < fresh; i++ {
		refs = append(refs, domain.AccountRef{
			File: "random-" + uuid.NewString() + ".json",
			Kind: domain.KindDelegated,
		})
	}
	return refs, nil
}

// broadcastLoop relays operator stdin lines as chat to every live session.
func broadcastLoop(ctx context.Context, in io.Reader, fleet *application.Fleet) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fleet.Broadcast(line)
	}
}
