package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/arven-dev/botfleet/internal/application"
)

func newProxiesCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxies",
		Short: "Manage the proxy pool",
	}

	cmd.AddCommand(
		newProxiesAuditCmd(app),
		newProxiesEvictCmd(app),
	)

	return cmd
}

func newProxiesAuditCmd(app *app) *cobra.Command {
	var prune bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Validate every proxy in the pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := runProxyAudit(cmd.Context(), cmd.OutOrStdout(), app.proxySvc)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "working: %d\n", len(result.Working))
			_, _ = fmt.Fprintf(out, "failed: %d\n", len(result.Failed))
			for _, raw := range result.Failed {
				_, _ = fmt.Fprintf(out, "  %s\n", raw)
			}

			if prune && len(result.Failed) > 0 {
				if err := app.proxySvc.EvictAll(cmd.Context(), result.Failed); err != nil {
					return fmt.Errorf("prune failed proxies: %w", err)
				}
				_, _ = fmt.Fprintf(out, "pruned %d proxies\n", len(result.Failed))
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&prune, "prune", false, "remove failed proxies from the pool")

	return cmd
}

func newProxiesEvictCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "evict <host:port:user:pass>",
		Short: "Remove a proxy from the pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.proxySvc.Evict(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "evicted %s\n", args[0])
			return nil
		},
	}
}

// auditTick carries one probe verdict into the UI; auditSettled means the
// verdict channel is drained and the partition is complete.
type auditTick struct{ ok bool }

type auditSettled struct{}

// auditView renders a spinner with running up/down counts while the pool
// audit probes proxies concurrently.
type auditView struct {
	spinner  spinner.Model
	verdicts <-chan bool
	working  int
	dead     int
	settled  bool
}

func newAuditView(verdicts <-chan bool) auditView {
	return auditView{
		spinner:  spinner.New(spinner.WithSpinner(spinner.Points)),
		verdicts: verdicts,
	}
}

// next blocks on the verdict channel; each received verdict re-arms it, so
// exactly one reader drains the channel.
func (v auditView) next() tea.Cmd {
	return func() tea.Msg {
		ok, open := <-v.verdicts
		if !open {
			return auditSettled{}
		}
		return auditTick{ok: ok}
	}
}

func (v auditView) Init() tea.Cmd {
	return tea.Batch(v.spinner.Tick, v.next())
}

func (v auditView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case auditTick:
		if msg.ok {
			v.working++
		} else {
			v.dead++
		}
		return v, v.next()
	case auditSettled:
		v.settled = true
		return v, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd
	default:
		return v, nil
	}
}

func (v auditView) View() string {
	if v.settled {
		return ""
	}
	return fmt.Sprintf("%s probing proxies (%d up, %d down)", v.spinner.View(), v.working, v.dead)
}

// runProxyAudit probes the whole pool while the terminal shows live
// verdict counts, and returns the working/failed partition.
func runProxyAudit(ctx context.Context, out io.Writer, svc *application.ProxyService) (application.AuditResult, error) {
	verdicts := make(chan bool, 32)

	type auditOutcome struct {
		result application.AuditResult
		err    error
	}
	done := make(chan auditOutcome, 1)
	go func() {
		result, err := svc.Audit(ctx, func(ok bool) { verdicts <- ok })
		close(verdicts)
		done <- auditOutcome{result: result, err: err}
	}()

	program := tea.NewProgram(newAuditView(verdicts), tea.WithInput(nil), tea.WithOutput(out), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		// Unblock the audit goroutine if the UI died early.
		go func() {
			for range verdicts {
			}
		}()
		<-done
		return application.AuditResult{}, err
	}

	outcome := <-done
	return outcome.result, outcome.err
}
