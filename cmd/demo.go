package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcadams/pulse/internal/bridge"
	"github.com/jmcadams/pulse/internal/clock/system"
	"github.com/jmcadams/pulse/internal/execution"
	"github.com/jmcadams/pulse/internal/execution/memory"
	"github.com/jmcadams/pulse/internal/logging"
	"github.com/jmcadams/pulse/internal/progress"
	"github.com/jmcadams/pulse/internal/render"
)

func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Runs a scripted stepped session against the log renderer",
		Long: `Drives one stepped session through the execution bridge with a fixed
script of task events and renders every snapshot to the log. Useful for
eyeballing mode transitions, aggregation, and the completion hold.`,
		RunE: runDemoCommand,
	}
}

func runDemoCommand(*cobra.Command, []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	bus := memory.New(logger.Named("bus"), system.New())
	defer bus.Close()

	session := progress.New(progress.Config{
		HoldDelay: cfg.HoldDelay(),
		Hub:       progress.HubConfig{BufferSize: cfg.Progress.BufferSize},
		Logger:    logger.Named("session"),
	})
	defer session.Dispose() //nolint:errcheck // demo teardown

	adapter := render.NewAdapter(render.NewLogRenderer(logger.Named("render")), logger)
	session.Subscribe(adapter)

	br := bridge.New(bus, session, logger.Named("bridge"))
	if err := br.Enable("demo"); err != nil {
		return fmt.Errorf("enable bridge: %w", err)
	}
	defer br.Close()

	if err := session.StartStepped([]progress.StepConfig{
		{ID: "download", Name: "Download", Tooltip: "Fetch the artifact"},
		{ID: "verify", Name: "Verify", Tooltip: "Check the digest"},
		{ID: "install", Name: "Install"},
	}); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	script := []execution.Event{
		{Kind: execution.KindTaskStarted, TaskName: "download"},
		{Kind: execution.KindTaskProgress, TaskName: "download", StepPercent: pct(50)},
		{Kind: execution.KindTaskCompleted, TaskName: "download"},
		{Kind: execution.KindTaskStarted, TaskName: "verify"},
		{Kind: execution.KindTaskCompleted, TaskName: "verify"},
		{Kind: execution.KindTaskStarted, TaskName: "install"},
		{Kind: execution.KindTaskProgress, TaskName: "install", StepPercent: pct(80)},
		{Kind: execution.KindTaskCompleted, TaskName: "install"},
	}
	for _, evt := range script {
		evt.Channel = "demo"
		if err := bus.Publish(evt); err != nil {
			return fmt.Errorf("publish %s/%s: %w", evt.Kind, evt.TaskName, err)
		}
		time.Sleep(150 * time.Millisecond)
	}

	if err := session.Complete(); err != nil {
		return fmt.Errorf("complete session: %w", err)
	}

	// Let the hold elapse so the final hide is rendered too.
	time.Sleep(cfg.HoldDelay() + 200*time.Millisecond)
	return nil
}

func pct(v float64) *float64 { return &v }
