// Command relay-lights drives an 8-channel relay board through animated
// light patterns on a schedule, with a thermal interlock, a web control
// page and MQTT events.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/sweeney/relay-lights/internal/config"
	"github.com/sweeney/relay-lights/internal/gpio"
	"github.com/sweeney/relay-lights/internal/logging"
	"github.com/sweeney/relay-lights/internal/logic"
	"github.com/sweeney/relay-lights/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := config.Defaults()

	root := &cobra.Command{
		Use:          "relay-lights",
		Short:        "Relay light controller",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.Load(&opts, cmd); err != nil {
				return err
			}
			if err := opts.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logging.Initialize(opts.Logging())
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(&opts)
		},
	}
	config.BindFlags(root.PersistentFlags(), &opts)

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the controller (default)",
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(&opts)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "state",
		Short: "Print persisted settings and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printState(cmd, &opts)
		},
	})
	root.AddCommand(newRelaysCmd(&opts))
	return root
}

func printState(cmd *cobra.Command, opts *config.Options) error {
	st, err := store.Open(opts.StateFile, logging.GetLogger("store"))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "file: %s\n", st.Path())
	for _, e := range st.Entries() {
		fmt.Fprintf(out, "  %s = %v\n", e.Key, e.Value)
	}
	fmt.Fprint(out, formatSettings(logic.LoadSettings(st)))
	return nil
}

func formatSettings(s logic.Settings) string {
	var b strings.Builder
	fmt.Fprintf(&b, "mode: %s\n", s.Mode)
	fmt.Fprintf(&b, "pattern: %s\n", s.Pattern)
	fmt.Fprintf(&b, "speed: %dms\n", s.SpeedMs)
	fmt.Fprintf(&b, "window: %s-%s\n", logic.FormatClock(s.Window.On), logic.FormatClock(s.Window.Off))
	fmt.Fprintf(&b, "sunset: %s (offset %d min)\n", onOff(s.SunsetEnabled), s.SunsetOffset)
	fmt.Fprintf(&b, "shuffle: %s (hold %ds)\n", onOff(s.Shuffle), s.HoldSeconds)
	return b.String()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func newRelaysCmd(opts *config.Options) *cobra.Command {
	var hold time.Duration
	cmd := &cobra.Command{
		Use:   "relays FRAME",
		Short: "Energise relays from a bitmask (e.g. 0x0f, 0b1010) for wiring checks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, err := parseFrame(args[0])
			if err != nil {
				return err
			}
			w, err := gpio.NewRealWriter(opts.GPIOChip, opts.GPIOPins, opts.GPIOActiveLow)
			if err != nil {
				return fmt.Errorf("init gpio: %w", err)
			}
			defer w.Close()

			if err := writeFrame(w, frame, opts.GPIOActiveLow); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "frame %s for %v\n", frame, hold)
			time.Sleep(hold)
			return nil
		},
	}
	cmd.Flags().DurationVar(&hold, "hold", 5*time.Second, "How long to hold the frame before releasing")
	return cmd
}

func parseFrame(s string) (logic.Frame, error) {
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("frame %q: want 0-255", s)
	}
	return logic.Frame(n), nil
}

// writeFrame drives every channel directly, bypassing the dwell limit.
func writeFrame(w gpio.Writer, f logic.Frame, activeLow bool) error {
	for i := 0; i < logic.NumChannels; i++ {
		if err := w.Write(i, f.On(i) != activeLow); err != nil {
			return err
		}
	}
	return nil
}
