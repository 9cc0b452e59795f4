package main

import (
	"fmt"
	"io"
	"os"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/spf13/cobra"

	"github.com/glintstream/vdisplay/internal/config"
	"github.com/glintstream/vdisplay/internal/display"
	"github.com/glintstream/vdisplay/internal/logging"
	"github.com/glintstream/vdisplay/internal/privilege"
)

var (
	version = "0.1.0"
	cfgFile string

	width       int
	height      int
	refreshRate int
)

var rootCmd = &cobra.Command{
	Use:   "vdisplay",
	Short: "Virtual display manager for game-streaming hosts",
	Long: `vdisplay presents a virtual monitor matching a streaming client's
viewport by overriding an empty DRM connector with a synthetic EDID,
and restores the physical displays when the session ends.

Must run with root privileges; the streaming session manager is
expected to invoke it through its elevation wrapper.`,
	SilenceUsage: true,
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Present a virtual display matching the client viewport",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := setup()
		if err != nil {
			return err
		}
		return mgr.Connect(width, height, refreshRate)
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Tear down the virtual display and restore physical outputs",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := setup()
		if err != nil {
			return err
		}
		return mgr.Disconnect()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session state and connector topology",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := setup()
		if err != nil {
			return err
		}
		return printStatus(mgr)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vdisplay v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/vdisplay/vdisplay.yaml)")

	connectCmd.Flags().IntVar(&width, "width", 0, "display width in pixels")
	connectCmd.Flags().IntVar(&height, "height", 0, "display height in pixels")
	connectCmd.Flags().IntVar(&refreshRate, "refresh-rate", 60, "refresh rate in Hz")
	connectCmd.MarkFlagRequired("width")
	connectCmd.MarkFlagRequired("height")

	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads config, initializes logging, and wires the display manager.
func setup() (*display.Manager, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.LogWarnings(cfg.Validate())

	var out io.Writer
	if cfg.LogFile != "" {
		fw, err := logging.NewFileWriter(cfg.LogFile, 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "falling back to stderr logging: %v\n", err)
		} else {
			out = fw
		}
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, out)

	if !privilege.IsElevated() {
		logging.L("main").Warn("not running as root, connector writes will likely be rejected")
	}

	return display.NewManager(cfg), nil
}

func printStatus(mgr *display.Manager) error {
	state, topo, err := mgr.Status()
	if err != nil {
		return err
	}

	if info, err := host.Info(); err == nil {
		fmt.Printf("Host: %s (%s %s, kernel %s)\n", info.Hostname, info.Platform, info.PlatformVersion, info.KernelVersion)
	}

	if state == nil {
		fmt.Println("Session: none")
	} else {
		fmt.Printf("Session: %s\n", state.SessionID)
		fmt.Printf("  Virtual display: %s-%s at %dx%d@%dHz (since %s)\n",
			state.Card, state.VirtualConnector, state.Width, state.Height, state.RefreshHz,
			state.CreatedAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Printf("  Displaced outputs: %v\n", state.RestoredConnectors)
	}

	fmt.Printf("Connectors on %s:\n", topo.Card)
	for _, c := range topo.Connectors {
		fmt.Printf("  %-12s %-12s connected=%-5v enabled=%v\n", c.ID, c.Kind, c.Connected, c.Enabled)
	}

	return nil
}
