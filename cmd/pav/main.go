package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"pav-go/internal/app"
	"pav-go/internal/config"
	"pav-go/internal/model"
	"pav-go/internal/pav"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a PAVApp. The caller must defer app.Close().
func newApp() (*app.PAVApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewPAVApp(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "pav",
	Short: "Record vehicle arrivals, processing and exits at logistics centers",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		// Generate a new device ID
		deviceID := uuid.New().String()

		cfg := config.NewConfig(deviceID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Device ID: %s\n", deviceID)
		fmt.Printf("Base Dir:  %s\n", defaults["base_dir"])
		fmt.Println("Edit center_id, agent_id and the [sink] section before first use.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Device ID: %s\n", cfg.DeviceID)
		fmt.Printf("Center ID: %s\n", cfg.CenterID)
		fmt.Printf("Agent ID:  %s\n", cfg.AgentID)
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Sink:      %s\n", cfg.Sink.Type)
		return nil
	},
}

var configThemeCmd = &cobra.Command{
	Use:   "theme [light|dark|system]",
	Short: "View or set the display theme preference",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 0 {
			theme, err := a.Theme()
			if err != nil {
				return err
			}
			if theme == "" {
				theme = "system"
			}
			fmt.Printf("Theme: %s\n", theme)
			return nil
		}

		if err := a.SetTheme(args[0]); err != nil {
			return err
		}
		fmt.Printf("Theme set to %s\n", args[0])
		return nil
	},
}

// arrive command
var arriveCmd = &cobra.Command{
	Use:   "arrive PAYLOAD",
	Short: "Record a vehicle arrival from a scanned QR payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		operation, _ := cmd.Flags().GetString("operation")
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")
		gpsDevice, _ := cmd.Flags().GetString("gps-device")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.RecordArrival(app.ArrivalInput{
			QRPayload:     args[0],
			OperationType: operation,
			Latitude:      lat,
			Longitude:     lon,
			Accuracy:      accuracyFlag(cmd),
			GPSDevice:     gpsDevice,
		})
		if err != nil {
			var awaiting *pav.AwaitingExitError
			if errors.As(err, &awaiting) {
				fmt.Printf("Vehicle %s is awaiting exit (visit %s).\n", awaiting.Record.VehicleID, awaiting.Record.ID)
				fmt.Printf("Record the exit instead: pav exit %s --type ... --lat ... --lon ...\n", awaiting.Record.ID)
				return err
			}
			return err
		}

		fmt.Printf("Arrival recorded: %s (vehicle %s, %s)\n", rec.ID, rec.VehicleID, rec.OperationType)

		if !a.Online() {
			fmt.Println("Saved offline. Records will sync when connectivity returns.")
			return nil
		}
		if n := a.Sync(); n > 0 {
			fmt.Printf("Synced %d record(s)\n", n)
		}
		return nil
	},
}

// ready command
var readyCmd = &cobra.Command{
	Use:   "ready ID",
	Short: "Mark a visit as processed and ready to exit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		endTime, _ := cmd.Flags().GetInt64("end-time")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.MarkReadyToExit(args[0], endTime); err != nil {
			return err
		}

		fmt.Printf("Visit %s is ready to exit\n", args[0])
		return nil
	},
}

// exit command
var exitCmd = &cobra.Command{
	Use:   "exit ID",
	Short: "Record a vehicle exit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exitType, _ := cmd.Flags().GetString("type")
		destination, _ := cmd.Flags().GetString("destination")
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")
		gpsDevice, _ := cmd.Flags().GetString("gps-device")

		// A loaded exit needs a destination; ask for it when the agent is
		// at a terminal rather than failing outright.
		if exitType == string(model.ExitLoaded) && destination == "" && term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Print("Destination for loaded exit: ")
			var line string
			fmt.Scanln(&line)
			destination = strings.TrimSpace(line)
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RecordExit(args[0], app.ExitInput{
			ExitType:    exitType,
			Destination: destination,
			Latitude:    lat,
			Longitude:   lon,
			Accuracy:    accuracyFlag(cmd),
			GPSDevice:   gpsDevice,
		}); err != nil {
			return err
		}

		fmt.Printf("Exit recorded for visit %s\n", args[0])

		if a.Online() {
			if n := a.Sync(); n > 0 {
				fmt.Printf("Synced %d record(s)\n", n)
			}
		}
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded visits, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		unsyncedOnly, _ := cmd.Flags().GetBool("unsynced")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var recs []*model.ArrivalRecord
		if unsyncedOnly {
			recs, err = a.ListUnsynced()
		} else {
			recs, err = a.ListArrivals()
		}
		if err != nil {
			return err
		}

		if len(recs) == 0 {
			fmt.Println("No visits recorded.")
			return nil
		}

		for _, r := range recs {
			syncMark := " "
			if !r.Synced {
				syncMark = "*"
			}
			fmt.Printf("%s %-15s %-13s %-10s %s\n",
				syncMark, r.VehicleID, r.Status, r.OperationType,
				time.UnixMilli(r.ScanTimestamp).Format("2006-01-02 15:04:05"))
		}
		fmt.Println("\n* = not yet synced")
		return nil
	},
}

// show command
var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "View one visit in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		r, err := a.GetArrival(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Visit:      %s\n", r.ID)
		fmt.Printf("Vehicle:    %s\n", r.VehicleID)
		fmt.Printf("Center:     %s\n", r.CenterID)
		fmt.Printf("Agent:      %s\n", r.AgentID)
		fmt.Printf("Operation:  %s\n", r.OperationType)
		fmt.Printf("Status:     %s\n", r.Status)
		fmt.Printf("Scanned:    %s\n", time.UnixMilli(r.ScanTimestamp).Format(time.RFC3339))
		fmt.Printf("Agent GPS:  %.6f, %.6f\n", r.AgentLatitude, r.AgentLongitude)
		if r.VehicleGPSDevice != "" {
			fmt.Printf("GPS device: %s\n", r.VehicleGPSDevice)
		}
		if r.ProcessingEndTime != nil {
			fmt.Printf("Processed:  %s\n", time.UnixMilli(*r.ProcessingEndTime).Format(time.RFC3339))
		}
		if r.ExitTime != nil {
			fmt.Printf("Exited:     %s (%s)\n", time.UnixMilli(*r.ExitTime).Format(time.RFC3339), r.ExitType)
			if r.ExitDestination != "" {
				fmt.Printf("Destination: %s\n", r.ExitDestination)
			}
		}
		fmt.Printf("Synced:     %v\n", r.Synced)
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push pending records to the collector",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.Online() {
			fmt.Println("Offline; nothing synced.")
			return nil
		}

		n := a.Sync()
		fmt.Printf("Synced %d record(s)\n", n)
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write an encrypted backup of the local database",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		path, err := a.Backup()
		if err != nil {
			return err
		}

		fmt.Printf("Backup written to %s\n", path)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage backup encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the backup encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := readPassphrase()
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SetupKeys(passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Println("Backup keys generated.")
		return nil
	},
}

// readPassphrase prompts for a passphrase twice and checks the entries match.
func readPassphrase() (string, error) {
	fmt.Print("Passphrase: ")
	first, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}

	fmt.Print("Confirm passphrase: ")
	second, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passphrases do not match")
	}
	if len(first) == 0 {
		return "", fmt.Errorf("passphrase must not be empty")
	}
	return string(first), nil
}

// accuracyFlag returns the accuracy flag value, or nil when not given.
func accuracyFlag(cmd *cobra.Command) *float64 {
	if !cmd.Flags().Changed("accuracy") {
		return nil
	}
	v, _ := cmd.Flags().GetFloat64("accuracy")
	return &v
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configThemeCmd)
	rootCmd.AddCommand(configCmd)

	arriveCmd.Flags().String("operation", "", "operation type: loading or unloading")
	arriveCmd.Flags().Float64("lat", 0, "agent latitude")
	arriveCmd.Flags().Float64("lon", 0, "agent longitude")
	arriveCmd.Flags().Float64("accuracy", 0, "GPS accuracy in meters")
	arriveCmd.Flags().String("gps-device", "", "vehicle GPS device id (overrides QR payload)")
	arriveCmd.MarkFlagRequired("operation")
	arriveCmd.MarkFlagRequired("lat")
	arriveCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(arriveCmd)

	readyCmd.Flags().Int64("end-time", 0, "processing end time (epoch millis, defaults to now)")
	rootCmd.AddCommand(readyCmd)

	exitCmd.Flags().String("type", "", "exit type: loaded or unloaded")
	exitCmd.Flags().String("destination", "", "destination (required for loaded exits)")
	exitCmd.Flags().Float64("lat", 0, "agent latitude")
	exitCmd.Flags().Float64("lon", 0, "agent longitude")
	exitCmd.Flags().Float64("accuracy", 0, "GPS accuracy in meters")
	exitCmd.Flags().String("gps-device", "", "vehicle GPS device id")
	exitCmd.MarkFlagRequired("type")
	exitCmd.MarkFlagRequired("lat")
	exitCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(exitCmd)

	listCmd.Flags().Bool("unsynced", false, "only show records not yet synced")
	rootCmd.AddCommand(listCmd)

	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(backupCmd)

	keysCmd.AddCommand(keysInitCmd)
	rootCmd.AddCommand(keysCmd)
}
