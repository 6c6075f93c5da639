package cli

import (
	"github.com/spf13/cobra"
)

// GlobalFlags holds global flag values
type GlobalFlags struct {
	ConfigFile string
	Verbose    bool
	Quiet      bool
	NoColor    bool
}

var globalFlags GlobalFlags

// AddGlobalFlags adds global flags to the root command
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&globalFlags.ConfigFile,
		"config",
		"",
		"config file (default is $HOME/.config/treewarden/config.yaml)",
	)
	cmd.PersistentFlags().BoolVarP(
		&globalFlags.Verbose,
		"verbose",
		"v",
		false,
		"verbose output",
	)
	cmd.PersistentFlags().BoolVarP(
		&globalFlags.Quiet,
		"quiet",
		"q",
		false,
		"suppress non-error output",
	)
	cmd.PersistentFlags().BoolVar(
		&globalFlags.NoColor,
		"no-color",
		false,
		"disable colored output",
	)
}

// PassFlags holds the flags shared by the backup and audit commands
type PassFlags struct {
	Threads        int
	Delay          string
	Output         string
	Report         string
	ReportFormat   string
	Extensions     []string
	ExtensionsFile string
	History        bool
	// Logging flags
	LogFile   string
	LogFormat string
	LogLevel  string
}

// addPassFlags registers the shared pass flags. Zero values leave the
// configuration untouched.
func addPassFlags(cmd *cobra.Command, f *PassFlags) {
	cmd.Flags().IntVarP(&f.Threads, "threads", "t", 0, "number of workers, 1-16 (default from config: 4)")
	cmd.Flags().StringVar(&f.Delay, "delay", "", "repeat the pass on this period, e.g. \"100\", \"15m\", \"7h\"")
	cmd.Flags().StringVarP(&f.Output, "output", "o", "", "output format: human, json")
	cmd.Flags().StringVar(&f.Report, "report", "", "write the pass report to file (\".gz\" compresses it)")
	cmd.Flags().StringVar(&f.ReportFormat, "report-format", "human", "report format: human, json")
	cmd.Flags().StringSliceVarP(&f.Extensions, "extensions", "e", nil, "extension allow-list, or \"all\"")
	cmd.Flags().StringVar(&f.ExtensionsFile, "extensions-file", "", "file with one extension per line")
	cmd.Flags().BoolVar(&f.History, "history", false, "record the pass in the history database")

	// Logging flags
	cmd.Flags().StringVar(&f.LogFile, "log-file", "", "write logs to file (enables logging)")
	cmd.Flags().StringVar(&f.LogFormat, "log-format", "", "log format: text, json")
	cmd.Flags().StringVar(&f.LogLevel, "log-level", "", "log level: debug, info, warn, error")
}
