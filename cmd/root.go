package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/inconshreveable/log15"
	"github.com/klauspost/pgzip"
	"github.com/spf13/cobra"
)

// appLogger is used for logging events in our commands.
var appLogger = log15.New()

// options for all commands.
var logFile string

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "library-exports",
	Short: "library-exports relays print files and builds zip and xlsx exports",
	Long: `library-exports relays print files and builds zip and xlsx exports.

Use the server sub-command to run the print session web server, or the zip and
xlsx sub-commands to build archives and spreadsheets from local files.
`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if logFile != "" {
			logToFile(logFile)
		}
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen once to
// the rootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		die(err)
	}
}

func init() {
	// set up logging to stderr
	setLogHandler(log15.LvlFilterHandler(log15.LvlInfo, log15.StderrHandler))

	RootCmd.PersistentFlags().StringVar(&logFile, "log", "", "log to the given file instead of stderr")
}

func setLogHandler(h log15.Handler) {
	appLogger.SetHandler(h)
	log15.Root().SetHandler(h)
}

// logToFile logs to the given file.
func logToFile(path string) {
	fh, err := log15.FileHandler(path, log15.LogfmtFormat())
	if err != nil {
		fh = log15.StderrHandler

		warn("can't write to log file; logging to stderr instead (%s)", err)
	}

	setLogHandler(fh)
}

// checkEnvVarFlags sets each named flag that was not given on the command line
// from its environment variable, if that is set.
func checkEnvVarFlags(cmd *cobra.Command, envMap map[string]string) error {
	for env, flag := range envMap {
		if cmd.Flags().Changed(flag) {
			continue
		}

		val, ok := os.LookupEnv(env)
		if !ok || val == "" {
			continue
		}

		if err := cmd.Flags().Set(flag, val); err != nil {
			return fmt.Errorf("invalid value in $%s: %w", env, err)
		}
	}

	return nil
}

type gzipFile struct {
	*pgzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	err := g.Reader.Close()

	if errc := g.f.Close(); err == nil {
		err = errc
	}

	return err
}

// openInput opens the given file for reading, decompressing it if the name
// ends in .gz.
func openInput(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}

	r, err := pgzip.NewReader(f)
	if err != nil {
		f.Close()

		return nil, fmt.Errorf("error decompressing %s: %w", path, err)
	}

	return &gzipFile{Reader: r, f: f}, nil
}

// cliPrintf outputs the message to STDOUT.
func cliPrintf(msg string, a ...interface{}) {
	fmt.Fprintf(os.Stdout, msg, a...)
}

// info is a convenience to log a message at the Info level.
func info(msg string, a ...interface{}) {
	appLogger.Info(fmt.Sprintf(msg, a...))
}

// warn is a convenience to log a message at the Warn level.
func warn(msg string, a ...interface{}) {
	appLogger.Warn(fmt.Sprintf(msg, a...))
}

// die is a convenience to log a message at the Error level and exit non zero.
func die(err error) {
	appLogger.Error(err.Error())
	os.Exit(1)
}
