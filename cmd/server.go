/*******************************************************************************
 * Copyright (c) 2025 Genome Research Ltd.
 *
 * Authors:
 *	- Sky Haines <sh55@sanger.ac.uk>
 *
 * Permission is hereby granted, free of charge, to any person obtaining
 * a copy of this software and associated documentation files (the
 * "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish,
 * distribute, sublicense, and/or sell copies of the Software, and to
 * permit persons to whom the Software is furnished to do so, subject to
 * the following conditions:
 *
 * The above copyright notice and this permission notice shall be included
 * in all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
 * EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
 * MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
 * CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
 * TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 ******************************************************************************/

package cmd

import (
	"cmp"
	"errors"

	"github.com/spf13/cobra"
	"github.com/wtsi-hgi/library-exports/config"
	"github.com/wtsi-hgi/library-exports/db"
	"github.com/wtsi-hgi/library-exports/server"
)

var ErrNoConnection = errors.New("no database connection string given")

// options for this cmd.
var (
	serverListen     string
	serverConnection string
	serverConfig     string
)

// serverCmd represents the server command.
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the web server",
	Long: `Start the web server.

--connection should be a connection string for the print session database.

For sqlite, say:
  sqlite:/path/to/print.db

For mysql, say:
  mysql:user:password@tcp(host:port)/dbname

It is recommended to use the environment variable "LIBRARY_EXPORTS_CONNECTION"
for this to maintain password security. It can also be given in the config
file.

--config path to a YAML config file, see config.ParseConfig for its format.
--listen address to listen on, overriding the config file.
`,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		envMap := map[string]string{
			"LIBRARY_EXPORTS_CONNECTION": "connection",
		}

		return checkEnvVarFlags(cmd, envMap)
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg := config.Default()

		if serverConfig != "" {
			var err error

			if cfg, err = config.ParseConfig(serverConfig); err != nil {
				return err
			}

			defer cfg.Stop()
		}

		connection := cmp.Or(serverConnection, cfg.GetConnection())
		if connection == "" {
			return ErrNoConnection
		}

		d, err := db.Init(connection)
		if err != nil {
			return err
		}

		defer d.Close()

		info("print sessions last %s", cfg.GetSessionTTL())

		return server.Start(cmp.Or(serverListen, cfg.GetListen()), d, cfg, appLogger.New("pkg", "server"))
	},
}

func init() {
	RootCmd.AddCommand(serverCmd)

	// flags specific to this sub-command
	serverCmd.Flags().StringVarP(&serverListen, "listen", "l", "", "address to start server on, eg. :8080")
	serverCmd.Flags().StringVarP(&serverConnection, "connection", "d", "",
		"sql connection string for your print session database")
	serverCmd.Flags().StringVarP(&serverConfig, "config", "c", "", "path to YAML config file")
}
