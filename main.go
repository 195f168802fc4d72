package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
	"github.com/charsi/signalbackup-tools/cmd"
	_ "modernc.org/sqlite"
)

var version = "devel"
var appname = "signalbackup-tools"

func main() {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Printf("signalbackup-tools %s\n", version)
	}

	app := cli.NewApp()
	app.CustomAppHelpTemplate = cmd.AppHelp
	app.Usage = "decrypt, inspect, and recover the contents of encrypted messenger backup files"
	app.Name = appname
	app.Version = version
	app.Commands = []cli.Command{
		cmd.Analyse,
		cmd.Decrypt,
		cmd.Extract,
		cmd.Resync,
	}
	app.ArgsUsage = "BACKUPFILE"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "help, h",
			Usage: "show help",
		},
	}
	app.Action = func(c *cli.Context) error {
		return cli.ShowAppHelp(c)
	}
	// app.Action = cli.ActionFunc(func(c *cli.Context) error {
	// 	// -- Logging

	// 	if c.String("log") != "" {
	// 		f, err := os.OpenFile(c.String("log"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	// 		if err != nil {
	// 			return errors.Wrap(err, "unable to create logging file")
	// 		}
	// 		logger = f
	// 	} else {
	// 		logger = os.Stderr
	// 	}
	// 	return nil
	// })

	if err := app.Run(os.Args); err != nil {
		// log.Fatalln(err)
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
