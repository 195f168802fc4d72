package cmd

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/charsi/signalbackup-tools/backup"
	"github.com/charsi/signalbackup-tools/keys"
)

// AppHelp is the help template.
const AppHelp = `About:
  {{.Name}}{{if .Usage}}: {{.Usage}}{{end}}{{if .Version}}{{if not .HideVersion}}
  Version {{.Version}}{{end}}{{end}}

Usage: {{if .UsageText}}{{.UsageText}}{{else}}{{.HelpName}} COMMAND [OPTION...] {{.ArgsUsage}}{{end}}

  {{range .VisibleFlags}}{{.}}
  {{end}}{{if .VisibleCommands}}
Commands:
{{range .VisibleCommands}}  {{index .Names 0}}{{ "\t"}}{{.Usage}}
{{end}}{{end}}
`

// SubcommandHelp is the subcommand help template.
const SubcommandHelp = `Usage: {{if .UsageText}}{{.UsageText}}{{else}}{{.HelpName}} [OPTION...] {{.ArgsUsage}}{{end}}{{if .Description}}

{{.Description}}{{end}}{{if .VisibleFlags}}

  {{range .VisibleFlags}}{{.}}
  {{end}}{{end}}
`

var coreFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "password, p",
		Usage: "use `PASS` as password for backup file",
	},
	&cli.StringFlag{
		Name:  "pwdfile, P",
		Usage: "read password from `FILE`",
	},
	&cli.BoolFlag{
		Name:  "verbose, v",
		Usage: "enable verbose logging output",
	},
	&cli.BoolFlag{
		Name:  "stop-on-error",
		Usage: "abort on the first bad MAC instead of latching and continuing",
	},
	&cli.BoolFlag{
		Name:  "assume-bad-size",
		Usage: "tolerate a declared attachment size that runs past end of file",
	},
}

// setup opens the backup file named by the first CLI argument and returns a
// ready-to-stream Session: password resolved, keys derived, bootstrap
// header consumed.
func setup(c *cli.Context) (*backup.Session, error) {
	if c.Bool("verbose") {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(ioutil.Discard)
	}

	if c.Args().Get(0) == "" {
		return nil, errors.New("must specify a Signal backup file")
	}

	pass, err := readPassword(c)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read password")
	}

	src, err := backup.OpenFileSource(c.Args().Get(0))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open backup file")
	}

	s, err := backup.Open(src, keys.FromPassphrase(pass),
		backup.WithStopOnError(c.Bool("stop-on-error")),
		backup.WithAssumeBadSize(c.Bool("assume-bad-size")),
		backup.WithVerboseLog(c.Bool("verbose")),
	)
	if err != nil {
		src.Close()
		return nil, errors.Wrap(err, "failed to open backup session")
	}

	return s, nil
}

func readPassword(c *cli.Context) (string, error) {
	var pass string

	if c.String("password") != "" {
		pass = c.String("password")
	} else if c.String("pwdfile") != "" {
		bs, err := ioutil.ReadFile(c.String("pwdfile"))
		if err != nil {
			return "", errors.Wrap(err, "unable to read file")
		}
		pass = string(bs)
	} else {
		fmt.Fprint(os.Stderr, "Password: ")
		raw, err := terminal.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return "", errors.Wrap(err, "unable to read from stdin")
		}
		fmt.Fprint(os.Stderr, "\n")
		pass = string(raw)
	}
	return pass, nil
}
