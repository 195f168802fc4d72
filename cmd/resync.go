package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/charsi/signalbackup-tools/backup"
)

// Resync fulfils the `resync` subcommand: read forward until an invalid
// frame or bad MAC is hit, then try to recover using counter-drift search,
// reporting what it found instead of applying it silently.
var Resync = cli.Command{
	Name:               "resync",
	Usage:              "Probe a corrupted backup for a recovery offset",
	UsageText:          "Stream the backup until the first invalid frame, then search nearby counter values for a valid one.",
	CustomHelpTemplate: SubcommandHelp,
	ArgsUsage:          "BACKUPFILE",
	Flags: append([]cli.Flag{
		&cli.IntFlag{
			Name:  "max-attempts",
			Usage: "bound the counter-drift search (0 = default 1,000,000)",
		},
	}, coreFlags...),
	Action: func(c *cli.Context) error {
		s, err := setup(c)
		if err != nil {
			return err
		}

		for {
			frame, err := s.Next()
			if err == backup.ErrEndOfStream {
				fmt.Println("reached end of stream without finding a broken frame")
				return nil
			}
			if err != nil {
				return errors.Wrap(err, "fatal error before any resync was attempted")
			}
			if !frame.Invalid && !frame.BadMac {
				continue
			}

			fmt.Printf("frame %d at offset %012X did not parse (bad_mac=%v); rewinding and searching\n",
				frame.Number, frame.Position, frame.BadMac)

			if err := s.Source().SeekAbsolute(frame.Position); err != nil {
				return errors.Wrap(err, "rewind")
			}

			k, recovered, err := s.ResyncCounterDrift(c.Int("max-attempts"))
			if err != nil {
				return errors.Wrap(err, "counter-drift resync failed")
			}
			fmt.Printf("recovered at counter offset k=%d: frame type %s\n", k, recovered.Type())
			return nil
		}
	},
}
