package cmd

import (
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/charsi/signalbackup-tools/backup"
)

// Analyse fulfils the `analyse` subcommand.
var Analyse = cli.Command{
	Name:               "analyse",
	Aliases:            []string{"analyze"},
	Usage:              "Report information about the backup file",
	Description:        "Perform integrity check and password validation on the entire file. \nOptionally display statistical information.",
	CustomHelpTemplate: SubcommandHelp,
	ArgsUsage:          "BACKUPFILE",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{
			Name:  "summary, s",
			Usage: "Count each type of frame in the file",
		},
		&cli.BoolFlag{
			Name:  "frames, f",
			Usage: "Report header info for every frame",
		},
		&cli.BoolFlag{
			Name:  "body, b",
			Usage: "Show frame body for every frame (very verbose!)",
		},
	}, coreFlags...),
	Action: func(c *cli.Context) error {
		s, err := setup(c)
		if err != nil {
			return err
		}

		fmt.Println("Analysing...")
		counts, err := AnalyseFile(s, c)
		if err != nil {
			return errors.WithMessage(err, "failed to analyse file")
		}
		fmt.Println("Password valid, file OK")

		if c.Bool("summary") {
			for key, count := range counts {
				fmt.Printf("%v: %v\n", key, count)
			}
		}

		return nil
	},
}

// AnalyseFile tabulates the frequency of every frame type in the backup,
// and the total size of attachment-bearing payloads as it streams over
// them, without ever writing their decrypted plaintext anywhere.
func AnalyseFile(s *backup.Session, c *cli.Context) (map[string]int, error) {
	defer func() {
		if r := recover(); r != nil {
			log.Println("Panicked during analysis:", r)
		}
	}()

	counts := make(map[string]int)
	var invalid, badMac int
	var attachmentBytes uint64

	frameNumber := 0
	for {
		frame, err := s.Next()
		if err == backup.ErrEndOfStream {
			break
		}
		if err != nil {
			return counts, err
		}
		frameNumber++

		typ := frame.Type()
		counts[typ.String()]++
		if frame.Invalid {
			invalid++
		}
		if frame.BadMac {
			badMac++
		}

		desc := fmt.Sprintf("%012X: FRAME %d %s", frame.Position, frameNumber, typ)

		switch payload := frame.Payload; {
		case payload == nil:
			// Invalid frame that failed to decode at all.
		case payload.GetHeader() != nil:
			hdr := payload.GetHeader()
			desc += fmt.Sprintf(" <version:%d iv:%x salt:%x>", hdr.GetVersion(), hdr.GetIv(), hdr.GetSalt())
		case payload.GetStatement() != nil:
			stmt := payload.GetStatement().GetStatement()
			fields := strings.SplitN(stmt, " ", 3)
			desc += fmt.Sprintf(" stmt:%v", fields)
		case payload.GetPreference() != nil:
			desc += fmt.Sprintf(" pref[%s]", payload.GetPreference().GetKey())
		case payload.GetKeyValue() != nil:
			desc += fmt.Sprintf(" keyvalue[%v]", payload.GetKeyValue().GetKey())
		}

		if frame.Attachment != nil {
			attachmentBytes += uint64(frame.Attachment.Size())
			if err := frame.Attachment.Decrypt(s.Source(), io.Writer(ioutil.Discard)); err != nil {
				return counts, errors.Wrap(err, "attachment stream-over")
			}
		}

		if c.Bool("frames") {
			fmt.Println(desc)
		}
		if c.Bool("body") {
			fmt.Printf("%+v\n", frame.Payload)
		}
	}

	if c.Bool("summary") {
		counts["_invalid"] = invalid
		counts["_bad_mac"] = badMac
		fmt.Printf("total attachment bytes: %s\n", humanize.Bytes(attachmentBytes))
	}

	return counts, nil
}
