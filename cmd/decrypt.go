package cmd

import (
	"database/sql"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
	_ "modernc.org/sqlite"

	"github.com/charsi/signalbackup-tools/backup"
	"github.com/charsi/signalbackup-tools/dbreplay"
)

// Decrypt fulfills the `decrypt` subcommand.
var Decrypt = cli.Command{
	Name:               "decrypt",
	Usage:              "Decrypt the backup file",
	UsageText:          "Parse and extract the contents of the backup file into a sqlite3 database file.",
	CustomHelpTemplate: SubcommandHelp,
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:  "output, o",
			Usage: "write decrypted database to `FILE`",
			Value: "backup.db",
		},
	}, coreFlags...),
	Action: func(c *cli.Context) error {
		s, err := setup(c)
		if err != nil {
			return err
		}

		fileName := c.String("output")
		log.Printf("Begin decrypt into %s", fileName)

		if err = os.Remove(fileName); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "creating fresh database")
		}

		db, err := sql.Open("sqlite", fileName)
		if err != nil {
			return errors.Wrap(err, "cannot create database file")
		}
		defer db.Close()

		return WriteDatabase(s, db)
	},
}

// WriteDatabase replays every SqlStatement frame of the backup against db,
// streaming past (and discarding) any attachment blobs a frame announces
// along the way, so the source position stays correct for the frame that
// follows.
func WriteDatabase(s *backup.Session, db *sql.DB) error {
	section := make(map[string]bool)

	for {
		frame, err := s.Next()
		if err == backup.ErrEndOfStream {
			break
		}
		if err != nil {
			return err
		}
		if frame.Invalid {
			log.Printf("*** Skipping invalid frame at %d", frame.Position)
			continue
		}

		if frame.Attachment != nil {
			if err := frame.Attachment.Decrypt(s.Source(), ioutil.Discard); err != nil {
				return errors.Wrap(err, "attachment stream-over")
			}
		}

		stmt := frame.Payload.GetStatement()
		if stmt == nil {
			continue
		}

		sql := stmt.GetStatement()
		params := make([]interface{}, len(stmt.GetParameters()))

		if strings.HasPrefix(sql, "CREATE TABLE ") {
			a := strings.SplitN(sql, " ", 4)
			table := dbreplay.Unwrap(a[2], `""`)
			if strings.HasPrefix(table, "sqlite_") {
				log.Printf("*** Skipping RESERVED table name %s", table)
				continue
			}
		} else if strings.HasPrefix(sql, "INSERT INTO ") {
			a := strings.SplitN(sql, " ", 4)
			table := dbreplay.Unwrap(a[2], `""`)
			if _, found := section[table]; !found {
				section[table] = true
				log.Printf("Populating table %s ...", table)
			}
			for i, v := range stmt.GetParameters() {
				params[i] = dbreplay.ParameterValue(v, dbreplay.ColumnNone)
			}
		}

		if _, err := db.Exec(sql, params...); err != nil {
			detail := fmt.Sprintf("%s\n%v\nSQL Exec", sql, params)
			return errors.Wrap(err, detail)
		}
	}

	log.Println("Done!")
	return nil
}
