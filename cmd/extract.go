package cmd

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"strings"
	"time"

	"github.com/h2non/filetype"
	filetype_types "github.com/h2non/filetype/types"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	_ "modernc.org/sqlite"

	"github.com/charsi/signalbackup-tools/backup"
	"github.com/charsi/signalbackup-tools/dbreplay"
	"github.com/charsi/signalbackup-tools/frames"
)

var filenameDB = "signal.db"
var FolderAttachment = "Attachments"
var FolderAvatar = "Avatars"
var FolderSticker = "Stickers"
var FolderSettings = "Settings"
var stickerInfoFilename = "pack_info.json"

// Extract fulfils the `extract` subcommand.
var Extract = cli.Command{
	Name:               "extract",
	Usage:              "Decrypt contents into individual files",
	UsageText:          "Decrypt the backup and extract all files inside it.",
	CustomHelpTemplate: SubcommandHelp,
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:  "outdir, o",
			Usage: "output files to `DIRECTORY` (default current directory)",
		},
		&cli.BoolFlag{
			Name:  "attachments",
			Usage: "Skip extracting attachments",
		},
		&cli.BoolFlag{
			Name:  "avatars",
			Usage: "Skip extracting avatars",
		},
		&cli.BoolFlag{
			Name:  "stickers",
			Usage: "Skip extracting stickers",
		},
		&cli.BoolFlag{
			Name:  "settings",
			Usage: "Skip extracting settings",
		},
		&cli.BoolFlag{
			Name:  "database",
			Usage: "Skip extracting database",
		},
	}, coreFlags...),
	Action: func(c *cli.Context) error {
		s, err := setup(c)
		if err != nil {
			return err
		}

		basePath := c.String("outdir")

		if basePath != "" {
			if err := os.MkdirAll(basePath, 0755); err != nil {
				return errors.Wrap(err, "unable to create output directory")
			}
		}
		if !c.Bool("attachments") {
			if err := os.MkdirAll(path.Join(basePath, FolderAttachment), 0755); err != nil {
				return errors.Wrap(err, "unable to create attachment directory")
			}
		}
		if !c.Bool("avatars") {
			if err := os.MkdirAll(path.Join(basePath, FolderAvatar), 0755); err != nil {
				return errors.Wrap(err, "unable to create avatar directory")
			}
		}
		if !c.Bool("stickers") {
			if err := os.MkdirAll(path.Join(basePath, FolderSticker), 0755); err != nil {
				return errors.Wrap(err, "unable to create sticker directory")
			}
		}
		if !c.Bool("settings") {
			if err := os.MkdirAll(path.Join(basePath, FolderSettings), 0755); err != nil {
				return errors.Wrap(err, "unable to create settings directory")
			}
		}
		if err = ExtractFiles(s, c, basePath); err != nil {
			return errors.Wrap(err, "failed to extract attachment")
		}

		return nil
	},
}

type attachmentInfo struct {
	msg  int64
	mime *string
	size int64
	name *string
}

type avatarInfo struct {
	DisplayName *string
	ProfileName *string
	fetchTime   int64
}

type stickerInfo struct {
	Pack_id    string
	Title      string
	Author     string
	size       int64
	sticker_id int64
	cover      bool
}

func createDB(fileName string) (db *sql.DB, err error) {
	log.Printf("Begin decrypt into %s", fileName)

	if err := os.Remove(fileName); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "creating fresh database")
	}

	db, err = sql.Open("sqlite", fileName)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create database file")
	}

	return db, nil
}

// ExtractFiles consumes every frame of the backup, replaying SqlStatement
// frames into a sqlite3 database and dispatching attachment/avatar/sticker
// blobs and shared-preference entries to individual files.
func ExtractFiles(s *backup.Session, c *cli.Context, base string) error {
	defer func() {
		if r := recover(); r != nil {
			log.Println("Panicked during extraction:", r)
		}
	}()

	var db *sql.DB
	var err error
	if !c.Bool("database") {
		db, err = createDB(path.Join(base, filenameDB))
		if err != nil {
			return err
		}
		defer db.Close()
	}

	var (
		schema      = make(map[string]*dbreplay.Schema)
		section     = make(map[string]bool)
		attachments = make(map[int64]attachmentInfo)
		avatars     = make(map[string]avatarInfo)
		stickers    = make(map[int64]stickerInfo)
		prefs       = make(map[string]map[string]interface{})
	)

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
		payload := frame.Payload

		if stmt := payload.GetStatement(); stmt != nil {
			if err := replayStatement(db, c, stmt, schema, section, attachments, avatars, stickers); err != nil {
				return err
			}
		}

		if !c.Bool("attachments") {
			if a := payload.GetAttachment(); a != nil && frame.Attachment != nil {
				if err := extractAttachment(s, frame, a, base, attachments); err != nil {
					return errors.Wrap(err, "attachment")
				}
				continue
			}
		}
		if !c.Bool("avatars") {
			if a := payload.GetAvatar(); a != nil && frame.Attachment != nil {
				if err := extractAvatar(s, frame, a, base, avatars); err != nil {
					return errors.Wrap(err, "avatar")
				}
				continue
			}
		}
		if !c.Bool("stickers") {
			if a := payload.GetSticker(); a != nil && frame.Attachment != nil {
				if err := extractSticker(s, frame, a, base, stickers); err != nil {
					return errors.Wrap(err, "sticker")
				}
				continue
			}
		}
		if !c.Bool("settings") {
			if p := payload.GetPreference(); p != nil {
				extractPreference(p, prefs)
			}
			if kv := payload.GetKeyValue(); kv != nil {
				extractKeyValue(kv, prefs)
			}
		}

		if frame.Attachment != nil {
			// Blob type was excluded above by flag; stream over it anyway
			// so the source position stays correct for the next frame.
			if err := frame.Attachment.Decrypt(s.Source(), io.Discard); err != nil {
				return errors.Wrap(err, "attachment stream-over")
			}
		}
	}

	for fileName, kv := range prefs {
		pathName := path.Join(base, FolderSettings, fileName+".json")
		if err := writeJson(pathName, kv); err != nil {
			return errors.Wrap(err, "settings")
		}
	}

	log.Println("Done!")
	return nil
}

func replayStatement(
	db *sql.DB, c *cli.Context, s *frames.SqlStatement,
	schema map[string]*dbreplay.Schema, section map[string]bool,
	attachments map[int64]attachmentInfo, avatars map[string]avatarInfo, stickers map[int64]stickerInfo,
) error {
	stmt := s.GetStatement()
	param := make([]interface{}, len(s.GetParameters()))

	if strings.HasPrefix(stmt, "CREATE TABLE ") {
		a := strings.SplitN(stmt, " ", 4)
		table := dbreplay.Unwrap(a[2], `""`)

		if strings.HasPrefix(table, "sqlite_") {
			if !c.Bool("database") {
				log.Printf("*** Skipping RESERVED table name %s", table)
			}
			return nil
		}
		schema[table] = dbreplay.NewSchema(a[3])

	} else if strings.HasPrefix(stmt, "INSERT INTO ") {
		a := strings.SplitN(stmt, " ", 4)
		table := dbreplay.Unwrap(a[2], `""`)

		if !c.Bool("database") {
			if _, found := section[table]; !found {
				section[table] = true
				log.Printf("Populating table `%s` ...", table)
			}
		}

		sch := schema[table]
		ps := s.GetParameters()
		if sch != nil {
			switch table {
			case "part":
				attachments[mustInt64(sch.Field(ps, "unique_id"))] = attachmentInfo{
					msg:  mustInt64(sch.Field(ps, "mid")),
					mime: asStringPtr(sch.Field(ps, "ct")),
					size: mustInt64(sch.Field(ps, "data_size")),
					name: asStringPtr(sch.Field(ps, "file_name")),
				}
			case "recipient":
				id := mustInt64(sch.Field(ps, "_id"))
				avatars[fmt.Sprintf("%d", id)] = avatarInfo{
					DisplayName: asStringPtr(sch.Field(ps, "system_display_name")),
					ProfileName: asStringPtr(sch.Field(ps, "signal_profile_name")),
					fetchTime:   mustInt64(sch.Field(ps, "last_profile_fetch")),
				}
			case "sticker":
				stickers[mustInt64(sch.Field(ps, "_id"))] = stickerInfo{
					Pack_id:    mustString(sch.Field(ps, "pack_id")),
					Title:      mustString(sch.Field(ps, "pack_title")),
					Author:     mustString(sch.Field(ps, "pack_author")),
					size:       mustInt64(sch.Field(ps, "file_length")),
					sticker_id: mustInt64(sch.Field(ps, "sticker_id")),
					cover:      mustInt64(sch.Field(ps, "cover")) != 0,
				}
			}
			param = sch.RowValues(ps)
		}
	}

	if !c.Bool("database") && db != nil {
		if _, err := db.Exec(stmt, param...); err != nil {
			detail := fmt.Sprintf("%s\n%v\nSQL Exec", stmt, param)
			return errors.Wrap(err, detail)
		}
	}
	return nil
}

func extractAttachment(s *backup.Session, frame *backup.Frame, a *frames.Attachment, base string, attachments map[int64]attachmentInfo) error {
	id := int64(a.GetRowId())
	info, hasInfo := attachments[id]

	fileName := fmt.Sprintf("%v", id)
	mime := ""

	if !hasInfo {
		log.Printf("attachment `%v` has no associated SQL entry", id)
	} else {
		if info.size != int64(a.GetLength()) {
			log.Printf("attachment length (%d) mismatches SQL entry.size (%d)", a.GetLength(), info.size)
		}
		if info.name != nil {
			fileName += "." + *info.name
		}
		if info.mime != nil {
			mime = *info.mime
		} else {
			log.Printf("file `%v` has no declared MIME type", id)
		}
	}

	safeFileName := escapeFileName(fileName)
	pathName := path.Join(base, FolderAttachment, safeFileName)
	if err := writeAttachment(pathName, frame, s); err != nil {
		return err
	}
	newName, err := fixFileExtension(pathName, mime)
	if err != nil {
		return err
	}
	return setFileTimestamp(newName, id)
}

func extractAvatar(s *backup.Session, frame *backup.Frame, a *frames.Avatar, base string, avatars map[string]avatarInfo) error {
	id := a.GetName()
	info, hasInfo := avatars[id]

	fileName := fmt.Sprintf("%v", id)
	mtime := int64(0)

	if !hasInfo {
		log.Printf("avatar `%v` has no associated SQL entry", id)
	} else {
		if info.DisplayName != nil {
			fileName += fmt.Sprintf(" (%s)", *info.DisplayName)
		} else if info.ProfileName != nil {
			fileName += fmt.Sprintf(" (%s)", *info.ProfileName)
		}
		mtime = info.fetchTime
	}

	pathName := path.Join(base, FolderAvatar, fileName)
	if err := writeAttachment(pathName, frame, s); err != nil {
		return err
	}
	newName, err := fixFileExtension(pathName, "")
	if err != nil {
		return err
	}
	return setFileTimestamp(newName, mtime)
}

func extractSticker(s *backup.Session, frame *backup.Frame, a *frames.Sticker, base string, stickers map[int64]stickerInfo) error {
	id := int64(a.GetRowId())
	info, hasInfo := stickers[id]

	fileName := fmt.Sprintf("%v", id)
	packPath := path.Join(base, FolderSticker)

	if !hasInfo {
		log.Printf("sticker `%v` has no associated SQL entry", id)
	} else {
		if info.size != int64(a.GetLength()) {
			log.Printf("sticker length (%d) mismatches SQL entry.size (%d)", a.GetLength(), info.size)
		}
		fileName = fmt.Sprintf("%d", info.sticker_id)

		packPath = path.Join(packPath, info.Pack_id)
		if err := os.MkdirAll(packPath, 0755); err != nil {
			return errors.Wrap(err, "unable to create sticker pack directory: "+packPath)
		}

		infoPath := path.Join(packPath, stickerInfoFilename)
		if err := writeJson(infoPath, info); err != nil {
			return errors.Wrap(err, "sticker pack info")
		}
	}

	pathName := path.Join(packPath, fileName)
	if err := writeAttachment(pathName, frame, s); err != nil {
		return err
	}
	_, err := fixFileExtension(pathName, "")
	return err
}

func extractPreference(p *frames.SharedPreference, prefs map[string]map[string]interface{}) {
	file := p.GetFile()
	m, exist := prefs[file]
	if !exist {
		m = make(map[string]interface{})
		prefs[file] = m
	}
	key := p.GetKey()
	m[key] = p.GetValue()
}

func extractKeyValue(kv *frames.KeyValue, prefs map[string]map[string]interface{}) {
	file := "signal"
	m, exist := prefs[file]
	if !exist {
		m = make(map[string]interface{})
		prefs[file] = m
	}
	m[kv.GetKey()] = kv
}

func writeJson(pathName string, value interface{}) error {
	data, err := json.MarshalIndent(value, "", "\t")
	if err != nil {
		return errors.Wrap(err, "json marshal error")
	}
	return writeFile(pathName, func(file io.Writer) error {
		_, err := file.Write(data)
		return err
	})
}

func writeAttachment(pathName string, frame *backup.Frame, s *backup.Session) error {
	return writeFile(pathName, func(file io.Writer) error {
		return frame.Attachment.Decrypt(s.Source(), file)
	})
}

func writeFile(pathName string, write func(w io.Writer) error) error {
	file, err := os.OpenFile(pathName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.ModePerm)
	if err != nil {
		return errors.Wrap(err, "failed to create "+pathName)
	}
	defer file.Close()
	if err := write(file); err != nil {
		return errors.Wrap(err, "failed to write "+pathName)
	}
	if err = file.Close(); err != nil {
		return errors.Wrap(err, "failed to close "+pathName)
	}
	return nil
}

func setFileTimestamp(pathName string, milliseconds int64) error {
	if milliseconds != 0 {
		atime := time.UnixMilli(0)
		mtime := time.UnixMilli(milliseconds)

		if err := os.Chtimes(pathName, atime, mtime); err != nil {
			return errors.Wrap(err, "failed to change timestamp of attachment file")
		}
	}
	return nil
}

// escapeFileName converts illegal filename characters into url-style %XX
// substrings.
func escapeFileName(fileName string) string {
	const illegal = `<>:"/\|?*`
	s := ""
	for _, c := range fileName {
		if c < ' ' || strings.IndexRune(illegal, c) >= 0 {
			s += fmt.Sprintf("%%%02X", c)
		} else {
			s += string(c)
		}
	}
	return s
}

func fixFileExtension(pathName string, mimeType string) (string, error) {
	ext := ""
	if mimeType != "" {
		mimeExt, hasExt := GetExtension(mimeType)
		if hasExt {
			ext = mimeExt
		} else {
			log.Printf("mime type `%s` not recognised", mimeType)
		}
	}

	if kind, err := filetype.MatchFile(pathName); err != nil {
		log.Println("MatchFile:", err.Error())
	} else {
		if kind != filetype.Unknown {
			if ext != "" && (kind.MIME.Value != mimeType || kind.Extension != ext) {
				log.Printf("detected file type: %s (.%s)", kind.MIME.Value, kind.Extension)
				log.Printf("mismatches declared type: %s (.%s)", mimeType, ext)
			}
			ext = kind.Extension
		} else {
			log.Printf("unable to detect file type of %v", pathName)
		}
	}

	givenExt := path.Ext(pathName)
	if givenExt == ".jpeg" {
		givenExt = ".jpg"
	}
	if givenExt == "."+ext {
		ext = ""
	}

	newName := pathName
	if ext != "" {
		newName += "." + ext
		if err := os.Rename(pathName, newName); err != nil {
			return "", errors.Wrap(err, "change extension")
		}
	}
	return newName, nil
}

// GetExtension looks up the registered file extension for a MIME type;
// h2non/filetype doesn't expose this lookup directly, so it's modelled
// after filetype.IsMIMESupported's own internal range.
func GetExtension(mime string) (string, bool) {
	found := false
	ext := ""

	filetype.Types.Range(func(k, v interface{}) bool {
		kind := v.(filetype_types.Type)
		if kind.MIME.Value == mime {
			ext = kind.Extension
			found = true
		}
		return !found
	})

	return ext, found
}

func mustInt64(v interface{}) int64 {
	switch n := v.(type) {
	case *int64:
		if n == nil {
			return 0
		}
		return *n
	case int64:
		return n
	default:
		return 0
	}
}

func asStringPtr(v interface{}) *string {
	if s, ok := v.(*string); ok {
		return s
	}
	return nil
}

func mustString(v interface{}) string {
	if s, ok := v.(*string); ok && s != nil {
		return *s
	}
	return ""
}
