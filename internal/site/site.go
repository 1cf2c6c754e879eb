// Package site renders the archive as a browsable static HTML site.
//
// Output layout:
//
//	<out>/index.html
//	<out>/chat/<external_id>.html
//	<out>/assets/style.css
//
// Pages are rebuilt from storage on every run; the output directory is
// wiped first so deleted chats cannot linger as stale pages.
package site

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chatvault/chatvault/internal/models"
)

//go:embed templates/*.tmpl assets/*
var siteFS embed.FS

// pageSize is how many chats are fetched from storage per batch.
const pageSize = 500

// ChatSource is the slice of storage the generator reads from.
type ChatSource interface {
	ListChats(ctx context.Context, limit, offset int) ([]models.StoredChat, error)
	GetChat(ctx context.Context, chatID int64) (*models.StoredChat, []models.StoredMessage, error)
}

// Generator renders the static site.
type Generator struct {
	chats ChatSource
	log   *logrus.Logger
	tmpl  *template.Template
}

// New creates a Generator. Fails if the embedded templates do not parse,
// which indicates a broken build rather than bad input.
func New(chats ChatSource, log *logrus.Logger) (*Generator, error) {
	tmpl, err := template.New("site").Funcs(template.FuncMap{
		"fmtTime": fmtTime,
	}).ParseFS(siteFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing site templates: %w", err)
	}

	return &Generator{chats: chats, log: log, tmpl: tmpl}, nil
}

// indexEntry is one row of the index page.
type indexEntry struct {
	Page       string
	Title      string
	CreateTime *time.Time
	Messages   int
}

// chatPage is the data for one chat page.
type chatPage struct {
	Chat     *models.StoredChat
	Messages []models.StoredMessage
}

// Generate renders the whole site into outDir. The directory is recreated
// from scratch.
func (g *Generator) Generate(ctx context.Context, outDir string) error {
	start := time.Now()

	if err := prepareOutputDir(outDir); err != nil {
		return err
	}

	if err := g.copyAssets(outDir); err != nil {
		return err
	}

	entries, err := g.renderChatPages(ctx, outDir)
	if err != nil {
		return err
	}

	if err := g.renderIndex(outDir, entries); err != nil {
		return err
	}

	g.log.WithFields(logrus.Fields{
		"chats":    len(entries),
		"out_dir":  outDir,
		"duration": time.Since(start),
	}).Info("static site generated")

	return nil
}

// renderChatPages walks storage page by page, writes one HTML file per chat,
// and returns the index entries in listing order.
func (g *Generator) renderChatPages(ctx context.Context, outDir string) ([]indexEntry, error) {
	chatDir := filepath.Join(outDir, "chat")
	if err := os.MkdirAll(chatDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", chatDir, err)
	}

	var entries []indexEntry

	for offset := 0; ; offset += pageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := g.chats.ListChats(ctx, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("listing chats at offset %d: %w", offset, err)
		}

		if len(page) == 0 {
			break
		}

		for i := range page {
			chat, msgs, err := g.chats.GetChat(ctx, page[i].ID)
			if err != nil {
				return nil, fmt.Errorf("loading chat %d: %w", page[i].ID, err)
			}

			name := pageFileName(chat)

			if err := g.renderChatPage(chatDir, name, chat, msgs); err != nil {
				return nil, err
			}

			entries = append(entries, indexEntry{
				Page:       name,
				Title:      chat.Title,
				CreateTime: chat.CreateTime,
				Messages:   len(msgs),
			})
		}
	}

	return entries, nil
}

// renderChatPage writes one chat page under the given file name.
func (g *Generator) renderChatPage(chatDir, name string, chat *models.StoredChat, msgs []models.StoredMessage) error {
	path := filepath.Join(chatDir, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	defer f.Close() //nolint:errcheck // error captured by Execute or the explicit Close below.

	if err := g.tmpl.ExecuteTemplate(f, "chat.html.tmpl", chatPage{Chat: chat, Messages: msgs}); err != nil {
		return fmt.Errorf("rendering chat %s: %w", chat.ExternalID, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	g.log.WithField("external_id", chat.ExternalID).Debug("chat page rendered")

	return nil
}

// renderIndex writes the archive index page.
func (g *Generator) renderIndex(outDir string, entries []indexEntry) error {
	path := filepath.Join(outDir, "index.html")

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	defer f.Close() //nolint:errcheck // error captured by Execute or the explicit Close below.

	data := struct {
		Title string
		Chats []indexEntry
	}{
		Title: "Chat Archive",
		Chats: entries,
	}

	if err := g.tmpl.ExecuteTemplate(f, "index.html.tmpl", data); err != nil {
		return fmt.Errorf("rendering index: %w", err)
	}

	return f.Close()
}

// copyAssets writes the embedded assets into <out>/assets/.
func (g *Generator) copyAssets(outDir string) error {
	assetsDir := filepath.Join(outDir, "assets")
	if err := os.MkdirAll(assetsDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", assetsDir, err)
	}

	names, err := siteFS.ReadDir("assets")
	if err != nil {
		return fmt.Errorf("reading embedded assets: %w", err)
	}

	for _, entry := range names {
		data, err := siteFS.ReadFile("assets/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading embedded asset %s: %w", entry.Name(), err)
		}

		dst := filepath.Join(assetsDir, entry.Name())
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", dst, err)
		}
	}

	return nil
}

// prepareOutputDir recreates the output directory from scratch.
func prepareOutputDir(outDir string) error {
	if err := os.RemoveAll(outDir); err != nil {
		return fmt.Errorf("cleaning %s: %w", outDir, err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", outDir, err)
	}

	return nil
}

// pageFileName derives the chat page filename. External IDs come straight
// from the export, so an ID carrying a path separator or a leading dot
// could escape the chat/ directory; such chats are named by internal ID
// instead.
func pageFileName(chat *models.StoredChat) string {
	if safePageID(chat.ExternalID) {
		return chat.ExternalID + ".html"
	}

	return fmt.Sprintf("chat-%d.html", chat.ID)
}

// safePageID accepts only identifiers that cannot traverse directories.
func safePageID(id string) bool {
	if id == "" || id[0] == '.' {
		return false
	}

	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}

	return true
}

// fmtTime renders an optional timestamp for page display.
func fmtTime(t *time.Time) string {
	if t == nil {
		return ""
	}

	return t.Format("2006-01-02 15:04")
}
