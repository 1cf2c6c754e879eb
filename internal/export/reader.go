// Package export reads conversation records out of export containers.
//
// A container is the compressed bundle delivered by the source platform: a
// .zip archive holding one or more conversation-list documents plus
// auxiliary assets. Unzipped directories and bare JSON documents are
// accepted too, since people routinely extract the bundle before archiving
// it. Records are yielded one at a time; a document is never loaded into
// memory whole.
package export

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/chatvault/chatvault/internal/models"
)

// RecordError reports a single conversation record that could not be
// minimally parsed. It is skippable: callers record the rejection and keep
// iterating.
type RecordError struct {
	SourceFile string
	Index      int
	Err        error
}

// Error implements the error interface.
func (e *RecordError) Error() string {
	return fmt.Sprintf("%s record %d: %v", e.SourceFile, e.Index, e.Err)
}

// Unwrap returns the underlying cause.
func (e *RecordError) Unwrap() error { return e.Err }

// document is one conversation-list file inside a container.
type document struct {
	name string
	open func() (io.ReadCloser, error)
}

// Reader yields raw conversation records from an export container.
// Re-opening the same container yields the same records in the same order;
// documents are visited in sorted name order.
type Reader struct {
	container string
	log       *logrus.Logger
	docs      []document

	docIdx  int
	cur     io.ReadCloser
	curName string
	dec     *json.Decoder
	inArray bool
	recIdx  int

	closers []io.Closer
}

// Open opens an export container. The path may be a .zip bundle, a
// directory holding extracted export files, or a single JSON document.
// Returns ErrMalformedContainer when nothing inside is readable.
func Open(path string, log *logrus.Logger) (*Reader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedContainer, err)
	}

	r := &Reader{container: path, log: log}

	switch {
	case info.IsDir():
		err = r.collectDirDocuments(path)
	case strings.EqualFold(filepath.Ext(path), ".zip"):
		err = r.collectZipDocuments(path)
	default:
		r.docs = append(r.docs, document{
			name: path,
			open: func() (io.ReadCloser, error) { return os.Open(path) },
		})
	}

	if err != nil {
		r.Close() //nolint:errcheck // best-effort cleanup on open failure.

		return nil, err
	}

	if len(r.docs) == 0 {
		r.Close() //nolint:errcheck // best-effort cleanup on open failure.

		return nil, fmt.Errorf("%w: no conversation documents in %s", models.ErrMalformedContainer, path)
	}

	sort.Slice(r.docs, func(i, j int) bool { return r.docs[i].name < r.docs[j].name })

	log.WithFields(logrus.Fields{
		"container": path,
		"documents": len(r.docs),
	}).Debug("export container opened")

	return r, nil
}

// collectZipDocuments registers every conversation-list entry of a zip bundle.
func (r *Reader) collectZipDocuments(path string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("%w: opening zip %s: %v", models.ErrMalformedContainer, path, err)
	}

	r.closers = append(r.closers, zr)

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !isConversationDocument(f.Name) {
			continue
		}

		r.docs = append(r.docs, document{
			name: f.Name,
			open: f.Open,
		})
	}

	return nil
}

// collectDirDocuments registers every conversation-list file under a directory.
func (r *Reader) collectDirDocuments(root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isConversationDocument(path) {
			return err
		}

		r.docs = append(r.docs, document{
			name: path,
			open: func() (io.ReadCloser, error) { return os.Open(path) },
		})

		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: walking %s: %v", models.ErrMalformedContainer, root, err)
	}

	return nil
}

// isConversationDocument matches conversations.json and its numbered
// variants (conversations_2.json etc.) regardless of directory.
func isConversationDocument(path string) bool {
	base := strings.ToLower(filepath.Base(path))

	return strings.HasPrefix(base, "conversations") && strings.HasSuffix(base, ".json")
}

// Next returns the next raw conversation record. It returns io.EOF when the
// container is exhausted, a *RecordError (wrapping ErrMalformedRecord) for a
// record that cannot be minimally parsed — iteration may continue past it —
// and ErrMalformedContainer when a whole document is unreadable.
func (r *Reader) Next() (*models.RawConversation, error) {
	for {
		if r.dec == nil {
			if err := r.nextDocument(); err != nil {
				return nil, err
			}
		}

		if !r.dec.More() {
			r.finishDocument()

			continue
		}

		var raw json.RawMessage
		if err := r.dec.Decode(&raw); err != nil {
			// A decode failure mid-array poisons the decoder state for the
			// rest of the document; drop the document, surface the error.
			name := r.curName
			r.finishDocument()

			return nil, fmt.Errorf("%w: decoding record in %s: %v", models.ErrMalformedContainer, name, err)
		}

		idx := r.recIdx
		r.recIdx++

		conv, err := parseRecord(raw, r.curName)
		if err != nil {
			return nil, &RecordError{SourceFile: r.curName, Index: idx, Err: err}
		}

		return conv, nil
	}
}

// nextDocument opens the next document and positions the decoder inside its
// conversation array. Returns io.EOF when no documents remain.
func (r *Reader) nextDocument() error {
	if r.docIdx >= len(r.docs) {
		return io.EOF
	}

	doc := r.docs[r.docIdx]
	r.docIdx++

	rc, err := doc.open()
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", models.ErrMalformedContainer, doc.name, err)
	}

	dec := json.NewDecoder(rc)
	if err := seekConversationArray(dec); err != nil {
		rc.Close() //nolint:errcheck // best-effort close on seek failure.

		return fmt.Errorf("%w: %s: %v", models.ErrMalformedContainer, doc.name, err)
	}

	r.cur = rc
	r.curName = doc.name
	r.dec = dec
	r.recIdx = 0

	return nil
}

// seekConversationArray advances the decoder to just inside the
// conversation array. Depending on export vintage the document root is
// either the array itself or an object with a "conversations" key.
func seekConversationArray(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("reading document root: %w", err)
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return fmt.Errorf("unexpected document root token %v", tok)
	}

	if delim == '[' {
		return nil
	}

	if delim != '{' {
		return fmt.Errorf("unexpected document root delimiter %q", delim)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("reading document key: %w", err)
		}

		key, _ := keyTok.(string)
		if key == "conversations" {
			open, err := dec.Token()
			if err != nil {
				return fmt.Errorf("reading conversations value: %w", err)
			}

			if d, ok := open.(json.Delim); !ok || d != '[' {
				return fmt.Errorf("conversations key is not an array")
			}

			return nil
		}

		// Skip the value of an unrelated key.
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return fmt.Errorf("skipping key %q: %w", key, err)
		}
	}

	return fmt.Errorf("no conversations array in document")
}

// finishDocument closes the current document and resets decoder state.
func (r *Reader) finishDocument() {
	if r.cur != nil {
		r.cur.Close() //nolint:errcheck // read-only stream.
	}

	r.cur = nil
	r.dec = nil
	r.curName = ""
}

// Close releases the container and any open document.
func (r *Reader) Close() error {
	r.finishDocument()

	var firstErr error

	for _, c := range r.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	r.closers = nil

	return firstErr
}
