package mailer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DevSender writes emails to disk instead of sending them. Useful for local
// development where no Postmark account is available.
type DevSender struct {
	dir string
}

// NewDevSender creates a file-backed mailer rooted at dir. The directory is
// created on first send.
func NewDevSender(dir string) *DevSender {
	return &DevSender{dir: dir}
}

// Send writes the message body as an HTML file named after the send time and
// tag so verification links can be opened from disk.
func (d *DevSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	name := time.Now().Format("2006_01_02_150405")
	if msg.Tag != "" {
		name += "_" + sanitizeFilename(msg.Tag)
	}

	body := fmt.Sprintf("<!-- to: %s subject: %s -->\n%s", msg.To, msg.Subject, msg.BodyHTML)
	if err := os.WriteFile(filepath.Join(d.dir, name+".html"), []byte(body), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

func sanitizeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

var _ Mailer = (*DevSender)(nil)
