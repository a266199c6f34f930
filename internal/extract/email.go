package extract

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/awhitfield/invoice-cataloger/constants"
)

// emailStrategy extracts .eml exports: message headers, the text body, and
// any supported attachments. The invoice is very often the attachment rather
// than the body, so attachments are decoded to temp files and run through
// their own extraction chains.
type emailStrategy struct {
	nested func(ctx context.Context, kind constants.FileKind, path string) (Result, error)
}

func (emailStrategy) Name() string { return "eml-text" }
func (emailStrategy) Tier() constants.ConfidenceTier { return constants.TierHigh }

func (s *emailStrategy) Extract(ctx context.Context, path string) (string, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open eml: %w", err)
	}
	defer f.Close()

	msg, err := mail.ReadMessage(bufio.NewReader(f))
	if err != nil {
		return "", 0, fmt.Errorf("parse eml: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", msg.Header.Get("From"))
	fmt.Fprintf(&b, "To: %s\n", msg.Header.Get("To"))
	fmt.Fprintf(&b, "Subject: %s\n", msg.Header.Get("Subject"))
	fmt.Fprintf(&b, "Date: %s\n\n", msg.Header.Get("Date"))

	var plain, htmlBody strings.Builder
	var attachments []emailAttachment
	if err := walkEmailPart(
		msg.Header.Get("Content-Type"),
		msg.Header.Get("Content-Transfer-Encoding"),
		msg.Header.Get("Content-Disposition"),
		msg.Body, &plain, &htmlBody, &attachments,
	); err != nil {
		return "", 0, err
	}

	parts := 1
	if plain.Len() > 0 {
		b.WriteString(plain.String())
	} else if htmlBody.Len() > 0 {
		b.WriteString(stripHTML(htmlBody.String()))
	}

	for _, att := range attachments {
		fmt.Fprintf(&b, "\n\nAttachment: %s\n", att.filename)
		text, ok := s.extractAttachment(ctx, att)
		if ok {
			parts++
			b.WriteString(text)
		}
	}

	return b.String(), parts, nil
}

// extractAttachment writes the decoded attachment to a temp file and runs
// the chain for its kind. Unsupported or failing attachments are skipped;
// the filename line above is still useful context for the structuring model.
func (s *emailStrategy) extractAttachment(ctx context.Context, att emailAttachment) (string, bool) {
	if s.nested == nil {
		return "", false
	}
	kind := constants.MapExtToKind(filepath.Ext(att.filename))
	if kind == "" || kind == constants.Email {
		return "", false
	}

	tmp, err := os.CreateTemp("", "ic-att-*"+filepath.Ext(att.filename))
	if err != nil {
		return "", false
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(att.data); err != nil {
		tmp.Close()
		return "", false
	}
	tmp.Close()

	res, err := s.nested(ctx, kind, tmp.Name())
	if err != nil || res.Empty() {
		return "", false
	}
	return res.Text, true
}

type emailAttachment struct {
	filename string
	data     []byte
}

// walkEmailPart recurses through a MIME tree, accumulating text bodies and
// attachments.
func walkEmailPart(contentType, encoding, disposition string, r io.Reader, plain, htmlBody *strings.Builder, atts *[]emailAttachment) error {
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return fmt.Errorf("multipart without boundary")
		}
		mr := multipart.NewReader(r, boundary)
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read mime part: %w", err)
			}
			if err := walkEmailPart(
				part.Header.Get("Content-Type"),
				part.Header.Get("Content-Transfer-Encoding"),
				part.Header.Get("Content-Disposition"),
				part, plain, htmlBody, atts,
			); err != nil {
				return err
			}
		}
	}

	data, err := io.ReadAll(decodeTransfer(r, encoding))
	if err != nil {
		return fmt.Errorf("decode mime body: %w", err)
	}

	filename := partFilename(disposition, params)
	if filename != "" {
		*atts = append(*atts, emailAttachment{filename: filename, data: data})
		return nil
	}

	switch mediaType {
	case "text/plain":
		plain.Write(data)
	case "text/html":
		htmlBody.Write(data)
	}
	return nil
}

func decodeTransfer(r io.Reader, encoding string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}

func partFilename(disposition string, typeParams map[string]string) string {
	if disposition != "" {
		if disp, params, err := mime.ParseMediaType(disposition); err == nil {
			if disp == "attachment" || params["filename"] != "" {
				if params["filename"] != "" {
					return params["filename"]
				}
			}
		}
	}
	return typeParams["name"]
}

var reHTMLTag = regexp.MustCompile(`(?s)<(script|style).*?</(script|style)>|<[^>]*>`)

func stripHTML(s string) string {
	return html.UnescapeString(reHTMLTag.ReplaceAllString(s, " "))
}
