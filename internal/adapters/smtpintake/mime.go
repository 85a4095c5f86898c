package smtpintake

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"

	"github.com/mikey/content-review/internal/utils"
	"golang.org/x/text/encoding/htmlindex"
)

// maxPartDepth bounds multipart nesting
const maxPartDepth = 5

var wordDecoder = &mime.WordDecoder{
	CharsetReader: func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(strings.ToLower(charset))
		if err != nil {
			return nil, err
		}
		return enc.NewDecoder().Reader(input), nil
	},
}

// extractReviewText returns the decoded subject followed by every
// text/plain part of the message
func extractReviewText(msg *mail.Message, tp *utils.TextProcessor) (string, error) {
	var sb strings.Builder

	if subject := msg.Header.Get("Subject"); subject != "" {
		decoded, err := wordDecoder.DecodeHeader(subject)
		if err != nil {
			decoded = subject
		}
		sb.WriteString(decoded)
		sb.WriteString("\n")
	}

	header := textproto.MIMEHeader(msg.Header)
	if err := collectText(&sb, header, msg.Body, tp, 0); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func collectText(sb *strings.Builder, header textproto.MIMEHeader, body io.Reader, tp *utils.TextProcessor, depth int) error {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// Unparseable content type, treat the body as plain text
		mediaType, params = "text/plain", map[string]string{}
	}

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		if depth >= maxPartDepth {
			return nil
		}
		boundary := params["boundary"]
		if boundary == "" {
			return fmt.Errorf("multipart message without boundary")
		}
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextRawPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read message part: %w", err)
			}
			if err := collectText(sb, part.Header, part, tp, depth+1); err != nil {
				return err
			}
		}
	case mediaType == "text/plain":
		content, err := io.ReadAll(transferDecoder(header.Get("Content-Transfer-Encoding"), body))
		if err != nil {
			return fmt.Errorf("failed to read text part: %w", err)
		}
		text, err := tp.DecodeCharset(content, params["charset"])
		if err != nil {
			text = string(content)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	// Attachments and other media types are not reviewed
	return nil
}

func transferDecoder(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}
