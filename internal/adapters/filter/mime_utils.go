package filter

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/mikey/email-threat-triage/internal/core"
)

// maxMultipartDepth bounds recursion into nested multipart bodies
const maxMultipartDepth = 8

// ParsedMessage holds the parts of an email the analyzers look at
type ParsedMessage struct {
	Header      mail.Header
	From        string
	Subject     string
	TextBody    string
	HTMLBody    string
	Attachments []core.Attachment
}

// Body returns the plain-text body, falling back to the HTML body
func (m *ParsedMessage) Body() string {
	if strings.TrimSpace(m.TextBody) != "" {
		return m.TextBody
	}
	return m.HTMLBody
}

var wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

// ParseMessage parses a raw RFC 5322 message
func ParseMessage(raw []byte) (*ParsedMessage, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse email message: %w", err)
	}

	parsed := &ParsedMessage{
		Header:  msg.Header,
		Subject: decodeEncodedHeader(msg.Header.Get("Subject")),
	}

	if from := msg.Header.Get("From"); from != "" {
		if addr, err := mail.ParseAddress(decodeEncodedHeader(from)); err == nil {
			parsed.From = addr.Address
		}
	}

	var text, html strings.Builder
	err = walkPart(msg.Header, msg.Body, 0, parsed, &text, &html)
	parsed.TextBody = text.String()
	parsed.HTMLBody = html.String()
	if err != nil && text.Len() == 0 && html.Len() == 0 {
		return nil, err
	}
	return parsed, nil
}

// partHeader is the subset of header access shared by mail and multipart headers
type partHeader interface {
	Get(key string) string
}

func walkPart(h partHeader, body io.Reader, depth int, out *ParsedMessage, text, html *strings.Builder) error {
	mediaType, params, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		mediaType, params = "text/plain", map[string]string{}
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" || depth >= maxMultipartDepth {
			return nil
		}
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextRawPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read multipart body: %w", err)
			}
			if err := walkPart(part.Header, part, depth+1, out, text, html); err != nil {
				return err
			}
		}
	}

	if name := attachmentName(h, params); name != "" {
		out.Attachments = append(out.Attachments, core.Attachment{Filename: name, MIMEType: mediaType})
		return nil
	}

	var target *strings.Builder
	switch mediaType {
	case "text/plain":
		target = text
	case "text/html":
		target = html
	default:
		return nil
	}

	decoded, err := io.ReadAll(charsetDecode(params["charset"], transferDecode(body, h.Get("Content-Transfer-Encoding"))))
	if err != nil {
		// keep whatever parts were readable
		return nil
	}
	if target.Len() > 0 {
		target.WriteString("\n")
	}
	target.Write(decoded)
	return nil
}

func attachmentName(h partHeader, ctParams map[string]string) string {
	disposition, dparams, err := mime.ParseMediaType(h.Get("Content-Disposition"))
	name := ""
	if err == nil {
		name = dparams["filename"]
	}
	if name == "" {
		name = ctParams["name"]
	}
	if name == "" && err == nil && disposition == "attachment" {
		name = "unnamed"
	}
	return strings.TrimSpace(decodeEncodedHeader(name))
}

func transferDecode(r io.Reader, encoding string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	default:
		return r
	}
}

func charsetDecode(charset string, r io.Reader) io.Reader {
	decoded, err := charsetReader(charset, r)
	if err != nil {
		return r
	}
	return decoded
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8", "us-ascii":
		return input, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

// decodeEncodedHeader decodes RFC 2047 encoded words, returning the input on failure
func decodeEncodedHeader(header string) string {
	decoded, err := wordDecoder.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}
