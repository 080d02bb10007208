package intake

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
	"time"

	"github.com/calendaria/duration-engine/internal/core"
	"golang.org/x/text/encoding/htmlindex"
)

// maxMultipartDepth bounds recursion into nested multipart bodies
const maxMultipartDepth = 5

var wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

// charsetReader converts input in the named charset to UTF-8
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

// decodeEncodedHeader decodes RFC 2047 encoded words in a header value
func decodeEncodedHeader(value string) (string, error) {
	return wordDecoder.DecodeHeader(value)
}

// ParseMessage converts a raw message into an Email. The envelope sender
// and recipients win over the message headers when present.
func ParseMessage(raw []byte, sender string, recipients []string) (*core.Email, *mail.Message, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse email message: %w", err)
	}

	headers := make(map[string][]string, len(msg.Header))
	for key, values := range msg.Header {
		headers[key] = values
	}

	subject := msg.Header.Get("Subject")
	if decoded, err := decodeEncodedHeader(subject); err == nil {
		subject = decoded
	}

	if sender == "" {
		sender = msg.Header.Get("From")
		if addr, err := mail.ParseAddress(sender); err == nil {
			sender = addr.Address
		}
	}
	if len(recipients) == 0 {
		if addrs, err := msg.Header.AddressList("To"); err == nil {
			for _, a := range addrs {
				recipients = append(recipients, a.Address)
			}
		}
	}

	receivedAt, err := msg.Header.Date()
	if err != nil {
		receivedAt = time.Now()
	}

	body, err := extractTextFromMessage(msg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to extract text content: %w", err)
	}

	return &core.Email{
		From:       sender,
		To:         recipients,
		Subject:    subject,
		Body:       body,
		Headers:    headers,
		ReceivedAt: receivedAt.UTC(),
	}, msg, nil
}

// extractTextFromMessage extracts the text content from an email message.
// For multipart messages the text/plain parts are used.
func extractTextFromMessage(msg *mail.Message) (string, error) {
	return extractText(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body, 0)
}

func extractText(contentType, transferEncoding string, body io.Reader, depth int) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// Missing or malformed Content-Type means plain text
		mediaType, params = "text/plain", map[string]string{}
	}

	if !strings.HasPrefix(mediaType, "multipart/") {
		return decodePart(body, transferEncoding, params["charset"])
	}

	boundary, ok := params["boundary"]
	if !ok || depth >= maxMultipartDepth {
		bodyBytes, err := io.ReadAll(body)
		if err != nil {
			return "", err
		}
		return string(bodyBytes), nil
	}

	mr := multipart.NewReader(body, boundary)
	var textContent strings.Builder
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Keep what was read before the malformed part
			break
		}

		partType := part.Header.Get("Content-Type")
		switch {
		case strings.Contains(strings.ToLower(partType), "multipart/"):
			nested, err := extractText(partType, part.Header.Get("Content-Transfer-Encoding"), part, depth+1)
			if err == nil && nested != "" {
				textContent.WriteString(nested)
			}
		case partType == "" || strings.Contains(strings.ToLower(partType), "text/plain"):
			if part.FileName() != "" {
				continue
			}
			_, partParams, _ := mime.ParseMediaType(partType)
			text, err := decodePart(part, part.Header.Get("Content-Transfer-Encoding"), partParams["charset"])
			if err != nil {
				continue
			}
			textContent.WriteString(text)
			textContent.WriteString("\n")
		}
	}

	if textContent.Len() > 0 {
		return textContent.String(), nil
	}

	return "[No text content found in multipart message]", nil
}

// decodePart undoes the transfer encoding and converts the charset to UTF-8
func decodePart(r io.Reader, transferEncoding, charset string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, r)
	}

	if charset != "" && !strings.EqualFold(charset, "utf-8") && !strings.EqualFold(charset, "us-ascii") {
		if cr, err := charsetReader(charset, r); err == nil {
			r = cr
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
