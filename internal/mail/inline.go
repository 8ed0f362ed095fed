package mail

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// inlineImagePattern matches base64 data URLs for images as produced
// by rich-text editors when a user pastes or drops an image.
var inlineImagePattern = regexp.MustCompile(
	`data:(image/[a-zA-Z0-9.+-]+);base64,([A-Za-z0-9+/=]+)`,
)

// ExtractInlineImages rewrites base64 data URLs in an HTML body into
// cid: references and returns the extracted images as attachments.
// Without this step a few pasted screenshots bloat the HTML part past
// what many servers accept in a single line.
//
// Content IDs derive from the image bytes, so the same image pasted
// twice yields one attachment referenced twice. Undecodable data URLs
// are left untouched.
func ExtractInlineImages(html string) (string, []SendAttachment) {
	var attachments []SendAttachment
	seen := make(map[string]bool)

	rewritten := inlineImagePattern.ReplaceAllStringFunc(html, func(match string) string {
		groups := inlineImagePattern.FindStringSubmatch(match)
		contentType, payload := groups[1], groups[2]

		content, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return match
		}

		sum := sha256.Sum256(content)
		cid := hex.EncodeToString(sum[:12]) + "@inline"

		if !seen[cid] {
			seen[cid] = true
			attachments = append(attachments, SendAttachment{
				Filename:    fmt.Sprintf("inline-%d.%s", len(attachments)+1, imageExtension(contentType)),
				ContentType: contentType,
				Content:     content,
				ContentID:   cid,
			})
		}

		return "cid:" + cid
	})

	return rewritten, attachments
}

func imageExtension(contentType string) string {
	sub := strings.TrimPrefix(contentType, "image/")
	switch sub {
	case "jpeg":
		return "jpg"
	case "svg+xml":
		return "svg"
	default:
		return sub
	}
}
