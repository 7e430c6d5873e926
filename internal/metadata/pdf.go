package metadata

import (
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"github.com/nao1215/harvester/internal/model"
)

const pdfMagic = "%PDF-"

// pdfInfoPatterns match entries of the PDF document information dictionary,
// either as literal strings (...) with escapes or hex strings <...>.
var pdfInfoPatterns = map[string]*regexp.Regexp{
	"pdf_author":        infoPattern("Author"),
	"pdf_creator":       infoPattern("Creator"),
	"pdf_producer":      infoPattern("Producer"),
	"pdf_title":         infoPattern("Title"),
	"pdf_subject":       infoPattern("Subject"),
	"pdf_keywords":      infoPattern("Keywords"),
	"pdf_creation_date": infoPattern("CreationDate"),
	"pdf_mod_date":      infoPattern("ModDate"),
}

func infoPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`/` + name + `\s*\(((?:[^()\\]|\\.)*)\)|/` + name + `\s*<([0-9A-Fa-f\s]*)>`)
}

// xmpPatterns match the XMP packet some producers embed instead.
var xmpPatterns = map[string]*regexp.Regexp{
	"pdf_creator_tool": regexp.MustCompile(`xmp:CreatorTool>([^<]+)<`),
	"pdf_document_id":  regexp.MustCompile(`xmpMM:DocumentID>([^<]+)<`),
}

var pdfVersionPattern = regexp.MustCompile(`^%PDF-(\d\.\d)`)

// inspectPDF records the PDF version and document information.
func inspectPDF(item *model.ContentItem, body []byte) {
	content := string(body)

	if m := pdfVersionPattern.FindStringSubmatch(content); m != nil {
		item.SetMetadata(KeyPDFVersion, m[1])
	}

	for key, pattern := range pdfInfoPatterns {
		m := pattern.FindStringSubmatch(content)
		if m == nil {
			continue
		}
		switch {
		case m[1] != "":
			item.SetMetadata(key, decodeLiteral(m[1]))
		case m[2] != "":
			item.SetMetadata(key, decodeHex(m[2]))
		}
	}

	for key, pattern := range xmpPatterns {
		if m := pattern.FindStringSubmatch(content); m != nil {
			item.SetMetadata(key, strings.TrimSpace(m[1]))
		}
	}

	if item.Title == "" {
		item.Title = item.Metadata["pdf_title"]
	}
}

var literalEscapes = strings.NewReplacer(
	`\n`, "\n",
	`\r`, "\r",
	`\t`, "\t",
	`\(`, "(",
	`\)`, ")",
	`\\`, `\`,
)

// decodeLiteral unescapes a PDF literal string. Literal strings starting
// with a UTF-16 byte order mark are decoded as UTF-16.
func decodeLiteral(s string) string {
	s = literalEscapes.Replace(s)
	if strings.HasPrefix(s, "\xfe\xff") {
		return decodeUTF16([]byte(s))
	}
	return strings.TrimSpace(s)
}

// decodeHex decodes a PDF hex string, which is UTF-16BE when it starts
// with FEFF and PDFDocEncoding (close enough to Latin-1) otherwise.
func decodeHex(s string) string {
	s = strings.Join(strings.Fields(s), "")
	if len(s)%2 == 1 {
		// a missing final digit is zero
		s += "0"
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ""
	}
	if len(raw) >= 2 && raw[0] == 0xfe && raw[1] == 0xff {
		return decodeUTF16(raw)
	}
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return strings.TrimSpace(string(runes))
}

func decodeUTF16(raw []byte) string {
	dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
	out, err := dec.Bytes(raw)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
