package embed

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"

	"excaliview/internal/domain"
)

const (
	// SVGSourceTag marks markup produced by this exporter.
	SVGSourceTag = "<!-- svg-source:excalidraw -->"

	svgPayloadType    = "<!-- payload-type:" + domain.MIMEType + " -->"
	svgPayloadVersion = 2
	svgPayloadStart   = "<!-- payload-start -->"
	svgPayloadEnd     = "<!-- payload-end -->"
)

var svgVersionRe = regexp.MustCompile(`<!-- payload-version:(\d+) -->`)

// SVGMetadata returns the <metadata> element carrying doc.
func SVGMetadata(doc []byte) (string, error) {
	env, err := Wrap(doc)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("<metadata>%s<!-- payload-version:%d -->%s%s%s</metadata>",
		svgPayloadType, svgPayloadVersion,
		svgPayloadStart, base64.StdEncoding.EncodeToString(env), svgPayloadEnd,
	), nil
}

// ExtractSVG returns the document JSON embedded in markup.
func ExtractSVG(markup []byte) ([]byte, error) {
	if !bytes.Contains(markup, []byte(svgPayloadType)) {
		return nil, ErrNoScene
	}
	start := bytes.Index(markup, []byte(svgPayloadStart))
	end := bytes.Index(markup, []byte(svgPayloadEnd))
	if start < 0 || end < 0 || end < start {
		return nil, fmt.Errorf("embed: svg payload markers are broken")
	}
	encoded := bytes.TrimSpace(markup[start+len(svgPayloadStart) : end])

	data, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return nil, fmt.Errorf("embed: decode svg payload: %w", err)
	}

	version := 1
	if m := svgVersionRe.FindSubmatch(markup); m != nil {
		version, _ = strconv.Atoi(string(m[1]))
	}
	if version == 1 {
		// v1 stored the document JSON directly.
		return data, nil
	}
	return Unwrap(data)
}
