package embed

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"excaliview/internal/domain"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// ErrNotPNG is returned for data without a PNG signature.
var ErrNotPNG = errors.New("embed: not a png")

type pngChunk struct {
	typ  string
	data []byte
}

// InsertPNG returns img with doc stored in a tEXt chunk. Any scene chunk
// already present is replaced.
func InsertPNG(img, doc []byte) ([]byte, error) {
	chunks, err := readChunks(img)
	if err != nil {
		return nil, err
	}
	env, err := Wrap(doc)
	if err != nil {
		return nil, err
	}

	text := make([]byte, 0, len(domain.MIMEType)+1+len(env))
	text = append(text, domain.MIMEType...)
	text = append(text, 0)
	text = append(text, env...)

	var out bytes.Buffer
	out.Write(pngSignature)
	for _, c := range chunks {
		if c.typ == "tEXt" && isSceneText(c.data) {
			continue
		}
		if c.typ == "IEND" {
			writeChunk(&out, "tEXt", text)
		}
		writeChunk(&out, c.typ, c.data)
	}
	return out.Bytes(), nil
}

// ExtractPNG returns the document JSON stored in img.
func ExtractPNG(img []byte) ([]byte, error) {
	chunks, err := readChunks(img)
	if err != nil {
		return nil, err
	}
	for _, c := range chunks {
		if c.typ != "tEXt" || !isSceneText(c.data) {
			continue
		}
		return Unwrap(c.data[len(domain.MIMEType)+1:])
	}
	return nil, ErrNoScene
}

func isSceneText(data []byte) bool {
	key, _, ok := bytes.Cut(data, []byte{0})
	return ok && string(key) == domain.MIMEType
}

func readChunks(img []byte) ([]pngChunk, error) {
	if !bytes.HasPrefix(img, pngSignature) {
		return nil, ErrNotPNG
	}
	var chunks []pngChunk
	rest := img[len(pngSignature):]
	for len(rest) > 0 {
		if len(rest) < 12 {
			return nil, fmt.Errorf("embed: truncated png chunk")
		}
		n := binary.BigEndian.Uint32(rest[:4])
		if uint64(n)+12 > uint64(len(rest)) {
			return nil, fmt.Errorf("embed: png chunk length %d out of range", n)
		}
		typ := string(rest[4:8])
		data := rest[8 : 8+n]
		want := binary.BigEndian.Uint32(rest[8+n : 12+n])
		if crc32.ChecksumIEEE(rest[4:8+n]) != want {
			return nil, fmt.Errorf("embed: bad crc in %s chunk", typ)
		}
		chunks = append(chunks, pngChunk{typ: typ, data: data})
		rest = rest[12+n:]
		if typ == "IEND" {
			break
		}
	}
	return chunks, nil
}

func writeChunk(w *bytes.Buffer, typ string, data []byte) {
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[:4], uint32(len(data)))
	copy(hdr[4:], typ)
	w.Write(hdr[:])
	w.Write(data)
	crc := crc32.NewIEEE()
	crc.Write(hdr[4:])
	crc.Write(data)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	w.Write(sum[:])
}
