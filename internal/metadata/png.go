package metadata

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
)

var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// pngTextChunks extracts keyword/value pairs from tEXt, zTXt and iTXt
// chunks of a PNG file. Non-PNG input returns an empty map. AI image
// generators (InvokeAI, older Stable Diffusion UIs) store their
// generation parameters in these chunks.
func pngTextChunks(data []byte) map[string]string {
	out := map[string]string{}
	if !bytes.HasPrefix(data, pngSignature) {
		return out
	}

	rest := data[len(pngSignature):]
	for len(rest) >= 12 {
		length := binary.BigEndian.Uint32(rest[:4])
		chunkType := string(rest[4:8])
		if uint64(len(rest)) < 12+uint64(length) {
			break // truncated file
		}
		chunk := rest[8 : 8+length]
		rest = rest[12+length:]

		switch chunkType {
		case "tEXt":
			if key, val, ok := splitKeyword(chunk); ok {
				out[key] = string(val)
			}
		case "zTXt":
			key, val, ok := splitKeyword(chunk)
			if !ok || len(val) < 1 {
				continue
			}
			// First byte is the compression method (0 = zlib).
			if text, err := inflate(val[1:]); err == nil {
				out[key] = string(text)
			}
		case "iTXt":
			key, val, ok := splitKeyword(chunk)
			if !ok || len(val) < 2 {
				continue
			}
			compressed := val[0] == 1
			// Skip compression flag, method, language tag and
			// translated keyword.
			body := val[2:]
			for i := 0; i < 2; i++ {
				nul := bytes.IndexByte(body, 0)
				if nul < 0 {
					body = nil
					break
				}
				body = body[nul+1:]
			}
			if body == nil {
				continue
			}
			if compressed {
				if text, err := inflate(body); err == nil {
					out[key] = string(text)
				}
			} else {
				out[key] = string(body)
			}
		case "IEND":
			return out
		}
	}
	return out
}

func splitKeyword(chunk []byte) (string, []byte, bool) {
	nul := bytes.IndexByte(chunk, 0)
	if nul <= 0 {
		return "", nil, false
	}
	return string(chunk[:nul]), chunk[nul+1:], true
}

func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
