package codec

import (
	"encoding/binary"

	"github.com/shazhou-ww/casfa-sub002/casfaerr"
)

// fileInfoLen is the fixed 64-byte FileInfo block embedded in every f-node:
// an 8-byte little-endian file size followed by a 56-byte ASCII content
// type, zero-padded.
const fileInfoLen = 64
const contentTypeLen = 56

// FileInfo is the f-node-only header extension recording the logical file
// size and declared content type (spec.md §3 "f-node").
type FileInfo struct {
	FileSize    uint64
	ContentType string
}

func (fi FileInfo) encode() ([]byte, error) {
	if len(fi.ContentType) > contentTypeLen {
		return nil, casfaerr.New(casfaerr.KindValidation, "FAIL_BAD_FILEINFO").
			Withf("content type %q exceeds %d bytes", fi.ContentType, contentTypeLen)
	}
	for i := 0; i < len(fi.ContentType); i++ {
		c := fi.ContentType[i]
		if c < 0x20 || c > 0x7e {
			return nil, casfaerr.New(casfaerr.KindValidation, "FAIL_BAD_FILEINFO").
				Withf("content type %q is not ASCII printable", fi.ContentType)
		}
	}

	buf := make([]byte, fileInfoLen)
	binary.LittleEndian.PutUint64(buf[0:8], fi.FileSize)
	copy(buf[8:8+contentTypeLen], fi.ContentType)
	return buf, nil
}

func decodeFileInfo(buf []byte, offset int) (FileInfo, error) {
	if len(buf) < offset+fileInfoLen {
		return FileInfo{}, casfaerr.New(casfaerr.KindValidation, "FAIL_LENGTH_MISMATCH").
			WithDetails(map[string]any{"offset": offset}).
			Withf("buffer too short for FileInfo")
	}

	block := buf[offset : offset+fileInfoLen]
	size := binary.LittleEndian.Uint64(block[0:8])
	ctBytes := block[8 : 8+contentTypeLen]

	zeroFrom := contentTypeLen
	for i, c := range ctBytes {
		if c == 0 {
			zeroFrom = i
			break
		}
		if c < 0x20 || c > 0x7e {
			return FileInfo{}, casfaerr.New(casfaerr.KindValidation, "FAIL_BAD_FILEINFO").
				WithDetails(map[string]any{"offset": offset + 8 + i}).
				Withf("content type byte %#x is not ASCII printable", c)
		}
	}
	for i := zeroFrom; i < contentTypeLen; i++ {
		if ctBytes[i] != 0 {
			return FileInfo{}, casfaerr.New(casfaerr.KindValidation, "FAIL_BAD_FILEINFO").
				WithDetails(map[string]any{"offset": offset + 8 + i}).
				Withf("content type padding not zero at byte %d", i)
		}
	}

	return FileInfo{FileSize: size, ContentType: string(ctBytes[:zeroFrom])}, nil
}
