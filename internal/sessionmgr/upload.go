package sessionmgr

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"io"

	"github.com/judgyse/judgyse-go/internal/judgeerr"
)

// parseUpload reads command.code/command.judger's payload, a 2-tuple of
// [content, compressed] matching write_code's wire shape in the original
// session handler.
func parseUpload(payload any) (content string, compressed bool, err error) {
	tuple, ok := payload.([]any)
	if !ok || len(tuple) != 2 {
		return "", false, judgeerr.InvalidField{Field: "payload", Reason: "expected [content, compressed]"}
	}
	content, ok = tuple[0].(string)
	if !ok {
		return "", false, judgeerr.InvalidField{Field: "content", Reason: "expected string"}
	}
	compressed, _ = tuple[1].(bool)
	return content, compressed, nil
}

// parseTestcaseUpload reads command.testcase's payload: a 4-tuple of
// [index, input, output, compressed] matching write_testcase's wire shape.
func parseTestcaseUpload(payload any) (index int, input, output string, compressed bool, err error) {
	tuple, ok := payload.([]any)
	if !ok || len(tuple) != 4 {
		return 0, "", "", false, judgeerr.InvalidField{Field: "payload", Reason: "expected [index, input, output, compressed]"}
	}
	idx, ok := tuple[0].(float64)
	if !ok {
		return 0, "", "", false, judgeerr.InvalidField{Field: "index", Reason: "expected number"}
	}
	input, ok = tuple[1].(string)
	if !ok {
		return 0, "", "", false, judgeerr.InvalidField{Field: "input", Reason: "expected string"}
	}
	output, ok = tuple[2].(string)
	if !ok {
		return 0, "", "", false, judgeerr.InvalidField{Field: "output", Reason: "expected string"}
	}
	compressed, _ = tuple[3].(bool)
	return int(idx), input, output, compressed, nil
}

// inflate reverses the zlib compression write_testcase/write_code apply
// before uploading large testcase files. The wire format is JSON text, so
// the compressed bytes travel base64-encoded; the original tuple shape
// (compressed=true meaning "decompress before writing") carries over.
func inflate(data string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", err
	}
	r, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
