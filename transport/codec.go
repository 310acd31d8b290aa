package transport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Codec frames a Request/Response pair onto an io.ReadWriter. Two
// implementations exist, either of which the libp2p transport can use:
// JSONCodec, and KVCodec, a whitespace-token key=value framing descended from the
// original bootstrap registry's positional REG/UNREG wire format,
// generalized here to carry arbitrary fields (file bytes, token lists)
// that a fixed-position protocol can't.
type Codec interface {
	WriteRequest(w io.Writer, req Request) error
	ReadRequest(r io.Reader) (Request, error)
	WriteResponse(w io.Writer, resp Response) error
	ReadResponse(r io.Reader) (Response, error)
}

// JSONCodec frames each message as a single newline-terminated JSON object.
type JSONCodec struct{}

func (JSONCodec) WriteRequest(w io.Writer, req Request) error {
	return writeJSONLine(w, req)
}

func (JSONCodec) ReadRequest(r io.Reader) (Request, error) {
	var req Request
	err := readJSONLine(r, &req)
	return req, err
}

func (JSONCodec) WriteResponse(w io.Writer, resp Response) error {
	return writeJSONLine(w, resp)
}

func (JSONCodec) ReadResponse(r io.Reader) (Response, error) {
	var resp Response
	err := readJSONLine(r, &resp)
	return resp, err
}

func writeJSONLine(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

func readJSONLine(r io.Reader, v any) error {
	line, err := bufio.NewReader(r).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return err
	}
	return json.Unmarshal(line, v)
}

// KVCodec frames a message as whitespace-separated key=value tokens on a
// single line, e.g. "op=ping peer=10.0.0.1:4001". Values containing
// whitespace (file bytes, token lists) are percent-escaped so the
// token split stays unambiguous; this is the simplest extension of the
// original fixed-column "REG ip port" framing that still tokenizes with
// strings.Fields.
type KVCodec struct{}

func (KVCodec) WriteRequest(w io.Writer, req Request) error {
	fields := []kv{{"op", string(req.Op)}}
	if req.Key != 0 {
		fields = append(fields, kv{"key", strconv.FormatUint(req.Key, 10)})
	}
	if req.Peer != "" {
		fields = append(fields, kv{"peer", req.Peer})
	}
	if req.Candidate != "" {
		fields = append(fields, kv{"candidate", req.Candidate})
	}
	fields = append(fields, kv{"has", strconv.FormatBool(req.Has)})
	if req.Filename != "" {
		fields = append(fields, kv{"filename", req.Filename})
	}
	if len(req.Data) > 0 {
		fields = append(fields, kv{"data", escapeBytes(req.Data)})
	}
	if req.Token != "" {
		fields = append(fields, kv{"token", req.Token})
	}
	if req.Lower != 0 {
		fields = append(fields, kv{"lower", strconv.FormatUint(req.Lower, 10)})
	}
	if req.Upper != 0 {
		fields = append(fields, kv{"upper", strconv.FormatUint(req.Upper, 10)})
	}
	if len(req.Names) > 0 {
		fields = append(fields, kv{"names", escapeList(req.Names)})
	}
	return writeKVLine(w, fields)
}

func (KVCodec) ReadRequest(r io.Reader) (Request, error) {
	m, err := readKVLine(r)
	if err != nil {
		return Request{}, err
	}
	req := Request{
		Op:        Opcode(m["op"]),
		Peer:      m["peer"],
		Candidate: m["candidate"],
		Filename:  m["filename"],
		Token:     m["token"],
		Has:       m["has"] == "true",
	}
	if v, ok := m["key"]; ok {
		req.Key, _ = strconv.ParseUint(v, 10, 64)
	}
	if v, ok := m["lower"]; ok {
		req.Lower, _ = strconv.ParseUint(v, 10, 64)
	}
	if v, ok := m["upper"]; ok {
		req.Upper, _ = strconv.ParseUint(v, 10, 64)
	}
	if v, ok := m["data"]; ok {
		req.Data = unescapeBytes(v)
	}
	if v, ok := m["names"]; ok {
		req.Names = unescapeList(v)
	}
	return req, nil
}

func (KVCodec) WriteResponse(w io.Writer, resp Response) error {
	fields := []kv{{"ok", strconv.FormatBool(resp.OK)}}
	if resp.Error != "" {
		fields = append(fields, kv{"error", escapeOne(resp.Error)})
	}
	if resp.Peer != "" {
		fields = append(fields, kv{"peer", resp.Peer})
	}
	fields = append(fields, kv{"has", strconv.FormatBool(resp.Has)})
	fields = append(fields, kv{"found", strconv.FormatBool(resp.Found)})
	if len(resp.Data) > 0 {
		fields = append(fields, kv{"data", escapeBytes(resp.Data)})
	}
	return writeKVLine(w, fields)
}

func (KVCodec) ReadResponse(r io.Reader) (Response, error) {
	m, err := readKVLine(r)
	if err != nil {
		return Response{}, err
	}
	resp := Response{
		OK:    m["ok"] == "true",
		Error: unescapeOne(m["error"]),
		Peer:  m["peer"],
		Has:   m["has"] == "true",
		Found: m["found"] == "true",
	}
	if v, ok := m["data"]; ok {
		resp.Data = unescapeBytes(v)
	}
	return resp, nil
}

type kv struct {
	key, val string
}

func writeKVLine(w io.Writer, fields []kv) error {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s=%s", f.key, f.val)
	}
	_, err := fmt.Fprintln(w, strings.Join(parts, " "))
	return err
}

func readKVLine(r io.Reader) (map[string]string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return nil, err
	}
	out := make(map[string]string)
	for _, tok := range strings.Fields(line) {
		k, v, found := strings.Cut(tok, "=")
		if !found {
			continue
		}
		out[k] = v
	}
	return out, nil
}

// Percent escaping: percents and every character strings.Fields splits on
// (ASCII whitespace, U+0085, U+00A0) become %XX sequences, just enough to
// survive strings.Fields tokenizing on a key=value line.
var (
	kvEscaper   = strings.NewReplacer("%", "%25", " ", "%20", "\t", "%09", "\n", "%0A", "\v", "%0B", "\f", "%0C", "\r", "%0D", "\u0085", "%C2%85", " ", "%C2%A0")
	kvUnescaper = strings.NewReplacer("%25", "%", "%20", " ", "%09", "\t", "%0A", "\n", "%0B", "\v", "%0C", "\f", "%0D", "\r", "%C2%85", "\u0085", "%C2%A0", " ")
)

func escapeOne(s string) string {
	return kvEscaper.Replace(s)
}

func unescapeOne(s string) string {
	return kvUnescaper.Replace(s)
}

func escapeBytes(b []byte) string {
	return escapeOne(string(b))
}

func unescapeBytes(s string) []byte {
	return []byte(unescapeOne(s))
}

func escapeList(names []string) string {
	escaped := make([]string, len(names))
	for i, n := range names {
		escaped[i] = escapeOne(n)
	}
	return strings.Join(escaped, ",")
}

func unescapeList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = unescapeOne(p)
	}
	return out
}
