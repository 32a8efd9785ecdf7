// Package grpcweb lets browsers reach the gRPC service over HTTP/1.1.
package grpcweb

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	contentType  = "application/grpc-web+proto"
	maxBodyBytes = 4 << 20

	frameData    byte = 0x00
	frameTrailer byte = 0x80
)

// forwarded request headers, lower-cased as gRPC metadata keys
var forwardHeaders = []string{"authorization", "x-request-id"}

// Bridge translates gRPC-Web requests into native gRPC calls on conn.
type Bridge struct {
	conn   grpc.ClientConnInterface
	prefix string
}

// New forwards requests for service (e.g. "pkg.v1.Service") to conn.
func New(conn grpc.ClientConnInterface, service string) *Bridge {
	return &Bridge{conn: conn, prefix: "/" + service + "/"}
}

// Pattern is the router pattern that should be mounted on b.
func (b *Bridge) Pattern() string {
	return b.prefix + "*"
}

func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/grpc-web") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/grpc-web-text") {
		http.Error(w, "not grpc-web", http.StatusUnsupportedMediaType)
		return
	}
	if !strings.HasPrefix(r.URL.Path, b.prefix) {
		writeStatus(w, codes.Unimplemented, "unknown service")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeStatus(w, codes.InvalidArgument, "read body failed")
		return
	}
	payload, err := unframe(body)
	if err != nil {
		writeStatus(w, codes.InvalidArgument, err.Error())
		return
	}

	md := metadata.MD{}
	for _, k := range forwardHeaders {
		if vals := r.Header.Values(k); len(vals) > 0 {
			md.Set(k, vals...)
		}
	}
	ctx := metadata.NewOutgoingContext(r.Context(), md)

	resp := &rawMsg{}
	err = b.conn.Invoke(ctx, r.URL.Path, &rawMsg{data: payload}, resp, grpc.ForceCodec(rawCodec{}))
	if err != nil {
		st := status.Convert(err)
		slog.DebugContext(r.Context(), "grpc-web call failed",
			slog.String("method", r.URL.Path),
			slog.String("code", st.Code().String()),
		)
		writeStatus(w, st.Code(), st.Message())
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(frame(frameData, resp.data))
	_, _ = w.Write(frame(frameTrailer, []byte("grpc-status:0\r\n")))
}

// unframe returns the single message of a gRPC-Web request body.
// Layout: 1-byte flag, 4-byte big-endian length, message.
func unframe(body []byte) ([]byte, error) {
	if len(body) < 5 {
		return nil, fmt.Errorf("body too short")
	}
	if body[0] != frameData {
		return nil, fmt.Errorf("compressed or trailer frames are not accepted")
	}
	n := binary.BigEndian.Uint32(body[1:5])
	if uint64(n)+5 > uint64(len(body)) {
		return nil, fmt.Errorf("incomplete frame")
	}
	return body[5 : 5+n], nil
}

func frame(flag byte, data []byte) []byte {
	out := make([]byte, 5+len(data))
	out[0] = flag
	binary.BigEndian.PutUint32(out[1:5], uint32(len(data)))
	copy(out[5:], data)
	return out
}

// writeStatus sends a trailers-only response carrying a non-OK status.
func writeStatus(w http.ResponseWriter, code codes.Code, msg string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	trailer := fmt.Sprintf("grpc-status:%d\r\ngrpc-message:%s\r\n", code, encodeMessage(msg))
	_, _ = w.Write(frame(frameTrailer, []byte(trailer)))
}

// encodeMessage percent-encodes grpc-message as the gRPC HTTP/2 mapping
// requires; the French messages carry non-ASCII bytes.
func encodeMessage(msg string) string {
	var sb strings.Builder
	for i := 0; i < len(msg); i++ {
		c := msg[i]
		if c >= 0x20 && c <= 0x7e && c != '%' {
			sb.WriteByte(c)
			continue
		}
		fmt.Fprintf(&sb, "%%%02X", c)
	}
	return sb.String()
}

type rawMsg struct{ data []byte }

// rawCodec passes message bytes through untouched. It is named "proto" so the
// server decodes the payload with its default codec.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	return v.(*rawMsg).data, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	m := v.(*rawMsg)
	m.data = append([]byte(nil), data...)
	return nil
}

func (rawCodec) Name() string { return "proto" }
