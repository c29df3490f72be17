package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// maxRequestBody caps the request body size for both protobuf and JSON
// payloads. Request descriptions are free text, so allow a generous 64 KiB.
const maxRequestBody = 64 << 10

const protobufContentType = "application/x-protobuf"

// isProtobuf returns true if the request's Content-Type indicates a
// protobuf payload.
func isProtobuf(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == protobufContentType ||
		ct == "application/protobuf" ||
		ct == "application/octet-stream"
}

// wantsProtobuf reports whether the client asked for a protobuf response.
func wantsProtobuf(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, protobufContentType) ||
		strings.Contains(accept, "application/protobuf")
}

// readProto reads the request body and unmarshals it into msg.
func readProto(r *http.Request, msg proto.Message) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return err
	}
	return proto.Unmarshal(body, msg)
}

// readProtoStruct decodes a google.protobuf.Struct body into dst by way of
// its JSON form, so both encodings share the same field names.
func readProtoStruct(r *http.Request, dst any) error {
	var st structpb.Struct
	if err := readProto(r, &st); err != nil {
		return err
	}
	b, err := json.Marshal(st.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

// toProtoValue converts a JSON-encodable document into a
// google.protobuf.Value.
func toProtoValue(v any) (*structpb.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, err
	}
	return structpb.NewValue(generic)
}

// writeProto marshals msg and writes it with the given HTTP status.
func writeProto(w http.ResponseWriter, status int, msg proto.Message) {
	data, err := proto.Marshal(msg)
	if err != nil {
		// Fall back to a plain-text error if marshalling fails.
		http.Error(w, "proto marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", protobufContentType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
