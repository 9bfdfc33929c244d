package llm

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

func sseResponse(body string) *http.Response {
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(body))}
}

func TestSSEStream_JoinsDataLinesAndSkipsNoise(t *testing.T) {
	var payloads []string
	stream := newSSEStream(sseResponse(
		": keep-alive\n\n"+
			"event: message\ndata: first\ndata: second\n\n"+
			"data: \n\n"+
			"data: empty\n\n"+
			"data: last"),
		func(data []byte) (Chunk, error) {
			payloads = append(payloads, string(data))
			if string(data) == "empty" {
				return Chunk{}, nil
			}
			return Chunk{Content: string(data) + ";"}, nil
		})
	defer stream.Close()

	var got strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		got.WriteString(chunk.Content)
	}
	if got.String() != "first\nsecond;last;" {
		t.Fatalf("unexpected content %q", got.String())
	}
	if len(payloads) != 3 {
		t.Fatalf("expected 3 decoded events, got %v", payloads)
	}
}

func TestSSEStream_DoneEndsStream(t *testing.T) {
	decoded := 0
	stream := newSSEStream(sseResponse("data: [DONE]\n\ndata: after\n\n"), func([]byte) (Chunk, error) {
		decoded++
		return Chunk{Content: "x"}, nil
	})
	if _, err := stream.Recv(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
	if decoded != 0 {
		t.Fatalf("nothing after [DONE] may be decoded")
	}
}

func TestSSEStream_DecodeErrorSurfaces(t *testing.T) {
	stream := newSSEStream(sseResponse("data: boom\n\n"), func([]byte) (Chunk, error) {
		return Chunk{}, errors.New("bad event")
	})
	if _, err := stream.Recv(); err == nil || err.Error() != "bad event" {
		t.Fatalf("expected decode error, got %v", err)
	}
}
