package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// chunkReader yields the input in fixed-size chunks to exercise record
// boundaries falling inside chunk boundaries.
type chunkReader struct {
	data []byte
	size int
	pos  int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := r.size
	if n > len(r.data)-r.pos {
		n = len(r.data) - r.pos
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, r.data[r.pos:r.pos+n])
	r.pos += n
	return n, nil
}

func ingestString(t *testing.T, stream string) *Result {
	t.Helper()

	result, err := Ingest(context.Background(), strings.NewReader(stream), discardLogger())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	return result
}

func TestIngest_HappyPath(t *testing.T) {
	result := ingestString(t, "data: {\"content\":\"Hello \"}\ndata: {\"content\":\"world\"}\n")

	if result.ResponseText != "Hello world" {
		t.Errorf("ResponseText = %q, want %q", result.ResponseText, "Hello world")
	}
	if result.Entity != nil {
		t.Errorf("Entity = %+v, want nil", result.Entity)
	}
}

func TestIngest_ChunkBoundaryInvariance(t *testing.T) {
	stream := "data: {\"content\":[{\"text\":\"one \"},{\"text\":\"two\"}]}\n" +
		": keep-alive\n" +
		"data: {\"metadata\":{\"intent\":\"check_orders\"}}\n" +
		"data: {\"content\":\" three\"}\n"

	whole := ingestString(t, stream)

	for _, size := range []int{1, 2, 3, 7, 16, len(stream)} {
		result, err := Ingest(context.Background(), &chunkReader{data: []byte(stream), size: size}, discardLogger())
		if err != nil {
			t.Fatalf("chunk size %d: Ingest() error = %v", size, err)
		}
		if result.ResponseText != whole.ResponseText {
			t.Errorf("chunk size %d: ResponseText = %q, want %q", size, result.ResponseText, whole.ResponseText)
		}
		if result.Metadata["intent"] != whole.Metadata["intent"] {
			t.Errorf("chunk size %d: metadata diverged", size)
		}
	}
}

func TestIngest_SplitInsidePayload(t *testing.T) {
	// The split point falls inside the JSON payload of a single line.
	stream := "data: {\"content\":\"X\"}\n"
	split := len("data: {\"cont")

	r := io.MultiReader(
		strings.NewReader(stream[:split]),
		strings.NewReader(stream[split:]),
	)

	result, err := Ingest(context.Background(), r, discardLogger())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if result.ResponseText != "X" {
		t.Errorf("ResponseText = %q, want %q", result.ResponseText, "X")
	}
}

func TestIngest_MalformedRecordIsolation(t *testing.T) {
	stream := "data: {\"content\":\"before\"}\n" +
		"data: {not json at all\n" +
		"data: {\"content\":\" after\",\"metadata\":{\"a\":1}}\n"

	result := ingestString(t, stream)

	if result.ResponseText != "before after" {
		t.Errorf("ResponseText = %q, want %q", result.ResponseText, "before after")
	}
	if result.Metadata["a"] != float64(1) {
		t.Errorf("Metadata[a] = %v, want 1", result.Metadata["a"])
	}
}

func TestIngest_ContentShapes(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		want   string
	}{
		{
			name:   "fragment list",
			stream: "data: {\"content\":[{\"text\":\"a\"},{\"other\":true},{\"text\":\"b\"}]}\n",
			want:   "ab",
		},
		{
			name:   "plain string",
			stream: "data: {\"content\":\"plain\"}\n",
			want:   "plain",
		},
		{
			name:   "parts mapping",
			stream: "data: {\"content\":{\"parts\":[{\"text\":\"p1 \"},{\"text\":\"p2\"}],\"role\":\"model\"}}\n",
			want:   "p1 p2",
		},
		{
			name:   "direct text mapping",
			stream: "data: {\"content\":{\"text\":\"direct\"}}\n",
			want:   "direct",
		},
		{
			name:   "parts wins over text",
			stream: "data: {\"content\":{\"parts\":[{\"text\":\"from parts\"}],\"text\":\"ignored\"}}\n",
			want:   "from parts",
		},
		{
			name:   "unrecognized shape",
			stream: "data: {\"content\":42}\n",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ingestString(t, tt.stream)
			if result.ResponseText != tt.want {
				t.Errorf("ResponseText = %q, want %q", result.ResponseText, tt.want)
			}
		})
	}
}

func TestIngest_MetadataMergeOrder(t *testing.T) {
	stream := "data: {\"metadata\":{\"a\":1}}\n" +
		"data: {\"metadata\":{\"a\":2,\"b\":3}}\n"

	result := ingestString(t, stream)

	if result.Metadata["a"] != float64(2) {
		t.Errorf("Metadata[a] = %v, want 2", result.Metadata["a"])
	}
	if result.Metadata["b"] != float64(3) {
		t.Errorf("Metadata[b] = %v, want 3", result.Metadata["b"])
	}
}

func TestIngest_ExplicitEntityWinsOverInference(t *testing.T) {
	// The text matches an inference trigger and the auxiliary data is
	// present, but the backend sent an explicit entity.
	stream := "data: {\"content\":\"creating order now\",\"order_details\":{\"supplier\":\"Acme\",\"total\":7}}\n" +
		"data: {\"entity\":{\"entity_name\":\"Quote\",\"records\":{\"id\":9}}}\n"

	result := ingestString(t, stream)

	if result.Entity == nil || result.Entity.EntityName != "Quote" {
		t.Fatalf("Entity = %+v, want explicit Quote", result.Entity)
	}
}

func TestIngest_LastExplicitEntityWins(t *testing.T) {
	stream := "data: {\"entity\":{\"entity_name\":\"First\",\"records\":{}}}\n" +
		"data: {\"entity\":{\"entity_name\":\"Second\",\"records\":{}}}\n"

	result := ingestString(t, stream)

	if result.Entity == nil || result.Entity.EntityName != "Second" {
		t.Fatalf("Entity = %+v, want Second", result.Entity)
	}
}

func TestIngest_InferenceFallback(t *testing.T) {
	withDetails := "data: {\"content\":\"יצרתי הזמנה חדשה\",\"order_details\":{\"supplier\":\"Acme\",\"total\":12}}\n"

	result := ingestString(t, withDetails)
	if result.Entity == nil || result.Entity.EntityName != "Order" {
		t.Fatalf("Entity = %+v, want inferred Order", result.Entity)
	}

	withoutDetails := "data: {\"content\":\"יצרתי הזמנה חדשה\"}\n"

	result = ingestString(t, withoutDetails)
	if result.Entity != nil {
		t.Errorf("Entity = %+v, want nil without order_details", result.Entity)
	}
}

func TestIngest_IgnoresNonDataLines(t *testing.T) {
	stream := ": comment\n" +
		"event: message\n" +
		"\n" +
		"  data: {\"content\":\"trimmed\"}\n"

	result := ingestString(t, stream)

	if result.ResponseText != "trimmed" {
		t.Errorf("ResponseText = %q, want %q", result.ResponseText, "trimmed")
	}
}

func TestIngest_TrailingLineWithoutNewline(t *testing.T) {
	result := ingestString(t, "data: {\"content\":\"tail\"}")

	if result.ResponseText != "tail" {
		t.Errorf("ResponseText = %q, want %q", result.ResponseText, "tail")
	}
}

func TestIngest_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Ingest(ctx, strings.NewReader("data: {\"content\":\"x\"}\n"), discardLogger())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Ingest() error = %v, want context.Canceled", err)
	}
}

func TestIngest_ReadError(t *testing.T) {
	readErr := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader("data: {\"content\":\"x\"}\n"), errReader{readErr})

	_, err := Ingest(context.Background(), r, discardLogger())
	if !errors.Is(err, readErr) {
		t.Fatalf("Ingest() error = %v, want wrapped read error", err)
	}
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }
