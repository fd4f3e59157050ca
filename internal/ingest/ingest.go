// Package ingest reassembles the agent's streamed response into discrete
// data records and accumulates the reply text, entity suggestion, and
// metadata they carry.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/procureflow/assistant/internal/entity"
)

const dataPrefix = "data:"

// Result is the accumulated outcome of one streamed response.
type Result struct {
	// ResponseText is every text fragment from the stream, in arrival order.
	ResponseText string

	// Entity is the suggestion to surface: the backend's explicit entity
	// field when one arrived (last record wins), otherwise inferred from
	// ResponseText.
	Entity *entity.Suggestion

	// Metadata is the shallow merge of every record's metadata field, later
	// keys overwriting earlier ones.
	Metadata map[string]any

	// Aux holds the remaining record fields (order details, inventory
	// updates and the like), last record wins per key. Entity inference
	// reads its auxiliary data from here.
	Aux map[string]json.RawMessage
}

// Ingest consumes the stream chunk by chunk until EOF. Records arrive as
// newline-terminated lines; a line is a record only if, after trimming, it
// starts with "data:". A record that fails to parse is logged and skipped,
// never aborting the stream. Canceling ctx abandons the stream between
// chunks.
func Ingest(ctx context.Context, r io.Reader, logger *slog.Logger) (*Result, error) {
	result := &Result{
		Metadata: make(map[string]any),
		Aux:      make(map[string]json.RawMessage),
	}

	buf := make([]byte, 32*1024)
	var pending string

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := r.Read(buf)
		if n > 0 {
			pending += string(buf[:n])

			// All but the final fragment are complete lines; the final one
			// may be split across a chunk boundary and waits for more bytes.
			lines := strings.Split(pending, "\n")
			pending = lines[len(lines)-1]
			for _, line := range lines[:len(lines)-1] {
				ingestLine(line, result, logger)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stream read error: %w", err)
		}
	}

	// A final line without a trailing newline still counts at EOF.
	ingestLine(pending, result, logger)

	if result.Entity == nil {
		result.Entity = entity.Infer(result.ResponseText, result.Aux)
	}

	return result, nil
}

func ingestLine(line string, result *Result, logger *slog.Logger) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, dataPrefix) {
		// Protocol comments and keep-alives
		return
	}

	payload := strings.TrimSpace(strings.TrimPrefix(trimmed, dataPrefix))
	if payload == "" {
		return
	}

	var record map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		logger.Warn("skipping malformed stream record", slog.String("error", err.Error()))
		return
	}

	for key, raw := range record {
		switch key {
		case "content":
			result.ResponseText += extractText(raw)
		case "entity":
			var suggestion entity.Suggestion
			if err := json.Unmarshal(raw, &suggestion); err != nil || suggestion.EntityName == "" {
				logger.Warn("skipping unreadable entity field", slog.String("payload", string(raw)))
				continue
			}
			result.Entity = &suggestion
		case "metadata":
			var fragment map[string]any
			if err := json.Unmarshal(raw, &fragment); err != nil {
				logger.Warn("skipping unreadable metadata field", slog.String("payload", string(raw)))
				continue
			}
			for k, v := range fragment {
				result.Metadata[k] = v
			}
		default:
			result.Aux[key] = raw
		}
	}
}

type textFragment struct {
	Text string `json:"text"`
}

// extractText pulls reply text out of a record's content field. Four shapes
// are recognized, first match wins: a fragment list, a plain string, a
// mapping with a parts list, a mapping with a direct text field.
func extractText(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return ""
	}

	switch trimmed[0] {
	case '[':
		var fragments []textFragment
		if err := json.Unmarshal(raw, &fragments); err != nil {
			return ""
		}
		return joinFragments(fragments)
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '{':
		var content struct {
			Parts []textFragment `json:"parts"`
			Text  string         `json:"text"`
		}
		if err := json.Unmarshal(raw, &content); err != nil {
			return ""
		}
		if content.Parts != nil {
			return joinFragments(content.Parts)
		}
		return content.Text
	default:
		return ""
	}
}

func joinFragments(fragments []textFragment) string {
	var sb strings.Builder
	for _, f := range fragments {
		sb.WriteString(f.Text)
	}
	return sb.String()
}
