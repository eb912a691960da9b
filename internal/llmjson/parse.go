// Package llmjson turns chat-model output into well-formed JSON mappings.
//
// Models asked for "JSON only" still wrap the object in markdown fences, add a
// prose preamble or stop half way through. Parse strips fences, decodes
// strictly, and hands back the caller's fallback when nothing usable is left.
package llmjson

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/spigell/talentmatch/internal/utils"
)

var (
	// ErrEmpty is returned for blank model output without a fallback.
	ErrEmpty = errors.New("empty response content")
	// ErrMalformed is returned when no JSON object could be decoded.
	ErrMalformed = errors.New("failed to parse JSON response")
)

var (
	fencedBlock = regexp.MustCompile("(?s)^```[A-Za-z0-9_+-]*\\s*(.*?)\\s*```")
	strayFence  = regexp.MustCompile("(?m)^```.*$")
)

const defaultPreviewLength = 200

// Parser decodes model output and logs what it had to give up on.
type Parser struct {
	logger    *zap.Logger
	maxLogLen int
}

// New creates a parser. A nil logger disables logging.
func New(logger *zap.Logger, maxLogLength int) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultPreviewLength
	}
	return &Parser{logger: logger, maxLogLen: maxLogLength}
}

// Parse decodes raw into a mapping with a silent parser.
func Parse(raw string, fallback map[string]any) (map[string]any, error) {
	return New(nil, 0).Parse(raw, fallback)
}

// Parse decodes raw into a mapping. When raw is blank or cannot be decoded the
// fallback is returned verbatim; without a fallback an error is returned.
func (p *Parser) Parse(raw string, fallback map[string]any) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		if fallback != nil {
			p.logger.Warn("empty model response, using fallback")
			return fallback, nil
		}
		return nil, ErrEmpty
	}

	cleaned := Clean(raw)

	data, err := decodeObject(cleaned)
	if err == nil {
		return data, nil
	}

	// Prose around an otherwise valid object.
	if candidate, ok := embeddedObject(cleaned); ok {
		if recovered, recErr := decodeObject(candidate); recErr == nil {
			p.logger.Debug("recovered JSON object embedded in model response",
				zap.Int("response_length", len(cleaned)),
			)
			return recovered, nil
		}
	}

	p.logger.Warn("model response is not valid JSON",
		zap.Error(err),
		zap.String("cleaned_preview", utils.TruncateForLog(cleaned, p.maxLogLen)),
		zap.Bool("fallback", fallback != nil),
	)

	if fallback != nil {
		return fallback, nil
	}

	return nil, errors.Mark(errors.Wrap(err, ErrMalformed.Error()), ErrMalformed)
}

// Clean strips surrounding whitespace and markdown fences from raw.
func Clean(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		if match := fencedBlock.FindStringSubmatch(cleaned); match != nil {
			cleaned = strings.TrimSpace(match[1])
		}
	}
	cleaned = strayFence.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

func decodeObject(s string) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, errors.New("response is JSON null")
	}
	return data, nil
}

// embeddedObject returns the object wrapped in prose inside s. A top-level
// array is not an object response, whatever its elements are.
func embeddedObject(s string) (string, bool) {
	if strings.HasPrefix(s, "[") {
		return "", false
	}
	candidate, ok := firstObject(s)
	if !ok || candidate == s {
		return "", false
	}
	return candidate, true
}

// firstObject returns the first balanced {...} span of s, honouring strings.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
