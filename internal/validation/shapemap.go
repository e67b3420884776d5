// Package validation defines how test cases are validated: it parses result
// shape maps, compares computed and expected maps, and talks to a remote
// shape validation service.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/waabox/ontoloci/internal/domain"
)

// ParseShapeMap reads a result shape map written either as a JSON array of
// {node, shape, status} objects or in compact syntax ("node@shape, node@!shape").
// Blank input is an empty map.
func ParseShapeMap(s string) (domain.ShapeMap, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.ShapeMap{}, nil
	}
	if strings.HasPrefix(s, "[") {
		return parseJSON(s)
	}
	return parseCompact(s)
}

type rawAssociation struct {
	Node   string `json:"node"`
	Shape  string `json:"shape"`
	Status string `json:"status"`
}

func parseJSON(s string) (domain.ShapeMap, error) {
	var raw []rawAssociation
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("decoding shape map: %w", err)
	}
	return fromRaw(raw)
}

func fromRaw(raw []rawAssociation) (domain.ShapeMap, error) {
	out := make(domain.ShapeMap, 0, len(raw))
	for i, r := range raw {
		if r.Node == "" || r.Shape == "" {
			return nil, fmt.Errorf("association %d: node and shape are required", i)
		}
		status, err := parseStatus(r.Status)
		if err != nil {
			return nil, fmt.Errorf("association %d: %w", i, err)
		}
		out = append(out, domain.Association{Node: r.Node, Shape: r.Shape, Status: status})
	}
	return out, nil
}

func parseStatus(s string) (domain.ConformanceStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "conformant", "valid":
		return domain.Conformant, nil
	case "nonconformant", "invalid":
		return domain.NonConformant, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

func parseCompact(s string) (domain.ShapeMap, error) {
	var out domain.ShapeMap
	for _, item := range splitTopLevel(s) {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		at := lastTopLevelAt(item)
		if at <= 0 || at == len(item)-1 {
			return nil, fmt.Errorf("malformed association %q", item)
		}
		node := strings.TrimSpace(item[:at])
		shape := strings.TrimSpace(item[at+1:])
		status := domain.Conformant
		if strings.HasPrefix(shape, "!") {
			status = domain.NonConformant
			shape = strings.TrimSpace(shape[1:])
		}
		if shape == "" {
			return nil, fmt.Errorf("malformed association %q", item)
		}
		out = append(out, domain.Association{Node: node, Shape: shape, Status: status})
	}
	return out, nil
}

// splitTopLevel splits on commas that are outside IRIs and string literals.
func splitTopLevel(s string) []string {
	var parts []string
	depth, inString, start := 0, false, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inString = !inString
		case inString:
		case c == '<' || c == '{':
			depth++
		case c == '>' || c == '}':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func lastTopLevelAt(s string) int {
	idx := -1
	depth, inString := 0, false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inString = !inString
		case inString:
		case c == '<':
			depth++
		case c == '>':
			depth--
		case c == '@' && depth == 0:
			idx = i
		}
	}
	return idx
}
