package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	appErrors "medpassport/internal/errors"
	"medpassport/internal/types"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const errCodeResponseParse = "AI_RESPONSE_PARSE_FAILED"

// chunkSchema accepts any subset of the four keys; a missing key means none found.
const chunkSchema = `{
  "type": "object",
  "properties": {
    "rotations": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "hospital":  {"type": "string"},
          "specialty": {"type": "string"},
          "dates":     {"type": "string"},
          "grade":     {"type": "string"}
        },
        "required": ["hospital"]
      }
    },
    "procedures": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "procedure": {"type": "string"},
          "level":     {"type": "string"},
          "count":     {"type": "integer", "minimum": 0}
        },
        "required": ["procedure"]
      }
    },
    "projects": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "type":  {"type": "string"},
          "title": {"type": "string"},
          "role":  {"type": "string"},
          "year":  {"type": "integer"}
        },
        "required": ["title"]
      }
    },
    "registrations": {
      "type": "array",
      "items": {"type": "string"}
    }
  }
}`

var (
	compiledSchema     *jsonschema.Schema
	compiledSchemaErr  error
	compiledSchemaOnce sync.Once
)

func chunkValidator() (*jsonschema.Schema, error) {
	compiledSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("chunk.json", strings.NewReader(chunkSchema)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, compiledSchemaErr = compiler.Compile("chunk.json")
	})
	return compiledSchema, compiledSchemaErr
}

// StripFences removes a surrounding markdown code fence such as ```json ... ```.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ExtractObject slices raw from the first '{' to the last '}'.
func ExtractObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// DecodeChunk turns a model reply into a ChunkClassification. Any failure
// means the chunk contributes nothing.
func DecodeChunk(raw string) (types.ChunkClassification, error) {
	body, ok := ExtractObject(StripFences(raw))
	if !ok {
		return types.ChunkClassification{}, appErrors.NewAIError(errCodeResponseParse, "No JSON object in AI response", nil)
	}

	schema, err := chunkValidator()
	if err != nil {
		return types.ChunkClassification{}, appErrors.NewInternalError(appErrors.ErrCodeInvalidConfig, "Chunk schema failed to compile", err)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return types.ChunkClassification{}, appErrors.NewAIError(errCodeResponseParse, "AI response is not valid JSON", err)
	}
	if err := schema.Validate(generic); err != nil {
		return types.ChunkClassification{}, appErrors.NewAIError(errCodeResponseParse, "AI response does not match schema", err)
	}

	var out types.ChunkClassification
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return types.ChunkClassification{}, appErrors.NewAIError(errCodeResponseParse, "Failed to decode AI response", err)
	}
	return normalize(out), nil
}

// normalize trims fields, drops empty entries and canonicalizes procedure levels.
func normalize(in types.ChunkClassification) types.ChunkClassification {
	out := types.ChunkClassification{
		Rotations:     []types.RotationCandidate{},
		Procedures:    []types.ProcedureCandidate{},
		Projects:      []types.ProjectCandidate{},
		Registrations: []string{},
	}

	for _, r := range in.Rotations {
		r.Hospital = strings.TrimSpace(r.Hospital)
		if r.Hospital == "" {
			continue
		}
		r.Specialty = strings.TrimSpace(r.Specialty)
		r.Dates = strings.TrimSpace(r.Dates)
		r.Grade = strings.TrimSpace(r.Grade)
		out.Rotations = append(out.Rotations, r)
	}
	for _, p := range in.Procedures {
		p.Procedure = strings.TrimSpace(p.Procedure)
		if p.Procedure == "" {
			continue
		}
		p.Level = canonicalLevel(p.Level)
		out.Procedures = append(out.Procedures, p)
	}
	for _, p := range in.Projects {
		p.Title = strings.TrimSpace(p.Title)
		if p.Title == "" {
			continue
		}
		p.Type = strings.TrimSpace(p.Type)
		p.Role = strings.TrimSpace(p.Role)
		out.Projects = append(out.Projects, p)
	}
	for _, reg := range in.Registrations {
		if reg = strings.TrimSpace(reg); reg != "" {
			out.Registrations = append(out.Registrations, reg)
		}
	}
	return out
}

func canonicalLevel(level string) string {
	level = strings.TrimSpace(level)
	for _, allowed := range types.ProcedureLevels {
		if strings.EqualFold(level, allowed) {
			return allowed
		}
	}
	return ""
}
