package testresult

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// record is one line of the structured result file written by the probe package.
type record struct {
	ID        string `json:"id"`
	Passed    bool   `json:"passed"`
	RuntimeNS *int64 `json:"runtime_ns,omitempty"`
	Digest    string `json:"digest,omitempty"`
}

// JSONLParser reads the line-delimited result file the instrumented tests
// append to. A missing file means no test recorded anything.
type JSONLParser struct{}

func (p *JSONLParser) Name() string { return "jsonl" }

func (p *JSONLParser) Parse(out *RunOutput, testType TestType) (*ResultSet, error) {
	rs := New()
	if out == nil || out.ResultFile == "" {
		return rs, nil
	}

	data, err := os.ReadFile(out.ResultFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return rs, nil
		}
		return nil, fmt.Errorf("failed to read result file: %w", err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(text, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse result line %d: %w", line, err)
		}
		if rec.ID == "" {
			return nil, fmt.Errorf("result line %d has no id", line)
		}
		rs.Add(Outcome{
			ID:          rec.ID,
			Type:        testType,
			Passed:      rec.Passed,
			RuntimeNS:   rec.RuntimeNS,
			ValueDigest: rec.Digest,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan result file: %w", err)
	}
	return rs, nil
}
