package testresult

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
)

// testEvent mirrors the fields of `go test -json` we care about.
type testEvent struct {
	Action  string  `json:"Action"`
	Package string  `json:"Package"`
	Test    string  `json:"Test"`
	Elapsed float64 `json:"Elapsed"`
}

// GoTestParser reads `go test -json` events from stdout. Parent tests
// that ran subtests are dropped so their time is not counted twice.
type GoTestParser struct{}

func (p *GoTestParser) Name() string { return "gotest" }

func (p *GoTestParser) Parse(out *RunOutput, testType TestType) (*ResultSet, error) {
	rs := New()
	if out == nil {
		return rs, nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(out.Stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var names []string
	for scanner.Scan() {
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 || text[0] != '{' {
			continue
		}
		var ev testEvent
		if err := json.Unmarshal(text, &ev); err != nil {
			continue
		}
		if ev.Test == "" || (ev.Action != "pass" && ev.Action != "fail") {
			continue
		}
		id := ev.Package + ":" + ev.Test
		rs.Add(Outcome{
			ID:        id,
			Type:      testType,
			Passed:    ev.Action == "pass",
			RuntimeNS: Int64Ptr(int64(ev.Elapsed * 1e9)),
		})
		names = append(names, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for _, id := range names {
		for _, other := range names {
			if strings.HasPrefix(other, id+"/") {
				delete(rs.outcomes, id)
				break
			}
		}
	}
	return rs, nil
}
