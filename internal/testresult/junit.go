package testresult

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type junitNode struct {
	Suites []junitNode `xml:"testsuite"`
	Cases  []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name      string    `xml:"name,attr"`
	Classname string    `xml:"classname,attr"`
	Time      string    `xml:"time,attr"`
	Failure   *struct{} `xml:"failure"`
	Error     *struct{} `xml:"error"`
	Skipped   *struct{} `xml:"skipped"`
}

// JUnitParser reads a JUnit XML report from the result file, falling back
// to stdout when no file was written.
type JUnitParser struct{}

func (p *JUnitParser) Name() string { return "junit" }

func (p *JUnitParser) Parse(out *RunOutput, testType TestType) (*ResultSet, error) {
	rs := New()
	if out == nil {
		return rs, nil
	}

	data := out.Stdout
	if out.ResultFile != "" {
		fileData, err := os.ReadFile(out.ResultFile)
		switch {
		case err == nil:
			data = fileData
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read junit report: %w", err)
		}
	}

	start := strings.Index(string(data), "<testsuite")
	if start < 0 {
		return rs, nil
	}

	var root junitNode
	if err := xml.Unmarshal(data[start:], &root); err != nil {
		return nil, fmt.Errorf("failed to parse junit report: %w", err)
	}
	collectJUnit(rs, root, testType)
	return rs, nil
}

func collectJUnit(rs *ResultSet, node junitNode, testType TestType) {
	for _, c := range node.Cases {
		if c.Skipped != nil {
			continue
		}
		id := c.Name
		if c.Classname != "" {
			id = c.Classname + "." + c.Name
		}
		o := Outcome{
			ID:     id,
			Type:   testType,
			Passed: c.Failure == nil && c.Error == nil,
		}
		if secs, err := strconv.ParseFloat(strings.TrimSpace(c.Time), 64); err == nil {
			o.RuntimeNS = Int64Ptr(int64(secs * 1e9))
		}
		rs.Add(o)
	}
	for _, s := range node.Suites {
		collectJUnit(rs, s, testType)
	}
}
