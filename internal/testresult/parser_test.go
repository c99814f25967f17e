package testresult

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetParser(t *testing.T) {
	for _, name := range []string{"", "jsonl", "gotest", "junit"} {
		p, err := GetParser(name)
		require.NoError(t, err, name)
		assert.NotNil(t, p)
	}

	_, err := GetParser("tap")
	require.Error(t, err)
	var unsupported *UnsupportedParserError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "tap", unsupported.Name)
}

func TestJSONLParser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")
	content := `{"id":"pkg.TestA","passed":true,"runtime_ns":1200,"digest":"abc"}

{"id":"pkg.TestB","passed":false}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rs, err := (&JSONLParser{}).Parse(&RunOutput{ResultFile: path}, TypeGeneratedRegression)
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())

	a, _ := rs.GetByID("pkg.TestA")
	assert.True(t, a.Passed)
	assert.Equal(t, "abc", a.ValueDigest)
	assert.Equal(t, TypeGeneratedRegression, a.Type)
	assert.Equal(t, int64(1200), *a.RuntimeNS)

	b, _ := rs.GetByID("pkg.TestB")
	assert.False(t, b.Passed)
	assert.Nil(t, b.RuntimeNS)
}

func TestJSONLParserMissingFile(t *testing.T) {
	rs, err := (&JSONLParser{}).Parse(&RunOutput{ResultFile: filepath.Join(t.TempDir(), "none.jsonl")}, TypeExistingUnitTest)
	require.NoError(t, err)
	assert.Equal(t, 0, rs.Len())
}

func TestJSONLParserMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{not json\n"), 0o644))

	_, err := (&JSONLParser{}).Parse(&RunOutput{ResultFile: path}, TypeExistingUnitTest)
	assert.Error(t, err)
}

func TestGoTestParser(t *testing.T) {
	stdout := `{"Action":"run","Package":"example.com/p","Test":"TestA"}
{"Action":"pass","Package":"example.com/p","Test":"TestA","Elapsed":0.5}
{"Action":"run","Package":"example.com/p","Test":"TestB"}
{"Action":"pass","Package":"example.com/p","Test":"TestB/case_1","Elapsed":0.1}
{"Action":"fail","Package":"example.com/p","Test":"TestB/case_2","Elapsed":0.2}
{"Action":"fail","Package":"example.com/p","Test":"TestB","Elapsed":0.3}
{"Action":"skip","Package":"example.com/p","Test":"TestC","Elapsed":0}
{"Action":"pass","Package":"example.com/p","Elapsed":1.2}
not json at all
`
	rs, err := (&GoTestParser{}).Parse(&RunOutput{Stdout: []byte(stdout)}, TypeExistingUnitTest)
	require.NoError(t, err)
	require.Equal(t, 3, rs.Len())

	a, ok := rs.GetByID("example.com/p:TestA")
	require.True(t, ok)
	assert.True(t, a.Passed)
	assert.Equal(t, int64(500_000_000), *a.RuntimeNS)

	_, ok = rs.GetByID("example.com/p:TestB")
	assert.False(t, ok, "parent of subtests is dropped")

	c2, ok := rs.GetByID("example.com/p:TestB/case_2")
	require.True(t, ok)
	assert.False(t, c2.Passed)
}

func TestJUnitParser(t *testing.T) {
	report := `<?xml version="1.0" encoding="UTF-8"?>
<testsuites>
  <testsuite name="math">
    <testcase classname="math" name="add" time="0.25"/>
    <testcase classname="math" name="sub" time="0.5"><failure message="boom"/></testcase>
    <testcase classname="math" name="mul" time="0.1"><skipped/></testcase>
  </testsuite>
</testsuites>`
	path := filepath.Join(t.TempDir(), "junit.xml")
	require.NoError(t, os.WriteFile(path, []byte(report), 0o644))

	rs, err := (&JUnitParser{}).Parse(&RunOutput{ResultFile: path}, TypeExistingUnitTest)
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())

	add, _ := rs.GetByID("math.add")
	assert.True(t, add.Passed)
	assert.Equal(t, int64(250_000_000), *add.RuntimeNS)

	sub, _ := rs.GetByID("math.sub")
	assert.False(t, sub.Passed)
	assert.Equal(t, int64(250_000_000), rs.TotalPassedRuntime())
}

func TestJUnitParserFromStdout(t *testing.T) {
	stdout := "running...\n<testsuite name=\"x\"><testcase name=\"only\" time=\"1\"/></testsuite>"
	rs, err := (&JUnitParser{}).Parse(&RunOutput{Stdout: []byte(stdout)}, TypeExistingUnitTest)
	require.NoError(t, err)
	only, ok := rs.GetByID("only")
	require.True(t, ok)
	assert.Equal(t, int64(1_000_000_000), *only.RuntimeNS)
}
