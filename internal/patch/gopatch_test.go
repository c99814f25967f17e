package patch

import (
	"go/parser"
	"go/token"
	"testing"

	"github.com/dave/dst"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sortSource = `package sorting

import "sort"

// Sum adds all values.
func Sum(xs []int) int {
	total := 0
	for i := 0; i < len(xs); i++ {
		total = total + xs[i]
	}
	return total
}

type Bag struct{ items []int }

// Sorted returns the items in ascending order.
func (b *Bag) Sorted() []int {
	out := append([]int(nil), b.items...)
	sort.Ints(out)
	return out
}
`

func assertParses(t *testing.T, src []byte) {
	t.Helper()
	_, err := parser.ParseFile(token.NewFileSet(), "patched.go", src, parser.ParseComments)
	require.NoError(t, err, string(src))
}

func TestGoPatcherReplacesFunction(t *testing.T) {
	candidate := `func Sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}`
	out, err := GoPatcher{}.Apply([]byte(sortSource), []string{"Sum"}, candidate)
	require.NoError(t, err)
	assertParses(t, out)

	s := string(out)
	assert.Contains(t, s, "for _, x := range xs")
	assert.NotContains(t, s, "total = total + xs[i]")
	assert.Contains(t, s, "// Sum adds all values.")
	assert.Contains(t, s, "func (b *Bag) Sorted() []int")
}

func TestGoPatcherReplacesMethodAndMergesImports(t *testing.T) {
	candidate := `package sorting

import "slices"

func (b *Bag) Sorted() []int {
	return sortedCopy(b.items)
}

func sortedCopy(xs []int) []int {
	out := slices.Clone(xs)
	slices.Sort(out)
	return out
}
`
	out, err := GoPatcher{}.Apply([]byte(sortSource), []string{"(*Bag).Sorted"}, candidate)
	require.NoError(t, err)
	assertParses(t, out)

	s := string(out)
	assert.Contains(t, s, `"slices"`)
	assert.NotContains(t, s, `"sort"`, "sort was only used by the replaced method")
	assert.Contains(t, s, "return sortedCopy(b.items)")
	assert.Contains(t, s, "func sortedCopy(xs []int) []int")
	assert.Contains(t, s, "func Sum(xs []int) int", "untouched functions survive")
}

func TestGoPatcherRemovesUnusedImports(t *testing.T) {
	original := `package text

import (
	"strings"
	"unicode"
)

// Up upper-cases s.
func Up(s string) string {
	return strings.ToUpper(s)
}

func IsSpace(r rune) bool {
	return unicode.IsSpace(r)
}
`
	out, err := GoPatcher{}.Apply([]byte(original), []string{"Up"}, "func Up(s string) string { return s }")
	require.NoError(t, err)
	assertParses(t, out)

	s := string(out)
	assert.NotContains(t, s, `"strings"`)
	assert.Contains(t, s, `"unicode"`)
	assert.NotContains(t, s, "ToUpper")
}

func TestGoPatcherRemovesLastImport(t *testing.T) {
	original := `package text

import "strings"

func Up(s string) string {
	return strings.ToUpper(s)
}
`
	out, err := GoPatcher{}.Apply([]byte(original), []string{"Up"}, "func Up(s string) string { return s }")
	require.NoError(t, err)
	assertParses(t, out)
	assert.NotContains(t, string(out), "import")
}

func TestGoPatcherKeepsImportsItCannotResolve(t *testing.T) {
	// The package name of example.com/go-thing is not derivable from its
	// path and blank imports are never referenced, so both stay.
	original := `package text

import (
	_ "embed"

	"example.com/go-thing"
	lib "example.com/lib/v2"
)

func Up(s string) string {
	return thing.Up(lib.Trim(s))
}
`
	out, err := GoPatcher{}.Apply([]byte(original), []string{"Up"}, "func Up(s string) string { return s }")
	require.NoError(t, err)
	assertParses(t, out)

	s := string(out)
	assert.Contains(t, s, `_ "embed"`)
	assert.Contains(t, s, `"example.com/go-thing"`)
	assert.NotContains(t, s, `"example.com/lib/v2"`)
}

func TestImportName(t *testing.T) {
	tests := map[string]string{
		`"strings"`:          "strings",
		`"math/rand/v2"`:     "rand",
		`"gopkg.in/yaml.v3"`: "yaml",
		`"net/http"`:         "http",
	}
	for path, want := range tests {
		assert.Equal(t, want, importName(&dst.ImportSpec{Path: &dst.BasicLit{Value: path}}), path)
	}
	assert.Equal(t, "y", importName(&dst.ImportSpec{Name: dst.NewIdent("y"), Path: &dst.BasicLit{Value: `"gopkg.in/yaml.v3"`}}))
}

func TestGoPatcherMissingTargetDecl(t *testing.T) {
	_, err := GoPatcher{}.Apply([]byte(sortSource), []string{"Product"}, "func Product() {}")
	assert.ErrorIs(t, err, ErrDeclNotFound)
}

func TestGoPatcherNoReplacement(t *testing.T) {
	_, err := GoPatcher{}.Apply([]byte(sortSource), []string{"Sum"}, "func Other() {}")
	assert.ErrorIs(t, err, ErrNoReplacement)
}

func TestGoPatcherInvalidCandidate(t *testing.T) {
	_, err := GoPatcher{}.Apply([]byte(sortSource), []string{"Sum"}, "func Sum( {")
	assert.Error(t, err)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "Bag.Sorted", normalizeName("(*Bag).Sorted"))
	assert.Equal(t, "Bag.Sorted", normalizeName("Bag.Sorted"))
	assert.Equal(t, "Sum", normalizeName(" Sum "))
}

func TestPackageName(t *testing.T) {
	name, err := PackageName([]byte(sortSource))
	require.NoError(t, err)
	assert.Equal(t, "sorting", name)

	_, err = PackageName([]byte("not go"))
	assert.Error(t, err)
}
