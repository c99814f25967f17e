package patch

import (
	"bytes"
	"fmt"
	"go/token"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
)

// Patcher rewrites a source file so the named functions take the
// definitions given in candidate.
type Patcher interface {
	Apply(original []byte, names []string, candidate string) ([]byte, error)
}

var packageClause = regexp.MustCompile(`(?m)^\s*package\s+\w+`)

// GoPatcher replaces Go function and method declarations. Names are either
// "Func" or "Type.Method"; "(*Type).Method" is accepted too. Functions the
// candidate defines that the file lacks are appended, candidate imports
// missing from the file are added and imports the patched file no longer
// references are removed.
type GoPatcher struct{}

func (GoPatcher) Apply(original []byte, names []string, candidate string) ([]byte, error) {
	target, err := decorator.Parse(original)
	if err != nil {
		return nil, fmt.Errorf("failed to parse target file: %w", err)
	}

	src := candidate
	if !packageClause.MatchString(src) {
		src = "package " + target.Name.Name + "\n\n" + src
	}
	cand, err := decorator.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse candidate: %w", err)
	}

	// Package names referenced before patching; an import is only pruned
	// when its name was provably in use and no longer is.
	referenced := selectorRoots(target)
	for name := range selectorRoots(cand) {
		referenced[name] = true
	}

	targetIdx := make(map[string]int)
	for i, decl := range target.Decls {
		if fd, ok := decl.(*dst.FuncDecl); ok {
			targetIdx[funcKey(fd)] = i
		}
	}

	candFuncs := make(map[string]*dst.FuncDecl)
	var candOrder []string
	for _, decl := range cand.Decls {
		if fd, ok := decl.(*dst.FuncDecl); ok {
			key := funcKey(fd)
			if _, seen := candFuncs[key]; !seen {
				candOrder = append(candOrder, key)
			}
			candFuncs[key] = fd
		}
	}

	wanted := make(map[string]bool, len(names))
	replaced := 0
	for _, name := range names {
		key := normalizeName(name)
		wanted[key] = true
		idx, ok := targetIdx[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrDeclNotFound, name)
		}
		fd, ok := candFuncs[key]
		if !ok {
			continue
		}
		old := target.Decls[idx].(*dst.FuncDecl)
		repl := dst.Clone(fd).(*dst.FuncDecl)
		repl.Decs.Before = old.Decs.Before
		if len(repl.Decs.Start) == 0 {
			repl.Decs.Start = old.Decs.Start
		}
		target.Decls[idx] = repl
		replaced++
	}
	if replaced == 0 {
		return nil, ErrNoReplacement
	}

	for _, key := range candOrder {
		if wanted[key] {
			continue
		}
		if _, exists := targetIdx[key]; exists {
			continue
		}
		helper := dst.Clone(candFuncs[key]).(*dst.FuncDecl)
		helper.Decs.Before = dst.EmptyLine
		target.Decls = append(target.Decls, helper)
	}

	mergeImports(target, cand)
	pruneImports(target, referenced)

	var buf bytes.Buffer
	if err := decorator.Fprint(&buf, target); err != nil {
		return nil, fmt.Errorf("failed to print patched file: %w", err)
	}
	return buf.Bytes(), nil
}

func funcKey(fd *dst.FuncDecl) string {
	if fd.Recv == nil || len(fd.Recv.List) == 0 {
		return fd.Name.Name
	}
	return receiverName(fd.Recv.List[0].Type) + "." + fd.Name.Name
}

func receiverName(expr dst.Expr) string {
	switch t := expr.(type) {
	case *dst.StarExpr:
		return receiverName(t.X)
	case *dst.IndexExpr:
		return receiverName(t.X)
	case *dst.IndexListExpr:
		return receiverName(t.X)
	case *dst.ParenExpr:
		return receiverName(t.X)
	case *dst.Ident:
		return t.Name
	default:
		return ""
	}
}

func normalizeName(name string) string {
	return strings.NewReplacer("(", "", ")", "", "*", "").Replace(strings.TrimSpace(name))
}

func mergeImports(target, cand *dst.File) {
	existing := make(map[string]bool)
	var importDecl *dst.GenDecl
	for _, decl := range target.Decls {
		gd, ok := decl.(*dst.GenDecl)
		if !ok || gd.Tok != token.IMPORT {
			continue
		}
		if importDecl == nil {
			importDecl = gd
		}
		for _, spec := range gd.Specs {
			existing[spec.(*dst.ImportSpec).Path.Value] = true
		}
	}

	var missing []dst.Spec
	for _, decl := range cand.Decls {
		gd, ok := decl.(*dst.GenDecl)
		if !ok || gd.Tok != token.IMPORT {
			continue
		}
		for _, spec := range gd.Specs {
			is := spec.(*dst.ImportSpec)
			if existing[is.Path.Value] {
				continue
			}
			existing[is.Path.Value] = true
			clone := dst.Clone(is).(*dst.ImportSpec)
			clone.Decs.Before = dst.NewLine
			clone.Decs.After = dst.NewLine
			missing = append(missing, clone)
		}
	}
	if len(missing) == 0 {
		return
	}

	if importDecl == nil {
		importDecl = &dst.GenDecl{Tok: token.IMPORT}
		target.Decls = append([]dst.Decl{importDecl}, target.Decls...)
	}
	importDecl.Specs = append(importDecl.Specs, missing...)
	if len(importDecl.Specs) > 1 {
		importDecl.Lparen = true
		importDecl.Rparen = true
	}
}

// pruneImports drops imports whose package name was referenced before the
// patch but is no longer referenced by the patched file. Blank and dot
// imports are kept.
func pruneImports(f *dst.File, before map[string]bool) {
	after := selectorRoots(f)
	decls := f.Decls[:0]
	for _, decl := range f.Decls {
		gd, ok := decl.(*dst.GenDecl)
		if !ok || gd.Tok != token.IMPORT {
			decls = append(decls, decl)
			continue
		}
		specs := gd.Specs[:0]
		for _, spec := range gd.Specs {
			name := importName(spec.(*dst.ImportSpec))
			if name != "_" && name != "." && before[name] && !after[name] {
				continue
			}
			specs = append(specs, spec)
		}
		if len(specs) == 0 {
			continue
		}
		gd.Specs = specs
		decls = append(decls, gd)
	}
	f.Decls = decls
}

// selectorRoots returns the identifiers used as X in X.Sel expressions.
func selectorRoots(f *dst.File) map[string]bool {
	roots := make(map[string]bool)
	dst.Inspect(f, func(n dst.Node) bool {
		if sel, ok := n.(*dst.SelectorExpr); ok {
			if id, ok := sel.X.(*dst.Ident); ok {
				roots[id.Name] = true
			}
		}
		return true
	})
	return roots
}

var majorVersion = regexp.MustCompile(`^v[0-9]+$`)

// importName returns the explicit name of an import or the conventional
// package name derived from its path ("math/rand/v2" is rand,
// "gopkg.in/yaml.v3" is yaml).
func importName(is *dst.ImportSpec) string {
	if is.Name != nil {
		return is.Name.Name
	}
	p, err := strconv.Unquote(is.Path.Value)
	if err != nil {
		return ""
	}
	base := path.Base(p)
	if majorVersion.MatchString(base) && path.Dir(p) != "." {
		base = path.Base(path.Dir(p))
	}
	if i := strings.Index(base, ".v"); i > 0 {
		base = base[:i]
	}
	return base
}

// PackageName returns the package clause of a Go source file.
func PackageName(src []byte) (string, error) {
	f, err := decorator.Parse(src)
	if err != nil {
		return "", fmt.Errorf("failed to parse source: %w", err)
	}
	return f.Name.Name, nil
}
