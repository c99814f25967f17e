package job

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileName is the job file looked up inside a job directory.
const FileName = "job.yaml"

// ErrDuplicateFunction is returned when two functions share an ID.
var ErrDuplicateFunction = errors.New("duplicate function id")

// Load loads a job by name or path. A path to a YAML file or to a directory
// containing job.yaml is used directly; otherwise the name is looked up in
// jobsDir as <name>/job.yaml or <name>.yaml.
func Load(name, jobsDir string) (*Job, error) {
	path, err := resolve(name, jobsDir)
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile parses and validates a job file. Relative paths in the file are
// resolved against the file's directory.
func LoadFile(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}

	var j Job
	if err := yaml.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("failed to parse job file %s: %w", path, err)
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve job directory: %w", err)
	}
	if j.Root == "" {
		j.Root = "."
	}
	if !filepath.IsAbs(j.Root) {
		j.Root = filepath.Join(base, j.Root)
	}
	for i := range j.Functions {
		fn := &j.Functions[i]
		if fn.CandidatesFile != "" && !filepath.IsAbs(fn.CandidatesFile) {
			fn.CandidatesFile = filepath.Join(base, fn.CandidatesFile)
		}
		if fn.GeneratedSuite != nil && fn.GeneratedSuite.Source != "" && !filepath.IsAbs(fn.GeneratedSuite.Source) {
			fn.GeneratedSuite.Source = filepath.Join(base, fn.GeneratedSuite.Source)
		}
	}

	if err := Validate(&j); err != nil {
		return nil, fmt.Errorf("invalid job file %s: %w", path, err)
	}
	return &j, nil
}

// Validate checks field constraints and that function IDs are unique.
func Validate(j *Job) error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(j); err != nil {
		return err
	}
	seen := make(map[string]bool, len(j.Functions))
	for _, fn := range j.Functions {
		if seen[fn.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateFunction, fn.ID)
		}
		seen[fn.ID] = true
	}
	return nil
}

// List returns the names of the jobs available in jobsDir.
func List(jobsDir string) ([]string, error) {
	entries, err := os.ReadDir(jobsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		switch {
		case e.IsDir():
			if _, err := os.Stat(filepath.Join(jobsDir, e.Name(), FileName)); err == nil {
				names = append(names, e.Name())
			}
		case strings.HasSuffix(e.Name(), ".yaml"):
			names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
		}
	}
	sort.Strings(names)
	return names, nil
}

func resolve(name, jobsDir string) (string, error) {
	if info, err := os.Stat(name); err == nil {
		if info.IsDir() {
			return filepath.Join(name, FileName), nil
		}
		return name, nil
	}

	if jobsDir != "" {
		candidates := []string{
			filepath.Join(jobsDir, name, FileName),
			filepath.Join(jobsDir, name+".yaml"),
		}
		for _, p := range candidates {
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("job %q not found", name)
}
