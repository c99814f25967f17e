package testresult

// Parser turns the raw output of one suite invocation into outcomes.
type Parser interface {
	// Name returns the parser identifier (e.g. "jsonl").
	Name() string

	// Parse extracts outcomes of the given type from out.
	Parse(out *RunOutput, testType TestType) (*ResultSet, error)
}

// GetParser returns the Parser registered under name.
func GetParser(name string) (Parser, error) {
	switch name {
	case "jsonl", "":
		return &JSONLParser{}, nil
	case "gotest":
		return &GoTestParser{}, nil
	case "junit":
		return &JUnitParser{}, nil
	default:
		return nil, &UnsupportedParserError{Name: name}
	}
}

// UnsupportedParserError is returned when an unknown parser is requested.
type UnsupportedParserError struct {
	Name string
}

func (e *UnsupportedParserError) Error() string {
	return "unsupported result parser: " + e.Name
}
