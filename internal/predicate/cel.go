package predicate

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/tjfontaine/authpipe/internal/core/domain"
	"github.com/tjfontaine/authpipe/internal/core/ports"
)

// CEL compiles a CEL expression into a predicate. The expression sees:
//
//	path    string
//	method  string
//	host    string
//	query   map(string, list(string))
//	headers map(string, list(string))
//
// For example: `method == "GET" && path.startsWith("/users/")`.
// Compile errors and expressions whose type is not bool are returned here.
// Evaluation errors evaluate to false.
func CEL(expression string) (ports.Predicate, error) {
	env, err := cel.NewEnv(
		cel.Variable("path", cel.StringType),
		cel.Variable("method", cel.StringType),
		cel.Variable("host", cel.StringType),
		cel.Variable("query", cel.MapType(cel.StringType, cel.ListType(cel.StringType))),
		cel.Variable("headers", cel.MapType(cel.StringType, cel.ListType(cel.StringType))),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation failed: %w", issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("CEL expression must evaluate to bool, got %s", out)
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program creation failed: %w", err)
	}

	return func(v domain.View) bool {
		query := map[string][]string(v.Query)
		if query == nil {
			query = map[string][]string{}
		}
		headers := map[string][]string(v.Header)
		if headers == nil {
			headers = map[string][]string{}
		}

		out, _, err := program.Eval(map[string]any{
			"path":    v.Path,
			"method":  v.Method,
			"host":    v.Host,
			"query":   query,
			"headers": headers,
		})
		if err != nil {
			return false
		}
		matched, ok := out.Value().(bool)
		return ok && matched
	}, nil
}
