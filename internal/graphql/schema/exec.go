package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sync"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/zatekoja/coveragecompare/internal/graphql/scalars"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
)

// fieldFunc resolves one field of an object. Lists are returned as []any and
// absent values as an untyped nil.
type fieldFunc func(ctx context.Context, ec *executionContext, obj any, args map[string]any) (any, error)

type executionContext struct {
	opCtx     *graphql.OperationContext
	schema    *ast.Schema
	resolvers ResolverRoot

	mu     sync.Mutex
	errors gqlerror.List
}

func (ec *executionContext) addError(path ast.Path, err error) {
	gqlErr := &gqlerror.Error{
		Message:    err.Error(),
		Path:       path,
		Extensions: map[string]interface{}{"code": string(apperrors.TypeOf(err))},
	}
	ec.mu.Lock()
	ec.errors = append(ec.errors, gqlErr)
	ec.mu.Unlock()
}

// object resolves the selected fields of obj. It returns false when a
// non-null field came back null, which nulls the parent.
func (ec *executionContext) object(ctx context.Context, typeName string, obj any, sel ast.SelectionSet, path ast.Path) (graphql.Marshaler, bool) {
	fields := graphql.CollectFields(ec.opCtx, sel, []string{typeName})
	table := objectFields[typeName]
	out := &orderedObject{}

	for _, f := range fields {
		fieldPath := appendPath(path, ast.PathName(f.Alias))
		if f.Name == "__typename" {
			out.add(f.Alias, graphql.MarshalString(typeName))
			continue
		}
		fn, ok := table[f.Name]
		if !ok {
			ec.addError(fieldPath, fmt.Errorf("field %s.%s is not served", typeName, f.Name))
			return nil, false
		}

		v, err := fn(ctx, ec, obj, f.ArgumentMap(ec.opCtx.Variables))
		if err != nil {
			ec.addError(fieldPath, err)
			if f.Definition.Type.NonNull {
				return nil, false
			}
			out.add(f.Alias, graphql.Null)
			continue
		}
		m, ok := ec.value(ctx, f.Definition.Type, v, f.Selections, fieldPath)
		if !ok {
			return nil, false
		}
		out.add(f.Alias, m)
	}
	return out, true
}

func (ec *executionContext) value(ctx context.Context, typ *ast.Type, v any, sel ast.SelectionSet, path ast.Path) (graphql.Marshaler, bool) {
	if isNil(v) {
		if typ.NonNull {
			ec.addError(path, fmt.Errorf("must not be null"))
			return nil, false
		}
		return graphql.Null, true
	}

	var (
		m  graphql.Marshaler
		ok bool
	)
	switch {
	case typ.Elem != nil:
		items, isList := v.([]any)
		if !isList {
			ec.addError(path, fmt.Errorf("expected a list, got %T", v))
			return nil, false
		}
		m, ok = ec.list(ctx, typ.Elem, items, sel, path)
	case ec.isObject(typ):
		m, ok = ec.object(ctx, typ.NamedType, v, sel, path)
	default:
		m, ok = leaf(v), true
	}
	if !ok {
		if typ.NonNull {
			return nil, false
		}
		return graphql.Null, true
	}
	return m, true
}

// list resolves object items concurrently so loaders can batch across them
func (ec *executionContext) list(ctx context.Context, elem *ast.Type, items []any, sel ast.SelectionSet, path ast.Path) (graphql.Marshaler, bool) {
	out := make(graphql.Array, len(items))
	oks := make([]bool, len(items))

	resolveItem := func(i int) {
		out[i], oks[i] = ec.value(ctx, elem, items[i], sel, appendPath(path, ast.PathIndex(i)))
	}
	if len(items) < 2 || !ec.isObject(elem) {
		for i := range items {
			resolveItem(i)
		}
	} else {
		var wg sync.WaitGroup
		for i := range items {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				resolveItem(i)
			}(i)
		}
		wg.Wait()
	}

	for _, ok := range oks {
		if !ok {
			return nil, false
		}
	}
	return out, true
}

func (ec *executionContext) isObject(typ *ast.Type) bool {
	def := ec.schema.Types[typ.Name()]
	return def != nil && def.Kind == ast.Object
}

func leaf(v any) graphql.Marshaler {
	switch x := v.(type) {
	case string:
		return graphql.MarshalString(x)
	case bool:
		return graphql.MarshalBoolean(x)
	case int:
		return graphql.MarshalInt(x)
	case float64:
		return graphql.MarshalFloat(x)
	case time.Time:
		return scalars.MarshalDateTime(x)
	case fmt.Stringer:
		return graphql.MarshalString(x.String())
	default:
		return graphql.MarshalString(fmt.Sprint(x))
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func appendPath(path ast.Path, elem ast.PathElement) ast.Path {
	out := make(ast.Path, len(path), len(path)+1)
	copy(out, path)
	return append(out, elem)
}

// orderedObject writes fields in selection order
type orderedObject struct {
	keys   []string
	values []graphql.Marshaler
}

func (o *orderedObject) add(key string, value graphql.Marshaler) {
	o.keys = append(o.keys, key)
	o.values = append(o.values, value)
}

func (o *orderedObject) MarshalGQL(w io.Writer) {
	_, _ = io.WriteString(w, "{")
	for i, key := range o.keys {
		if i > 0 {
			_, _ = io.WriteString(w, ",")
		}
		graphql.MarshalString(key).MarshalGQL(w)
		_, _ = io.WriteString(w, ":")
		o.values[i].MarshalGQL(w)
	}
	_, _ = io.WriteString(w, "}")
}

func argString(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

func argOptionalString(args map[string]any, name string) *string {
	s, ok := args[name].(string)
	if !ok {
		return nil
	}
	return &s
}

func argInt(args map[string]any, name string, def int) (int, error) {
	switch v := args[name].(type) {
	case nil:
		return def, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("argument %s: %w", name, err)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("argument %s must be an integer, got %T", name, v)
	}
}
