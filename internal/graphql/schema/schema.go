package schema

import (
	"bytes"
	"context"
	_ "embed"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/zatekoja/coveragecompare/internal/application/services"
	"github.com/zatekoja/coveragecompare/internal/domain/entities"
)

//go:embed schema.graphqls
var sourceSchema string

var parsedSchema = gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphqls", Input: sourceSchema})

// MappingEventPage is one page of the workbench queue
type MappingEventPage struct {
	Items []*entities.MappingEvent
	Total int
}

// EventQuery filters the workbench queue
type EventQuery struct {
	State   *string
	Insurer *string
	Limit   int
	Offset  int
}

// QueryResolver serves the root query fields
type QueryResolver interface {
	Resolve(ctx context.Context, insurer, coverageName string, proposalID *string) (*services.CompareResult, error)
	CanonicalCoverage(ctx context.Context, code string) (*entities.CanonicalCoverage, error)
	MappingEvents(ctx context.Context, q EventQuery) (*MappingEventPage, error)
	MappingEvent(ctx context.Context, id string) (*services.EventDetail, error)
}

// CoverageResolver turns stored codes into registry entries
type CoverageResolver interface {
	Coverage(ctx context.Context, code string) (*entities.CanonicalCoverage, error)
	Coverages(ctx context.Context, codes []string) ([]*entities.CanonicalCoverage, error)
}

// ResolverRoot is implemented by the resolvers package
type ResolverRoot interface {
	Query() QueryResolver
	Coverage() CoverageResolver
}

// Config wires resolvers into the schema
type Config struct {
	Resolvers ResolverRoot
}

// NewExecutableSchema creates the schema served by the gqlgen handler
func NewExecutableSchema(cfg Config) graphql.ExecutableSchema {
	return &executableSchema{schema: parsedSchema, resolvers: cfg.Resolvers}
}

type executableSchema struct {
	schema    *ast.Schema
	resolvers ResolverRoot
}

func (e *executableSchema) Schema() *ast.Schema {
	return e.schema
}

func (e *executableSchema) Complexity(ctx context.Context, typeName, fieldName string, childComplexity int, args map[string]any) (int, bool) {
	return 0, false
}

func (e *executableSchema) Exec(ctx context.Context) graphql.ResponseHandler {
	opCtx := graphql.GetOperationContext(ctx)
	if opCtx.Operation.Operation != ast.Query {
		return graphql.OneShot(graphql.ErrorResponse(ctx, "only queries are served"))
	}

	ec := &executionContext{opCtx: opCtx, schema: e.schema, resolvers: e.resolvers}
	data, ok := ec.object(ctx, "Query", nil, opCtx.Operation.SelectionSet, nil)

	resp := &graphql.Response{Errors: ec.errors, Data: []byte("null")}
	if ok {
		var buf bytes.Buffer
		data.MarshalGQL(&buf)
		resp.Data = buf.Bytes()
	}
	return graphql.OneShot(resp)
}
