package store

import (
	"context"
	"fmt"

	"github.com/abgdnv/bookstore/internal/platform/mongodb"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// probe is a query whose plan is worth comparing.
type probe struct {
	label  string
	filter bson.D
}

var indexProbes = []probe{
	{label: "Query by title (using title index)", filter: bson.D{{"title", "1984"}}},
	{label: "Query by author and year (using compound index)", filter: bson.D{
		{"author", "George Orwell"},
		{"published_year", bson.D{{"$lt", 1950}}},
	}},
	{label: "Query without index (for comparison)", filter: bson.D{{"price", bson.D{{"$gt", 10}}}}},
}

// ExplainQueries runs explain with executionStats verbosity for each index probe.
func (s *MongoStore) ExplainQueries(ctx context.Context) ([]QueryPlan, error) {
	plans, err := mongodb.Run(ctx, s.scope, func(ctx context.Context, db *mongo.Database) ([]QueryPlan, error) {
		plans := make([]QueryPlan, 0, len(indexProbes))
		for _, p := range indexProbes {
			cmd := bson.D{
				{"explain", bson.D{{"find", collectionName}, {"filter", p.filter}}},
				{"verbosity", "executionStats"},
			}
			var raw bson.Raw
			if err := db.RunCommand(ctx, cmd).Decode(&raw); err != nil {
				return nil, err
			}
			plan, err := parseExplain(p.label, raw)
			if err != nil {
				return nil, err
			}
			plans = append(plans, plan)
		}
		return plans, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to explain queries: %w", err)
	}
	return plans, nil
}

// parseExplain extracts the statistics and the winning index from explain output.
func parseExplain(label string, raw bson.Raw) (QueryPlan, error) {
	plan := QueryPlan{Label: label}

	stats, ok := raw.Lookup("executionStats").DocumentOK()
	if !ok {
		return plan, fmt.Errorf("explain output for %q has no executionStats", label)
	}
	plan.DocsExamined = asInt64(stats.Lookup("totalDocsExamined"))
	plan.ExecutionTimeMillis = asInt64(stats.Lookup("executionTimeMillis"))

	winning, ok := raw.Lookup("queryPlanner", "winningPlan").DocumentOK()
	if !ok {
		return plan, fmt.Errorf("explain output for %q has no winning plan", label)
	}
	plan.IndexName, plan.CollectionScan = walkPlan(winning)
	return plan, nil
}

// walkPlan descends the stage tree until it meets an index scan or a collection scan.
// Slot-based engine output wraps the classic tree in a queryPlan document.
func walkPlan(stage bson.Raw) (indexName string, collectionScan bool) {
	if inner, ok := stage.Lookup("queryPlan").DocumentOK(); ok {
		return walkPlan(inner)
	}
	if name, ok := stage.Lookup("indexName").StringValueOK(); ok {
		return name, false
	}
	if name, _ := stage.Lookup("stage").StringValueOK(); name == "COLLSCAN" {
		return "", true
	}
	if input, ok := stage.Lookup("inputStage").DocumentOK(); ok {
		return walkPlan(input)
	}
	if inputs, ok := stage.Lookup("inputStages").ArrayOK(); ok {
		values, err := inputs.Values()
		if err != nil {
			return "", false
		}
		for _, v := range values {
			doc, ok := v.DocumentOK()
			if !ok {
				continue
			}
			if name, scan := walkPlan(doc); name != "" || scan {
				return name, scan
			}
		}
	}
	return "", false
}

func asInt64(v bson.RawValue) int64 {
	switch v.Type {
	case bson.TypeInt32:
		return int64(v.Int32())
	case bson.TypeInt64:
		return v.Int64()
	case bson.TypeDouble:
		return int64(v.Double())
	default:
		return 0
	}
}
